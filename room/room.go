// room/room.go
package room

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/cricketbingo/board"
	"github.com/wfunc/cricketbingo/broadcast"
	"github.com/wfunc/cricketbingo/logger"
	"github.com/wfunc/cricketbingo/match"
	"github.com/wfunc/cricketbingo/services"
	"github.com/wfunc/cricketbingo/timer"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room full")
)

// Config 协调器参数
type Config struct {
	DefaultGridSize int
	MatchTimeLimit  time.Duration // rated/friends; solo and daily run untimed
	DisconnectGrace time.Duration
	EvictionGrace   time.Duration
	SweepInterval   time.Duration
}

// Options select the board of a new room.
type Options struct {
	Pool       string
	Size       int
	Difficulty board.Difficulty
	Capacity   int // friend rooms may configure >2; 0 means mode default
}

// Coordinator maps live room codes to match sessions and fans state
// changes out through the pub/sub hub. One coordinator per process,
// injected everywhere so tests can run isolated registries.
type Coordinator struct {
	cfg         Config
	gen         *board.Generator
	profiles    *services.ProfileService
	broadcaster Broadcaster
	timers      *timer.TimerManager
	daily       DailyRecorder

	mu       sync.RWMutex
	sessions map[string]*match.Session // room code -> session

	codeMu  sync.Mutex
	codeRng *rand.Rand
}

func NewCoordinator(cfg Config, gen *board.Generator, profiles *services.ProfileService, b Broadcaster, timers *timer.TimerManager) *Coordinator {
	c := &Coordinator{
		cfg:         cfg,
		gen:         gen,
		profiles:    profiles,
		broadcaster: b,
		timers:      timers,
		sessions:    make(map[string]*match.Session),
		codeRng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if cfg.SweepInterval > 0 {
		timers.AddTimer(cfg.SweepInterval, cfg.SweepInterval, c.Sweep)
	}
	return c
}

// SetDailyRecorder wires the daily scheduler in after construction.
func (c *Coordinator) SetDailyRecorder(d DailyRecorder) {
	c.daily = d
}

// CreateRoom generates a board and opens a session under a fresh room
// code. Solo sessions go active immediately; friend and rated rooms
// wait for the second participant.
func (c *Coordinator) CreateRoom(mode match.Mode, creatorID, creatorName string, opts Options) (string, *match.View, error) {
	size := opts.Size
	if size == 0 {
		size = c.cfg.DefaultGridSize
	}
	seed := c.newSeed()
	b, err := c.gen.Generate(seed, size, opts.Pool, opts.Difficulty)
	if errors.Is(err, board.ErrUnsatisfiableBoard) {
		logger.Log.Warnf("board seed %d unsatisfiable, relaxing constraints", seed)
		b, err = c.gen.GenerateRelaxed(seed, size, opts.Pool, opts.Difficulty)
	}
	if err != nil {
		return "", nil, err
	}
	return c.openRoom(mode, creatorID, creatorName, b, opts.Capacity)
}

// CreateRoomWithBoard opens a session over a pre-built board. The
// daily scheduler uses this so every participant plays identical cell
// challenges with independent progress.
func (c *Coordinator) CreateRoomWithBoard(mode match.Mode, creatorID, creatorName string, b *board.Board) (string, *match.View, error) {
	return c.openRoom(mode, creatorID, creatorName, b, 0)
}

func (c *Coordinator) openRoom(mode match.Mode, creatorID, creatorName string, b *board.Board, capacity int) (string, *match.View, error) {
	// Only friend rooms honor the capacity knob; every other mode has
	// a fixed player count.
	if mode != match.ModeFriends {
		capacity = 0
	}
	var limit time.Duration
	if mode == match.ModeRated || mode == match.ModeFriends {
		limit = c.cfg.MatchTimeLimit
	}

	c.mu.Lock()
	code := c.freeCodeLocked()
	sess := match.NewSession(uuid.New().String(), code, mode, capacity, b, limit)
	c.sessions[code] = sess
	c.mu.Unlock()

	view, err := sess.Join(creatorID, creatorName)
	if err != nil {
		// Creator join cannot fail on a fresh session; drop the room
		// if it somehow did.
		c.remove(code)
		return "", nil, err
	}

	logger.Log.Infof("room %s created: mode=%s size=%d seed=%d", code, mode, b.Size, b.Seed)
	if view.Status == match.StatusActive.String() {
		c.broadcaster.Publish(code, broadcast.Event{Type: broadcast.EventSessionStarted, Payload: view})
		c.scheduleDeadline(sess)
	}
	return code, view, nil
}

// Join adds a participant to a live room. Rejoin after a disconnect is
// idempotent and returns the current view.
func (c *Coordinator) Join(code, userID, name string) (*match.View, error) {
	sess, ok := c.lookup(code)
	if !ok {
		return nil, ErrRoomNotFound
	}

	wasWaiting := sess.Status() == match.StatusWaiting

	view, err := sess.Join(userID, name)
	if err != nil {
		switch {
		case errors.Is(err, match.ErrSessionFull):
			return nil, ErrRoomFull
		case errors.Is(err, match.ErrSessionClosed):
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	c.broadcaster.Publish(code, broadcast.Event{
		Type:    broadcast.EventParticipantJoined,
		Payload: map[string]interface{}{"user_id": userID, "name": name},
	})
	if wasWaiting && view.Status == match.StatusActive.String() {
		c.broadcaster.Publish(code, broadcast.Event{Type: broadcast.EventSessionStarted, Payload: view})
		c.scheduleDeadline(sess)
	}
	return view, nil
}

// SubmitGuess validates a guess against the room's session and
// broadcasts the resulting diff. Guess errors return synchronously to
// the submitter only.
func (c *Coordinator) SubmitGuess(code, userID string, row, col int, answer string) (*match.GuessResult, error) {
	sess, ok := c.lookup(code)
	if !ok {
		return nil, ErrRoomNotFound
	}

	res, err := sess.SubmitGuess(userID, row, col, answer)
	if err != nil {
		return nil, err
	}

	if res.Correct {
		c.broadcaster.Publish(code, broadcast.Event{Type: broadcast.EventCellResolved, Payload: res})
	} else {
		c.broadcaster.Publish(code, broadcast.Event{Type: broadcast.EventGuessRejected, Payload: res})
	}

	if res.Finished {
		c.finishSession(sess)
	}
	return res, nil
}

// Wildcard relays a hint request to the session. Hints go only to the
// requesting participant, never through the hub.
func (c *Coordinator) Wildcard(code, userID, playerName string) ([]int, error) {
	sess, ok := c.lookup(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return sess.Wildcard(userID, playerName)
}

// View returns the current session view for reconnecting clients.
func (c *Coordinator) View(code string) (*match.View, error) {
	sess, ok := c.lookup(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return sess.View(), nil
}

// Disconnect marks a participant gone. When the whole room is gone the
// session abandons after the grace window unless someone reconnects
// first.
func (c *Coordinator) Disconnect(code, userID string) {
	sess, ok := c.lookup(code)
	if !ok {
		return
	}
	allGone, err := sess.Disconnect(userID)
	if err != nil {
		return
	}
	c.broadcaster.Publish(code, broadcast.Event{
		Type:    broadcast.EventParticipantLeft,
		Payload: map[string]interface{}{"user_id": userID},
	})
	if allGone {
		c.timers.AddTimer(c.cfg.DisconnectGrace, 0, func() {
			if err := sess.Abandon(); err != nil {
				return // someone came back, or already terminal
			}
			logger.Log.Infof("room %s abandoned", code)
			c.broadcaster.Publish(code, broadcast.Event{Type: broadcast.EventSessionFinished, Payload: sess.View()})
		})
	}
}

// finishSession runs terminal bookkeeping. Rated outcomes settle
// before the finished broadcast goes out; the settlement happens off
// the session lock (the outcome is an immutable snapshot) so a slow
// store never stalls the room index.
func (c *Coordinator) finishSession(sess *match.Session) {
	out := sess.Outcome()
	go func() {
		switch {
		case out.Mode.Rated():
			delta, err := c.profiles.SettleRated(out)
			if err != nil {
				// Outcome stands regardless; surface and keep going.
				logger.Log.Errorf("room %s: rated settlement: %v", out.Code, err)
			}
			c.broadcaster.Publish(out.Code, broadcast.Event{Type: broadcast.EventSessionFinished, Payload: sess.View()})
			if delta != nil && err == nil {
				c.broadcaster.Publish(out.Code, broadcast.Event{Type: broadcast.EventRatingUpdated, Payload: delta})
			}
		case out.Mode == match.ModeDaily:
			if c.daily != nil {
				if err := c.daily.RecordFinish(out); err != nil {
					logger.Log.Errorf("room %s: daily record: %v", out.Code, err)
				}
			}
			c.broadcaster.Publish(out.Code, broadcast.Event{Type: broadcast.EventSessionFinished, Payload: sess.View()})
		default:
			if err := c.profiles.RecordSoloOutcome(out); err != nil {
				logger.Log.Errorf("room %s: outcome record: %v", out.Code, err)
			}
			c.broadcaster.Publish(out.Code, broadcast.Event{Type: broadcast.EventSessionFinished, Payload: sess.View()})
		}
	}()
}

// scheduleDeadline arms the wall-clock cutoff of a timed match.
func (c *Coordinator) scheduleDeadline(sess *match.Session) {
	deadline := sess.Deadline()
	if deadline.IsZero() {
		return
	}
	code := sess.Code
	c.timers.AddTimer(time.Until(deadline), 0, func() {
		if _, ok := sess.ExpireDeadline(); !ok {
			return
		}
		logger.Log.Infof("room %s hit time limit", code)
		c.finishSession(sess)
	})
}

// Sweep evicts terminal sessions older than the grace window. Codes
// become reusable afterwards. Runs on the shared timer, never on the
// request path.
func (c *Coordinator) Sweep() {
	cutoff := time.Now().Add(-c.cfg.EvictionGrace)

	c.mu.Lock()
	var evicted []string
	for code, sess := range c.sessions {
		switch sess.Status() {
		case match.StatusFinished, match.StatusAbandoned:
			if ended := sess.EndedAt(); !ended.IsZero() && ended.Before(cutoff) {
				delete(c.sessions, code)
				evicted = append(evicted, code)
			}
		}
	}
	c.mu.Unlock()

	for _, code := range evicted {
		c.broadcaster.CloseRoom(code)
		logger.Log.Infof("room %s evicted", code)
	}
}

// ActiveRooms returns the live session count for metrics.
func (c *Coordinator) ActiveRooms() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *Coordinator) lookup(code string) (*match.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sess, ok := c.sessions[code]
	return sess, ok
}

func (c *Coordinator) remove(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, code)
}

// freeCodeLocked draws a 6-digit code unique among live sessions.
// Codes recycle once their session is evicted.
func (c *Coordinator) freeCodeLocked() string {
	c.codeMu.Lock()
	defer c.codeMu.Unlock()
	for {
		code := fmt.Sprintf("%06d", c.codeRng.Intn(1000000))
		if _, taken := c.sessions[code]; !taken {
			return code
		}
	}
}

func (c *Coordinator) newSeed() int64 {
	c.codeMu.Lock()
	defer c.codeMu.Unlock()
	return c.codeRng.Int63()
}
