// matchmaking/matchmaking.go
package matchmaking

import (
	"sync"
	"time"

	"github.com/wfunc/cricketbingo/board"
	"github.com/wfunc/cricketbingo/logger"
	"github.com/wfunc/cricketbingo/match"
	"github.com/wfunc/cricketbingo/room"
	"github.com/wfunc/cricketbingo/services"
)

// Result tells a queued player which rated room to enter.
type Result struct {
	Code string      `json:"code"`
	View *match.View `json:"view"`
}

type ticket struct {
	userID     string
	name       string
	rating     float64
	ch         chan Result
	enqueuedAt time.Time
}

// Matchmaker pairs ranked players whose ratings fall within a fixed
// window of each other. The closest-rated waiting opponent wins;
// there is no queue-time widening.
type Matchmaker struct {
	coord    *room.Coordinator
	profiles *services.ProfileService
	window   int

	pool string
	size int
	diff board.Difficulty

	mu      sync.Mutex
	waiting []*ticket
}

func NewMatchmaker(coord *room.Coordinator, profiles *services.ProfileService, window int, pool string, size int, diff board.Difficulty) *Matchmaker {
	return &Matchmaker{
		coord:    coord,
		profiles: profiles,
		window:   window,
		pool:     pool,
		size:     size,
		diff:     diff,
	}
}

// Enqueue puts a player in the ranked queue. The returned channel
// delivers exactly one Result when an opponent is found; the cancel
// func withdraws the ticket (no-op once matched). Re-queueing the same
// user replaces the old ticket.
func (m *Matchmaker) Enqueue(userID, name string) (<-chan Result, func(), error) {
	prof, err := m.profiles.GetOrCreate(userID, name)
	if err != nil {
		return nil, nil, err
	}

	t := &ticket{
		userID:     userID,
		name:       name,
		rating:     prof.Rating,
		ch:         make(chan Result, 1),
		enqueuedAt: time.Now(),
	}

	m.mu.Lock()
	m.removeLocked(userID)
	opp := m.takeOpponentLocked(t.rating)
	if opp == nil {
		m.waiting = append(m.waiting, t)
		m.mu.Unlock()
		logger.Log.Infof("matchmaking: %s queued at rating %.0f", userID, t.rating)
		return t.ch, func() { m.Cancel(userID) }, nil
	}
	m.mu.Unlock()

	go m.pair(opp, t)
	return t.ch, func() { m.Cancel(userID) }, nil
}

// pair opens the rated room with the longer-waiting player as creator
// and joins the newcomer. On failure both tickets just close; clients
// re-queue.
func (m *Matchmaker) pair(first, second *ticket) {
	code, _, err := m.coord.CreateRoom(match.ModeRated, first.userID, first.name, room.Options{
		Pool:       m.pool,
		Size:       m.size,
		Difficulty: m.diff,
	})
	if err != nil {
		logger.Log.Errorf("matchmaking: room create for %s/%s: %v", first.userID, second.userID, err)
		close(first.ch)
		close(second.ch)
		return
	}
	joined, err := m.coord.Join(code, second.userID, second.name)
	if err != nil {
		logger.Log.Errorf("matchmaking: join %s for %s: %v", code, second.userID, err)
		close(first.ch)
		close(second.ch)
		return
	}

	logger.Log.Infof("matchmaking: paired %s (%.0f) vs %s (%.0f) in %s",
		first.userID, first.rating, second.userID, second.rating, code)
	first.ch <- Result{Code: code, View: joined}
	second.ch <- Result{Code: code, View: joined}
}

// Cancel withdraws a queued player. Safe to call after a match fired.
func (m *Matchmaker) Cancel(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(userID)
}

// Waiting reports the queue depth for metrics.
func (m *Matchmaker) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting)
}

func (m *Matchmaker) takeOpponentLocked(rating float64) *ticket {
	best := -1
	bestDiff := 0.0
	for i, w := range m.waiting {
		d := rating - w.rating
		if d < 0 {
			d = -d
		}
		if d > float64(m.window) {
			continue
		}
		if best == -1 || d < bestDiff {
			best, bestDiff = i, d
		}
	}
	if best == -1 {
		return nil
	}
	opp := m.waiting[best]
	m.waiting = append(m.waiting[:best], m.waiting[best+1:]...)
	return opp
}

func (m *Matchmaker) removeLocked(userID string) {
	for i, w := range m.waiting {
		if w.userID == userID {
			m.waiting = append(m.waiting[:i], m.waiting[i+1:]...)
			return
		}
	}
}
