// match/match.go
package match

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/cricketbingo/board"
)

// Mode 对局模式
type Mode string

const (
	ModeSolo    Mode = "solo"
	ModeFriends Mode = "friends"
	ModeRated   Mode = "rated"
	ModeDaily   Mode = "daily"
)

// RequiredPlayers returns the participant count that moves a session
// from waiting to active.
func (m Mode) RequiredPlayers() int {
	switch m {
	case ModeSolo, ModeDaily:
		return 1
	default:
		return 2
	}
}

// Rated reports whether the outcome feeds the rating engine.
func (m Mode) Rated() bool {
	return m == ModeRated
}

// Status 会话状态机的状态
type Status int

const (
	StatusWaiting Status = iota
	StatusActive
	StatusFinished
	StatusAbandoned
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusFinished:
		return "finished"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Allowed state transitions. Everything else is rejected.
var validTransitions = map[Status][]Status{
	StatusWaiting: {StatusActive, StatusAbandoned},
	StatusActive:  {StatusFinished, StatusAbandoned},
}

var (
	ErrNotParticipant = errors.New("not a participant of this session")
	ErrInvalidCell    = errors.New("invalid cell")
	ErrSessionClosed  = errors.New("session closed")
	ErrSessionFull    = errors.New("session full")
	ErrNotStarted     = errors.New("session not started")
	ErrBadTransition  = errors.New("state transition not allowed")
)

// Participant 会话中的一名玩家及其进度
type Participant struct {
	UserID       string
	Name         string
	Cells        int // resolved cell count
	Misses       int
	Connected    bool
	WildcardUsed bool
	JoinedAt     time.Time
}

// Score is the shipped game's formula: cells weigh heavily, misses
// cost a fifth of a cell, never negative.
func (p *Participant) Score() float64 {
	s := float64(p.Cells*100 - p.Misses*20)
	if s < 0 {
		s = 0
	}
	return s
}

// GuessResult describes the effect of one guess.
type GuessResult struct {
	Correct  bool
	Row, Col int
	Answer   string
	ByUser   string
	Winner   string     // set when this guess ended the match
	Line     board.Line // the completed line, if any
	Finished bool
	Draw     bool
}

// Session owns one board and its participants. All mutating calls are
// serialized by one mutex per session; sessions in different rooms
// never contend.
type Session struct {
	ID       string
	Code     string
	Mode     Mode
	Capacity int

	mu       sync.Mutex
	board    *board.Board
	lines    []board.Line
	status   Status
	parts    []*Participant // join order
	byID     map[string]*Participant
	winnerID string
	draw     bool

	CreatedAt time.Time
	startedAt time.Time
	endedAt   time.Time
	timeLimit time.Duration

	now func() time.Time
}

// NewSession creates a session over an exclusively-owned board. Solo
// and daily sessions skip waiting once their single participant joins;
// a timeLimit of zero means untimed.
func NewSession(id, code string, mode Mode, capacity int, b *board.Board, timeLimit time.Duration) *Session {
	if capacity < mode.RequiredPlayers() {
		capacity = mode.RequiredPlayers()
	}
	return &Session{
		ID:        id,
		Code:      code,
		Mode:      mode,
		Capacity:  capacity,
		board:     b,
		lines:     board.Lines(b.Size),
		status:    StatusWaiting,
		byID:      make(map[string]*Participant),
		CreatedAt: time.Now(),
		timeLimit: timeLimit,
		now:       time.Now,
	}
}

func (s *Session) transitionLocked(to Status) error {
	for _, t := range validTransitions[s.status] {
		if t == to {
			s.status = to
			switch to {
			case StatusActive:
				s.startedAt = s.now()
			case StatusFinished, StatusAbandoned:
				s.endedAt = s.now()
			}
			return nil
		}
	}
	return ErrBadTransition
}

// Join adds a participant, or restores an existing one after a
// disconnect. Rejoin is idempotent and returns the current view so
// reconnecting clients resume mid-match.
func (s *Session) Join(userID, name string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusFinished, StatusAbandoned:
		return nil, ErrSessionClosed
	}

	if p, ok := s.byID[userID]; ok {
		p.Connected = true
		return s.viewLocked(), nil
	}
	if len(s.parts) >= s.Capacity {
		return nil, ErrSessionFull
	}
	if s.status == StatusActive {
		// Late joiners are not part of a running match.
		return nil, ErrSessionFull
	}

	p := &Participant{UserID: userID, Name: name, Connected: true, JoinedAt: s.now()}
	s.parts = append(s.parts, p)
	s.byID[userID] = p

	if len(s.parts) >= s.startThresholdLocked() {
		if err := s.transitionLocked(StatusActive); err != nil {
			return nil, err
		}
	}
	return s.viewLocked(), nil
}

// startThresholdLocked is the participant count that fires
// waiting → active. Friends rooms wait for the configured capacity;
// every other mode starts at its fixed player count.
func (s *Session) startThresholdLocked() int {
	if s.Mode == ModeFriends {
		return s.Capacity
	}
	return s.Mode.RequiredPlayers()
}

// SubmitGuess applies one guess strictly sequentially. Wrong answers
// record a miss and change nothing else; the first validated correct
// guess wins the cell.
func (s *Session) SubmitGuess(userID string, row, col int, answer string) (*GuessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusWaiting:
		return nil, ErrNotStarted
	case StatusFinished, StatusAbandoned:
		return nil, ErrSessionClosed
	}

	p, ok := s.byID[userID]
	if !ok {
		return nil, ErrNotParticipant
	}
	cell := s.board.Cell(row, col)
	if cell == nil || cell.Resolved() {
		return nil, ErrInvalidCell
	}

	res := &GuessResult{Row: row, Col: col, Answer: answer, ByUser: userID}
	if !cell.Accepts(answer) {
		p.Misses++
		return res, nil
	}

	cell.ResolvedBy = userID
	cell.Answer = answer
	p.Cells++
	res.Correct = true

	idx := row*s.board.Size + col
	if line, won := s.lineCompletedLocked(userID, idx); won {
		s.winnerID = userID
		res.Winner = userID
		res.Line = line
		res.Finished = true
		_ = s.transitionLocked(StatusFinished)
		return res, nil
	}
	if s.boardFullLocked() {
		// Full grid, nobody holds a line: a draw.
		s.draw = true
		res.Finished = true
		res.Draw = true
		_ = s.transitionLocked(StatusFinished)
	}
	return res, nil
}

func (s *Session) lineCompletedLocked(userID string, idx int) (board.Line, bool) {
scan:
	for _, line := range s.lines {
		touches := false
		for _, i := range line {
			if i == idx {
				touches = true
			}
			if s.board.Cells[i].ResolvedBy != userID {
				continue scan
			}
		}
		if touches {
			return line, true
		}
	}
	return nil, false
}

func (s *Session) boardFullLocked() bool {
	for i := range s.board.Cells {
		if !s.board.Cells[i].Resolved() {
			return false
		}
	}
	return true
}

// Wildcard returns the unresolved cell indices the named cricketer
// satisfies. One use per participant per match.
func (s *Session) Wildcard(userID, playerName string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return nil, ErrSessionClosed
	}
	p, ok := s.byID[userID]
	if !ok {
		return nil, ErrNotParticipant
	}
	if p.WildcardUsed {
		return nil, errors.New("wildcard already used")
	}
	p.WildcardUsed = true

	var hits []int
	for i := range s.board.Cells {
		c := &s.board.Cells[i]
		if !c.Resolved() && c.Accepts(playerName) {
			hits = append(hits, i)
		}
	}
	return hits, nil
}

// Disconnect marks a participant offline. A disconnect is a
// notification, never a guess: it forces no transition by itself. The
// caller decides about abandonment once everyone is gone.
func (s *Session) Disconnect(userID string) (allGone bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[userID]
	if !ok {
		return false, ErrNotParticipant
	}
	p.Connected = false
	for _, q := range s.parts {
		if q.Connected {
			return false, nil
		}
	}
	return len(s.parts) > 0, nil
}

// Abandon ends a session whose participants all left. Abandoned rated
// sessions never reach the rating engine.
func (s *Session) Abandon() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusFinished, StatusAbandoned:
		return ErrSessionClosed
	}
	// If anyone came back before the grace deadline the abandon is void.
	for _, p := range s.parts {
		if p.Connected {
			return ErrBadTransition
		}
	}
	return s.transitionLocked(StatusAbandoned)
}

// Deadline returns the wall-clock end of a timed match, or zero when
// untimed or not started.
func (s *Session) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timeLimit <= 0 || s.startedAt.IsZero() {
		return time.Time{}
	}
	return s.startedAt.Add(s.timeLimit)
}

// ExpireDeadline finishes a timed match from elapsed wall-clock time,
// independent of guess traffic. Best progress wins; equal progress is
// a draw. Returns false if the session already ended.
func (s *Session) ExpireDeadline() (*GuessResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		return nil, false
	}
	var best *Participant
	tied := false
	for _, p := range s.parts {
		if best == nil || p.Cells > best.Cells {
			best = p
			tied = false
		} else if p.Cells == best.Cells {
			tied = true
		}
	}
	res := &GuessResult{Finished: true}
	if best != nil && !tied {
		s.winnerID = best.UserID
		res.Winner = best.UserID
	} else {
		s.draw = true
		res.Draw = true
	}
	_ = s.transitionLocked(StatusFinished)
	return res, true
}

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Winner returns the winning participant id, empty on draw or while
// running.
func (s *Session) Winner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winnerID
}

// EndedAt returns when the session reached a terminal state.
func (s *Session) EndedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt
}
