// daily/daily.go
package daily

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/wfunc/cricketbingo/board"
	"github.com/wfunc/cricketbingo/logger"
	"github.com/wfunc/cricketbingo/match"
	"github.com/wfunc/cricketbingo/models"
	"github.com/wfunc/cricketbingo/persistence"
	"github.com/wfunc/cricketbingo/room"
	"github.com/wfunc/cricketbingo/services"
)

// DateLayout 每日挑战的日期格式（UTC）
const DateLayout = "2006-01-02"

// Scheduler hands every player the same board for a given calendar
// day. The template is generated once per date from a seed derived
// from the date itself, so independent server processes agree on the
// challenge without coordination.
type Scheduler struct {
	gen      *board.Generator
	coord    *room.Coordinator
	profiles *services.ProfileService
	store    persistence.Store

	pool string
	size int
	diff board.Difficulty

	mu        sync.Mutex
	cacheDate string
	cached    *board.Board

	now func() time.Time
}

func NewScheduler(gen *board.Generator, coord *room.Coordinator, profiles *services.ProfileService, store persistence.Store, pool string, size int, diff board.Difficulty) *Scheduler {
	return &Scheduler{
		gen:      gen,
		coord:    coord,
		profiles: profiles,
		store:    store,
		pool:     pool,
		size:     size,
		diff:     diff,
		now:      time.Now,
	}
}

// SeedFor derives the deterministic board seed for a date. The top bit
// is masked so the seed reads as a non-negative int64 everywhere.
func SeedFor(date string) int64 {
	sum := sha256.Sum256([]byte(date))
	return int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63))
}

// Today returns the current challenge date in UTC.
func (s *Scheduler) Today() string {
	return s.now().UTC().Format(DateLayout)
}

// Join opens a solo-style daily session over a private copy of
// today's template. Resolution state is per-player; the challenges
// are shared.
func (s *Scheduler) Join(userID, name string) (string, *match.View, error) {
	date := s.Today()
	tmpl, err := s.template(date)
	if err != nil {
		return "", nil, err
	}
	return s.coord.CreateRoomWithBoard(match.ModeDaily, userID, name, tmpl.Clone())
}

// template returns the cached board for date, generating it on the
// first request after midnight.
func (s *Scheduler) template(date string) (*board.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cacheDate == date && s.cached != nil {
		return s.cached, nil
	}

	seed := SeedFor(date)
	b, err := s.gen.Generate(seed, s.size, s.pool, s.diff)
	if errors.Is(err, board.ErrUnsatisfiableBoard) {
		logger.Log.Warnf("daily %s: seed %d unsatisfiable, relaxing", date, seed)
		b, err = s.gen.GenerateRelaxed(seed, s.size, s.pool, s.diff)
	}
	if err != nil {
		return nil, err
	}
	s.cacheDate = date
	s.cached = b
	logger.Log.Infof("daily %s: board ready, seed=%d", date, seed)
	return b, nil
}

// RecordFinish appends a winner's result to the day's leaderboard.
// Abandoned or winless sessions leave no entry.
func (s *Scheduler) RecordFinish(out *match.Outcome) error {
	if out.WinnerID == "" {
		return nil
	}
	var winner match.ParticipantView
	for _, p := range out.Players {
		if p.UserID == out.WinnerID {
			winner = p
			break
		}
	}

	date := out.StartedAt.UTC().Format(DateLayout)
	entry := models.DailyEntry{
		UserID:     out.WinnerID,
		Name:       winner.Name,
		Seconds:    out.EndedAt.Sub(out.StartedAt).Seconds(),
		Misses:     winner.Misses,
		FinishedAt: out.EndedAt,
	}
	return s.profiles.RecordDailyResult(date, SeedFor(date), entry)
}

// Leaderboard returns the stored entries for a date, fastest first.
func (s *Scheduler) Leaderboard(date string) ([]models.DailyEntry, error) {
	rec, err := s.store.GetDailyRecord(date)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Entries, nil
}
