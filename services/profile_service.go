// services/profile_service.go
package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wfunc/cricketbingo/logger"
	"github.com/wfunc/cricketbingo/match"
	"github.com/wfunc/cricketbingo/models"
	"github.com/wfunc/cricketbingo/persistence"
	"github.com/wfunc/cricketbingo/rating"
)

// ErrRatingPersistence wraps a rating write that kept failing after
// retries. The match outcome is already final and is never rolled
// back; callers surface the error instead of dropping it.
var ErrRatingPersistence = errors.New("rating persistence failed")

const (
	persistAttempts = 3
	persistBackoff  = 100 * time.Millisecond
)

// ProfileService owns profile reads/writes and rated-match
// settlement.
type ProfileService struct {
	store         persistence.Store
	elo           rating.Engine
	initialRating float64
}

func NewProfileService(store persistence.Store, elo rating.Engine, initialRating float64) *ProfileService {
	return &ProfileService{store: store, elo: elo, initialRating: initialRating}
}

// GetOrCreate loads a profile, creating the default one on first
// access.
func (s *ProfileService) GetOrCreate(userID, name string) (*models.Profile, error) {
	p, err := s.store.GetProfile(userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, err
	}
	p = &models.Profile{
		UserID: userID,
		Name:   name,
		Rating: s.initialRating,
	}
	if err := s.store.SaveProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get loads a profile without creating one.
func (s *ProfileService) Get(userID string) (*models.Profile, error) {
	return s.store.GetProfile(userID)
}

// RatingDelta is the broadcastable result of a rated settlement.
type RatingDelta struct {
	WinnerID string             `json:"winner_id,omitempty"`
	Draw     bool               `json:"draw,omitempty"`
	Ratings  map[string]float64 `json:"ratings"`
	Deltas   map[string]float64 `json:"deltas"`
}

// SettleRated applies a finished rated outcome: load both profiles,
// run the Elo update, persist with bounded retries and append match
// history. Persistence failure never corrupts the in-memory outcome.
func (s *ProfileService) SettleRated(out *match.Outcome) (*RatingDelta, error) {
	if len(out.Players) != 2 {
		return nil, fmt.Errorf("rated settlement needs 2 players, got %d", len(out.Players))
	}
	a, b := out.Players[0], out.Players[1]

	pa, err := s.GetOrCreate(a.UserID, a.Name)
	if err != nil {
		return nil, err
	}
	pb, err := s.GetOrCreate(b.UserID, b.Name)
	if err != nil {
		return nil, err
	}

	outcome := rating.OutcomeDraw
	switch out.WinnerID {
	case a.UserID:
		outcome = rating.OutcomeAWins
	case b.UserID:
		outcome = rating.OutcomeBWins
	}
	newA, newB := s.elo.Update(pa.Rating, pb.Rating, outcome)

	delta := &RatingDelta{
		WinnerID: out.WinnerID,
		Draw:     out.Draw,
		Ratings:  map[string]float64{a.UserID: newA, b.UserID: newB},
		Deltas:   map[string]float64{a.UserID: newA - pa.Rating, b.UserID: newB - pb.Rating},
	}

	applyResult(pa, newA, out.WinnerID, a)
	applyResult(pb, newB, out.WinnerID, b)

	record := &models.MatchRecord{
		RoomCode:    out.Code,
		Mode:        string(out.Mode),
		WinnerID:    out.WinnerID,
		RatingDelta: delta.Deltas[a.UserID],
		StartedAt:   out.StartedAt,
		EndedAt:     out.EndedAt,
		Players: []models.PlayerScore{
			{UserID: a.UserID, Name: a.Name, Cells: a.Cells, Misses: a.Misses, Score: a.Score},
			{UserID: b.UserID, Name: b.Name, Cells: b.Cells, Misses: b.Misses, Score: b.Score},
		},
	}

	err = s.withRetry(func() error {
		if err := s.store.SaveProfile(pa); err != nil {
			return err
		}
		if err := s.store.SaveProfile(pb); err != nil {
			return err
		}
		if err := s.store.AppendMatchHistory(a.UserID, record); err != nil {
			return err
		}
		return s.store.AppendMatchHistory(b.UserID, record)
	})
	if err != nil {
		return delta, fmt.Errorf("%w: %v", ErrRatingPersistence, err)
	}
	return delta, nil
}

func applyResult(p *models.Profile, newRating float64, winnerID string, pv match.ParticipantView) {
	p.Rating = newRating
	p.TotalGames++
	p.MissSum += pv.Misses
	switch {
	case winnerID == p.UserID:
		p.Wins++
		p.WinStreak++
		if p.WinStreak > p.BestStreak {
			p.BestStreak = p.WinStreak
		}
	case winnerID == "":
		p.Draws++
		p.WinStreak = 0
	default:
		p.Losses++
		p.WinStreak = 0
	}
}

// RecordSoloOutcome bumps the aggregate counters for unrated play.
func (s *ProfileService) RecordSoloOutcome(out *match.Outcome) error {
	for _, pv := range out.Players {
		p, err := s.GetOrCreate(pv.UserID, pv.Name)
		if err != nil {
			return err
		}
		p.TotalGames++
		p.MissSum += pv.Misses
		if err := s.withRetry(func() error { return s.store.SaveProfile(p) }); err != nil {
			return err
		}
	}
	return nil
}

// RecordDailyResult appends one participant's finish to the day's
// leaderboard. Only the first finish per user counts, as in the
// shipped game. Entries stay sorted: completion time, then misses,
// then earlier finish.
func (s *ProfileService) RecordDailyResult(date string, seed int64, entry models.DailyEntry) error {
	rec, err := s.store.GetDailyRecord(date)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		rec = &models.DailyRecord{Date: date, Seed: seed}
	} else if err != nil {
		return err
	}

	for _, e := range rec.Entries {
		if e.UserID == entry.UserID {
			return nil
		}
	}
	rec.Entries = append(rec.Entries, entry)
	sort.SliceStable(rec.Entries, func(i, j int) bool {
		ei, ej := rec.Entries[i], rec.Entries[j]
		if ei.Seconds != ej.Seconds {
			return ei.Seconds < ej.Seconds
		}
		if ei.Misses != ej.Misses {
			return ei.Misses < ej.Misses
		}
		return ei.FinishedAt.Before(ej.FinishedAt)
	})

	return s.withRetry(func() error { return s.store.SaveDailyRecord(rec) })
}

// Leaderboard returns the top rated profiles.
func (s *ProfileService) Leaderboard(limit int) ([]*models.Profile, error) {
	return s.store.TopProfiles(limit)
}

// withRetry runs fn up to persistAttempts times with doubling backoff.
func (s *ProfileService) withRetry(fn func() error) error {
	var err error
	backoff := persistBackoff
	for attempt := 0; attempt < persistAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		logger.Log.Warnf("store write failed (attempt %d): %v", attempt+1, err)
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}
