package services

import (
	"errors"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/wfunc/cricketbingo/logger"
	"github.com/wfunc/cricketbingo/match"
	"github.com/wfunc/cricketbingo/models"
	"github.com/wfunc/cricketbingo/persistence"
	"github.com/wfunc/cricketbingo/rating"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// MockStore is an in-memory test double for the persistence.Store
// interface. FailSaves makes the next N writes fail.
type MockStore struct {
	profiles  map[string]*models.Profile
	history   map[string][]*models.MatchRecord
	daily     map[string]*models.DailyRecord
	FailSaves int
	SaveCalls int
}

func NewMockStore() *MockStore {
	return &MockStore{
		profiles: make(map[string]*models.Profile),
		history:  make(map[string][]*models.MatchRecord),
		daily:    make(map[string]*models.DailyRecord),
	}
}

func (m *MockStore) GetProfile(userID string) (*models.Profile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockStore) SaveProfile(p *models.Profile) error {
	m.SaveCalls++
	if m.FailSaves > 0 {
		m.FailSaves--
		return errors.New("mock store down")
	}
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

func (m *MockStore) TopProfiles(limit int) ([]*models.Profile, error) {
	var out []*models.Profile
	for _, p := range m.profiles {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) AppendMatchHistory(userID string, rec *models.MatchRecord) error {
	m.history[userID] = append(m.history[userID], rec)
	return nil
}

func (m *MockStore) GetDailyRecord(date string) (*models.DailyRecord, error) {
	rec, ok := m.daily[date]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	return rec, nil
}

func (m *MockStore) SaveDailyRecord(rec *models.DailyRecord) error {
	m.daily[rec.Date] = rec
	return nil
}

func (m *MockStore) Close() error { return nil }

func newService(store *MockStore) *ProfileService {
	return NewProfileService(store, rating.Default, 1200)
}

func ratedOutcome(winnerID string) *match.Outcome {
	started := time.Now().Add(-5 * time.Minute)
	return &match.Outcome{
		SessionID: "sid",
		Code:      "123456",
		Mode:      match.ModeRated,
		WinnerID:  winnerID,
		Draw:      winnerID == "",
		StartedAt: started,
		EndedAt:   started.Add(4 * time.Minute),
		Players: []match.ParticipantView{
			{UserID: "u1", Name: "Alice", Cells: 3, Misses: 1, Score: 280},
			{UserID: "u2", Name: "Bob", Cells: 2, Misses: 2, Score: 160},
		},
	}
}

func TestProfileService_GetOrCreate(t *testing.T) {
	store := NewMockStore()
	svc := newService(store)

	p, err := svc.GetOrCreate("u1", "Alice")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if p.Rating != 1200 {
		t.Errorf("New profile should start at 1200, got %v", p.Rating)
	}

	again, err := svc.GetOrCreate("u1", "ignored")
	if err != nil {
		t.Fatalf("Second GetOrCreate failed: %v", err)
	}
	if again.Name != "Alice" {
		t.Errorf("Existing profile should keep its name, got %q", again.Name)
	}
}

func TestProfileService_SettleRatedWin(t *testing.T) {
	store := NewMockStore()
	svc := newService(store)

	delta, err := svc.SettleRated(ratedOutcome("u1"))
	if err != nil {
		t.Fatalf("SettleRated failed: %v", err)
	}

	if delta.Ratings["u1"] != 1216 || delta.Ratings["u2"] != 1184 {
		t.Errorf("Expected 1216/1184 at equal ratings, got %v/%v",
			delta.Ratings["u1"], delta.Ratings["u2"])
	}
	if delta.Deltas["u1"] != 16 || delta.Deltas["u2"] != -16 {
		t.Errorf("Expected deltas +16/-16, got %v/%v", delta.Deltas["u1"], delta.Deltas["u2"])
	}

	winner, _ := store.GetProfile("u1")
	if winner.Wins != 1 || winner.WinStreak != 1 || winner.BestStreak != 1 {
		t.Errorf("Winner counters wrong: %+v", winner)
	}
	loser, _ := store.GetProfile("u2")
	if loser.Losses != 1 || loser.Rating != 1184 {
		t.Errorf("Loser counters wrong: %+v", loser)
	}

	if len(store.history["u1"]) != 1 || len(store.history["u2"]) != 1 {
		t.Error("Both players should receive a history record")
	}
}

func TestProfileService_SettleRatedDraw(t *testing.T) {
	store := NewMockStore()
	svc := newService(store)

	delta, err := svc.SettleRated(ratedOutcome(""))
	if err != nil {
		t.Fatalf("SettleRated failed: %v", err)
	}
	if !delta.Draw {
		t.Error("Delta should mark the draw")
	}
	if delta.Ratings["u1"] != 1200 || delta.Ratings["u2"] != 1200 {
		t.Errorf("Draw at equal ratings should not move: %v", delta.Ratings)
	}

	p, _ := store.GetProfile("u1")
	if p.Draws != 1 || p.Wins != 0 {
		t.Errorf("Draw counters wrong: %+v", p)
	}
}

func TestProfileService_SettleRatedLossResetsStreak(t *testing.T) {
	store := NewMockStore()
	svc := newService(store)

	if _, err := svc.SettleRated(ratedOutcome("u1")); err != nil {
		t.Fatalf("First settlement failed: %v", err)
	}
	if _, err := svc.SettleRated(ratedOutcome("u2")); err != nil {
		t.Fatalf("Second settlement failed: %v", err)
	}

	p, _ := store.GetProfile("u1")
	if p.WinStreak != 0 {
		t.Errorf("Loss should reset the streak, got %d", p.WinStreak)
	}
	if p.BestStreak != 1 {
		t.Errorf("Best streak must survive the loss, got %d", p.BestStreak)
	}
}

func TestProfileService_SettleRatedRetriesThenSucceeds(t *testing.T) {
	store := NewMockStore()
	svc := newService(store)

	// Profiles exist already so the failing saves hit the settlement.
	svc.GetOrCreate("u1", "Alice")
	svc.GetOrCreate("u2", "Bob")

	store.FailSaves = 1
	if _, err := svc.SettleRated(ratedOutcome("u1")); err != nil {
		t.Fatalf("One transient failure should be retried away: %v", err)
	}

	p, _ := store.GetProfile("u1")
	if p.Rating != 1216 {
		t.Errorf("Retry should persist the update, got %v", p.Rating)
	}
}

func TestProfileService_SettleRatedPermanentFailure(t *testing.T) {
	store := NewMockStore()
	svc := newService(store)

	svc.GetOrCreate("u1", "Alice")
	svc.GetOrCreate("u2", "Bob")

	store.FailSaves = 100
	delta, err := svc.SettleRated(ratedOutcome("u1"))
	if !errors.Is(err, ErrRatingPersistence) {
		t.Fatalf("Expected ErrRatingPersistence, got %v", err)
	}
	if delta == nil || delta.Ratings["u1"] != 1216 {
		t.Error("Delta must still report the computed outcome")
	}
}

func TestProfileService_RecordDailyResult(t *testing.T) {
	store := NewMockStore()
	svc := newService(store)

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	entries := []models.DailyEntry{
		{UserID: "u1", Name: "Alice", Seconds: 90, Misses: 2, FinishedAt: base},
		{UserID: "u2", Name: "Bob", Seconds: 60, Misses: 0, FinishedAt: base.Add(time.Minute)},
		{UserID: "u3", Name: "Carol", Seconds: 90, Misses: 1, FinishedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := svc.RecordDailyResult("2026-08-30", 7, e); err != nil {
			t.Fatalf("RecordDailyResult failed: %v", err)
		}
	}

	rec, err := store.GetDailyRecord("2026-08-30")
	if err != nil {
		t.Fatalf("Daily record missing: %v", err)
	}
	got := []string{rec.Entries[0].UserID, rec.Entries[1].UserID, rec.Entries[2].UserID}
	want := []string{"u2", "u3", "u1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Leaderboard order wrong: got %v, want %v", got, want)
		}
	}
}

func TestProfileService_RecordDailyResultFirstFinishOnly(t *testing.T) {
	store := NewMockStore()
	svc := newService(store)

	first := models.DailyEntry{UserID: "u1", Seconds: 60, FinishedAt: time.Now()}
	second := models.DailyEntry{UserID: "u1", Seconds: 30, FinishedAt: time.Now()}
	svc.RecordDailyResult("2026-08-30", 7, first)
	svc.RecordDailyResult("2026-08-30", 7, second)

	rec, _ := store.GetDailyRecord("2026-08-30")
	if len(rec.Entries) != 1 {
		t.Fatalf("Expected one entry per user, got %d", len(rec.Entries))
	}
	if rec.Entries[0].Seconds != 60 {
		t.Errorf("Later finishes must not replace the first, got %v", rec.Entries[0].Seconds)
	}
}

func TestProfileService_Leaderboard(t *testing.T) {
	store := NewMockStore()
	svc := newService(store)

	svc.GetOrCreate("u1", "Alice")
	svc.GetOrCreate("u2", "Bob")
	svc.SettleRated(ratedOutcome("u1"))

	top, err := svc.Leaderboard(1)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(top) != 1 || top[0].UserID != "u1" {
		t.Fatalf("Expected u1 on top, got %+v", top)
	}
}
