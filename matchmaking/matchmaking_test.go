package matchmaking

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/cricketbingo/board"
	"github.com/wfunc/cricketbingo/broadcast"
	"github.com/wfunc/cricketbingo/dataset"
	"github.com/wfunc/cricketbingo/logger"
	"github.com/wfunc/cricketbingo/models"
	"github.com/wfunc/cricketbingo/persistence"
	"github.com/wfunc/cricketbingo/rating"
	"github.com/wfunc/cricketbingo/room"
	"github.com/wfunc/cricketbingo/services"
	"github.com/wfunc/cricketbingo/timer"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// MockStore seeds profiles at chosen ratings.
type MockStore struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
}

func NewMockStore() *MockStore {
	return &MockStore{profiles: make(map[string]*models.Profile)}
}

func (m *MockStore) seed(userID string, ratingValue float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = &models.Profile{UserID: userID, Name: userID, Rating: ratingValue}
}

func (m *MockStore) GetProfile(userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockStore) SaveProfile(p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

func (m *MockStore) TopProfiles(limit int) ([]*models.Profile, error)                { return nil, nil }
func (m *MockStore) AppendMatchHistory(userID string, rec *models.MatchRecord) error { return nil }
func (m *MockStore) GetDailyRecord(date string) (*models.DailyRecord, error) {
	return nil, persistence.ErrRecordNotFound
}
func (m *MockStore) SaveDailyRecord(rec *models.DailyRecord) error { return nil }
func (m *MockStore) Close() error                                  { return nil }

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(roomCode string, ev broadcast.Event) error { return nil }
func (nopBroadcaster) CloseRoom(roomCode string)                         {}

func testLookup() *dataset.Lookup {
	teams := []string{"Strikers", "Royals", "Titans", "Knights"}
	nations := []string{"India", "Australia", "England", "New Zealand", "South Africa"}
	players := make([]dataset.Cricketer, 20)
	for i := range players {
		players[i] = dataset.Cricketer{
			ID:     i + 1,
			Name:   fmt.Sprintf("Player %02d", i+1),
			Nation: nations[i/4],
			Teams:  []string{teams[i%4], teams[(i+1)%4]},
		}
	}
	return dataset.NewLookup(dataset.NewPool("overall", players))
}

func newMatchmaker(t *testing.T, store *MockStore) *Matchmaker {
	t.Helper()
	timers := timer.NewTimerManager()
	t.Cleanup(timers.Stop)
	profiles := services.NewProfileService(store, rating.Default, 1200)
	coord := room.NewCoordinator(room.Config{DefaultGridSize: 3, MatchTimeLimit: time.Hour},
		board.NewGenerator(testLookup()), profiles, nopBroadcaster{}, timers)
	return NewMatchmaker(coord, profiles, 300, "overall", 3, board.DifficultyNormal)
}

func expectResult(t *testing.T, ch <-chan Result, who string) Result {
	t.Helper()
	select {
	case res, ok := <-ch:
		if !ok {
			t.Fatalf("Result channel for %s closed without a match", who)
		}
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %s's match", who)
	}
	return Result{}
}

func TestMatchmaker_PairsWithinWindow(t *testing.T) {
	store := NewMockStore()
	store.seed("u1", 1200)
	store.seed("u2", 1400)
	m := newMatchmaker(t, store)

	ch1, _, err := m.Enqueue("u1", "Alice")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if m.Waiting() != 1 {
		t.Fatalf("Expected 1 waiting, got %d", m.Waiting())
	}

	ch2, _, err := m.Enqueue("u2", "Bob")
	if err != nil {
		t.Fatalf("Second enqueue failed: %v", err)
	}

	r1 := expectResult(t, ch1, "u1")
	r2 := expectResult(t, ch2, "u2")
	if r1.Code != r2.Code {
		t.Fatalf("Both players should land in the same room: %q vs %q", r1.Code, r2.Code)
	}
	if r1.View == nil || r1.View.Status != "active" {
		t.Errorf("Paired room should be active, got %+v", r1.View)
	}
	if m.Waiting() != 0 {
		t.Errorf("Queue should drain after pairing, got %d", m.Waiting())
	}
}

func TestMatchmaker_RespectsRatingWindow(t *testing.T) {
	store := NewMockStore()
	store.seed("u1", 1200)
	store.seed("u2", 1600)
	m := newMatchmaker(t, store)

	ch1, _, _ := m.Enqueue("u1", "Alice")
	m.Enqueue("u2", "Bob")

	select {
	case res := <-ch1:
		t.Fatalf("Players 400 apart must not pair, got %+v", res)
	case <-time.After(100 * time.Millisecond):
	}
	if m.Waiting() != 2 {
		t.Errorf("Both players should stay queued, got %d", m.Waiting())
	}
}

func TestMatchmaker_WindowBoundaryInclusive(t *testing.T) {
	store := NewMockStore()
	store.seed("u1", 1200)
	store.seed("u2", 1500)
	m := newMatchmaker(t, store)

	ch1, _, _ := m.Enqueue("u1", "Alice")
	ch2, _, _ := m.Enqueue("u2", "Bob")

	expectResult(t, ch1, "u1")
	expectResult(t, ch2, "u2")
}

func TestMatchmaker_PicksClosestRating(t *testing.T) {
	store := NewMockStore()
	store.seed("u1", 1100)
	store.seed("u2", 1450)
	store.seed("u3", 1400)
	m := newMatchmaker(t, store)

	ch1, _, _ := m.Enqueue("u1", "Alice")
	ch2, _, _ := m.Enqueue("u2", "Bob")
	ch3, _, _ := m.Enqueue("u3", "Carol")

	expectResult(t, ch2, "u2")
	expectResult(t, ch3, "u3")
	if m.Waiting() != 1 {
		t.Errorf("The farther player should stay queued, got %d waiting", m.Waiting())
	}
	select {
	case res := <-ch1:
		t.Fatalf("u1 is 300 away while u2 is 50 away, u1 must not pair: %+v", res)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMatchmaker_Cancel(t *testing.T) {
	store := NewMockStore()
	store.seed("u1", 1200)
	store.seed("u2", 1200)
	m := newMatchmaker(t, store)

	ch1, cancel, _ := m.Enqueue("u1", "Alice")
	cancel()
	if m.Waiting() != 0 {
		t.Fatalf("Cancel should drain the ticket, got %d waiting", m.Waiting())
	}

	m.Enqueue("u2", "Bob")
	select {
	case res := <-ch1:
		t.Fatalf("Cancelled player must not be paired, got %+v", res)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMatchmaker_RequeueReplacesTicket(t *testing.T) {
	store := NewMockStore()
	store.seed("u1", 1200)
	m := newMatchmaker(t, store)

	m.Enqueue("u1", "Alice")
	m.Enqueue("u1", "Alice")
	if m.Waiting() != 1 {
		t.Errorf("Re-queueing the same user should keep one ticket, got %d", m.Waiting())
	}
}

func TestMatchmaker_UnknownUserGetsDefaultRating(t *testing.T) {
	store := NewMockStore()
	m := newMatchmaker(t, store)

	if _, _, err := m.Enqueue("fresh", "Fresh"); err != nil {
		t.Fatalf("Unknown users should be enqueued at the initial rating: %v", err)
	}
	p, err := store.GetProfile("fresh")
	if err != nil {
		t.Fatalf("Enqueue should create the profile: %v", err)
	}
	if p.Rating != 1200 {
		t.Errorf("Expected initial rating 1200, got %v", p.Rating)
	}
}
