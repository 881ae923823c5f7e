package server

import (
	"errors"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/cricketbingo/broadcast"
	"github.com/wfunc/cricketbingo/logger"
	"github.com/wfunc/cricketbingo/network"
	"github.com/wfunc/cricketbingo/session"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// MockConnection is a test double for the network.Connection
// interface. FailSends makes every write error like a broken socket.
type MockConnection struct {
	mu        sync.Mutex
	FailSends bool
	sent      []uint16
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSends {
		return errors.New("broken pipe")
	}
	m.sent = append(m.sent, msgID)
	return nil
}

func (m *MockConnection) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestAttachRoom_PumpsEvents(t *testing.T) {
	hub := broadcast.NewHub()
	s := &GameServer{hub: hub}
	conn := &MockConnection{}
	sess := session.NewSession("s1", conn)
	sess.SetIdentity("u1", "Alice")

	s.attachRoom(sess, "123456")
	hub.Publish("123456", broadcast.Event{Type: broadcast.EventSessionStarted})

	waitFor(t, func() bool { return conn.sentCount() == 1 },
		"Published event should reach the connection")
}

func TestAttachRoom_ReleasesSubscriptionOnSendFailure(t *testing.T) {
	hub := broadcast.NewHub()
	s := &GameServer{hub: hub}
	conn := &MockConnection{FailSends: true}
	sess := session.NewSession("s1", conn)
	sess.SetIdentity("u1", "Alice")

	s.attachRoom(sess, "123456")
	if hub.Subscribers("123456") != 1 {
		t.Fatalf("Expected 1 subscriber after attach, got %d", hub.Subscribers("123456"))
	}

	hub.Publish("123456", broadcast.Event{Type: broadcast.EventSessionStarted})

	// The pump must drop its own subscription when the socket dies,
	// not linger until room eviction.
	waitFor(t, func() bool { return hub.Subscribers("123456") == 0 },
		"Dead connection should release its hub subscription")
}
