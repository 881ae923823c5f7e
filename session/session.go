// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/cricketbingo/network"
)

// Session is one live connection. The read loop, the per-room event
// pump and the matchmaking callback all touch a session concurrently,
// so every mutable field sits behind the session mutex; ID, Conn and
// CreatedAt are fixed at construction.
type Session struct {
	ID        string
	Conn      network.Connection
	CreatedAt time.Time

	mutex       sync.Mutex
	userID      string
	name        string
	roomCode    string
	lastActive  time.Time
	unsubscribe func()
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
	}
}

func (s *Session) Send(msgID uint16, data []byte) error {
	s.Touch()
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

// SetIdentity records who the connection belongs to, once the client
// has identified itself.
func (s *Session) SetIdentity(userID, name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.userID = userID
	s.name = name
}

func (s *Session) UserID() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.userID
}

func (s *Session) Name() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.name
}

// RoomCode returns the room the connection is currently pumping events
// for, or empty.
func (s *Session) RoomCode() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.roomCode
}

// Touch marks the connection as recently active.
func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastActive
}

// AttachRoom records the active room and its event-pump cancel func,
// tearing down any previous subscription first. One room per
// connection.
func (s *Session) AttachRoom(code string, unsubscribe func()) {
	s.mutex.Lock()
	old := s.unsubscribe
	s.roomCode = code
	s.unsubscribe = unsubscribe
	s.mutex.Unlock()
	if old != nil {
		old()
	}
}

// DetachRoom cancels the event pump and returns the code it was
// attached to.
func (s *Session) DetachRoom() string {
	s.mutex.Lock()
	code := s.roomCode
	unsub := s.unsubscribe
	s.roomCode = ""
	s.unsubscribe = nil
	s.mutex.Unlock()
	if unsub != nil {
		unsub()
	}
	return code
}

func (s *Session) Close() error {
	s.DetachRoom()
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByUserID(userID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.UserID() == userID {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
