// broadcast/broadcast.go
package broadcast

import (
	"errors"
	"sync"
)

var ErrRoomNotFound = errors.New("room not found")

// EventType identifies a room event.
type EventType string

const (
	EventSessionStarted    EventType = "session_started"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventCellResolved      EventType = "cell_resolved"
	EventGuessRejected     EventType = "guess_rejected"
	EventSessionFinished   EventType = "session_finished"
	EventRatingUpdated     EventType = "rating_updated"
)

// Event 房间内广播的一条事件
type Event struct {
	Type    EventType   `json:"type"`
	Room    string      `json:"room"`
	Payload interface{} `json:"payload,omitempty"`
}

// 广播接口
type Broadcaster interface {
	Publish(roomCode string, ev Event) error
	Subscribe(roomCode, participantID string) (<-chan Event, func())
}

// subscriber buffer; a consumer this far behind is considered dead and
// starts losing events rather than blocking the room.
const subscriberBuffer = 64

// Hub is the in-process pub/sub fan-out. Publish order within one room
// is delivery order for every subscriber that keeps up.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[string]chan Event // room -> participant -> queue
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]chan Event)}
}

// Publish fans the event out to every current subscriber of the room.
// Publishing to a room with no subscribers is not an error; rooms are
// created lazily by Subscribe.
func (h *Hub) Publish(roomCode string, ev Event) error {
	ev.Room = roomCode

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.rooms[roomCode] {
		select {
		case ch <- ev:
		default:
			// Slow consumer: drop for this subscriber only.
		}
	}
	return nil
}

// Subscribe registers a participant's event stream for one room. The
// returned cancel func drops the subscription and closes the channel;
// resubscribing with the same participant id replaces the old stream.
func (h *Hub) Subscribe(roomCode, participantID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	subs, ok := h.rooms[roomCode]
	if !ok {
		subs = make(map[string]chan Event)
		h.rooms[roomCode] = subs
	}
	if old, ok := subs[participantID]; ok {
		close(old)
	}
	subs[participantID] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if cur, ok := h.rooms[roomCode][participantID]; ok && cur == ch {
			delete(h.rooms[roomCode], participantID)
			if len(h.rooms[roomCode]) == 0 {
				delete(h.rooms, roomCode)
			}
			close(ch)
		}
	}
	return ch, cancel
}

// Subscribers reports the current subscriber count of a room.
func (h *Hub) Subscribers(roomCode string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomCode])
}

// CloseRoom drops every subscriber of a room. Called on eviction.
func (h *Hub) CloseRoom(roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.rooms[roomCode] {
		close(ch)
	}
	delete(h.rooms, roomCode)
}
