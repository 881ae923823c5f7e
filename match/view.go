// match/view.go
package match

import (
	"time"
)

// CellView 广播给客户端的单元格视图，不包含答案集
type CellView struct {
	Row        int    `json:"row"`
	Col        int    `json:"col"`
	Kind       string `json:"kind"`
	Label      string `json:"label"`
	ResolvedBy string `json:"resolved_by,omitempty"`
	Answer     string `json:"answer,omitempty"`
}

// ParticipantView 玩家进度视图
type ParticipantView struct {
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	Cells     int     `json:"cells"`
	Misses    int     `json:"misses"`
	Score     float64 `json:"score"`
	Connected bool    `json:"connected"`
}

// View is the full session state a (re)joining client receives. The
// accepted-answer sets stay server-side.
type View struct {
	ID           string            `json:"id"`
	Code         string            `json:"code"`
	Mode         string            `json:"mode"`
	Status       string            `json:"status"`
	Size         int               `json:"size"`
	Winner       string            `json:"winner,omitempty"`
	Draw         bool              `json:"draw,omitempty"`
	Cells        []CellView        `json:"cells"`
	Participants []ParticipantView `json:"participants"`
	StartedAt    time.Time         `json:"started_at,omitempty"`
	EndedAt      time.Time         `json:"ended_at,omitempty"`
}

// Outcome is the immutable settlement snapshot taken at terminal
// state, consumed outside the session lock.
type Outcome struct {
	SessionID string
	Code      string
	Mode      Mode
	WinnerID  string
	Draw      bool
	Players   []ParticipantView
	StartedAt time.Time
	EndedAt   time.Time
}

// View snapshots the session for broadcast or reconnect.
func (s *Session) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() *View {
	v := &View{
		ID:        s.ID,
		Code:      s.Code,
		Mode:      string(s.Mode),
		Status:    s.status.String(),
		Size:      s.board.Size,
		Winner:    s.winnerID,
		Draw:      s.draw,
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
	}
	v.Cells = make([]CellView, len(s.board.Cells))
	for i, c := range s.board.Cells {
		v.Cells[i] = CellView{
			Row:        c.Row,
			Col:        c.Col,
			Kind:       c.Challenge.Kind,
			Label:      c.Challenge.Label,
			ResolvedBy: c.ResolvedBy,
			Answer:     c.Answer,
		}
	}
	v.Participants = s.participantViewsLocked()
	return v
}

func (s *Session) participantViewsLocked() []ParticipantView {
	views := make([]ParticipantView, len(s.parts))
	for i, p := range s.parts {
		views[i] = ParticipantView{
			UserID:    p.UserID,
			Name:      p.Name,
			Cells:     p.Cells,
			Misses:    p.Misses,
			Score:     p.Score(),
			Connected: p.Connected,
		}
	}
	return views
}

// Outcome snapshots the terminal result. Call only after the session
// reached finished or abandoned; the snapshot is settled outside the
// session lock so rating persistence never stalls the session.
func (s *Session) Outcome() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Outcome{
		SessionID: s.ID,
		Code:      s.Code,
		Mode:      s.Mode,
		WinnerID:  s.winnerID,
		Draw:      s.draw,
		Players:   s.participantViewsLocked(),
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
	}
}
