// models/models.go
package models

import (
	"time"
)

// Profile 玩家档案（由评分引擎更新）
type Profile struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Rating     float64   `json:"rating"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	Draws      int       `json:"draws"`
	TotalGames int       `json:"total_games"`
	WinStreak  int       `json:"win_streak"`
	BestStreak int       `json:"best_streak"`
	MissSum    int       `json:"miss_sum"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MatchRecord 对局记录
type MatchRecord struct {
	RoomCode    string        `json:"room_code"`
	Mode        string        `json:"mode"`
	WinnerID    string        `json:"winner_id"` // empty on draw
	Players     []PlayerScore `json:"players"`
	RatingDelta float64       `json:"rating_delta"` // from player1's perspective
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
}

// PlayerScore 单个玩家在一局中的成绩
type PlayerScore struct {
	UserID string  `json:"user_id"`
	Name   string  `json:"name"`
	Cells  int     `json:"cells"`
	Misses int     `json:"misses"`
	Score  float64 `json:"score"`
}

// DailyRecord is the stored state of one calendar day's shared challenge.
type DailyRecord struct {
	Date    string       `json:"date"` // YYYY-MM-DD, UTC
	Seed    int64        `json:"seed"`
	Entries []DailyEntry `json:"entries"`
}

// DailyEntry 每日挑战排行榜条目
type DailyEntry struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Seconds    float64   `json:"seconds"`
	Misses     int       `json:"misses"`
	FinishedAt time.Time `json:"finished_at"`
}
