// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormProfile 玩家档案模型
type GormProfile struct {
	gorm.Model
	UserID     string  `gorm:"uniqueIndex;not null"`
	Name       string  `gorm:"not null"`
	Rating     float64 `gorm:"default:1200;index"`
	Wins       int     `gorm:"default:0"`
	Losses     int     `gorm:"default:0"`
	Draws      int     `gorm:"default:0"`
	TotalGames int     `gorm:"default:0"`
	WinStreak  int     `gorm:"default:0"`
	BestStreak int     `gorm:"default:0"`
	MissSum    int     `gorm:"default:0"`
}

// GormMatchRecord 对局记录模型
type GormMatchRecord struct {
	gorm.Model
	UserID      string                 `gorm:"index;not null"`
	RoomCode    string                 `gorm:"index;not null"`
	Mode        string                 `gorm:"not null"`
	WinnerID    string                 ``
	Players     map[string]interface{} `gorm:"type:jsonb"`
	RatingDelta float64                `gorm:"default:0"`
	StartedAt   time.Time              ``
	EndedAt     time.Time              ``
}

// GormDailyRecord 每日挑战模型，每个日期一行
type GormDailyRecord struct {
	gorm.Model
	Date    string                 `gorm:"uniqueIndex;not null"` // YYYY-MM-DD
	Seed    int64                  `gorm:"not null"`
	Entries map[string]interface{} `gorm:"type:jsonb"`
}

// ToProfile converts the GORM row to the wire model.
func (g *GormProfile) ToProfile() *Profile {
	return &Profile{
		UserID:     g.UserID,
		Name:       g.Name,
		Rating:     g.Rating,
		Wins:       g.Wins,
		Losses:     g.Losses,
		Draws:      g.Draws,
		TotalGames: g.TotalGames,
		WinStreak:  g.WinStreak,
		BestStreak: g.BestStreak,
		MissSum:    g.MissSum,
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}
}

// FromProfile copies the mutable fields of the wire model onto the row.
func (g *GormProfile) FromProfile(p *Profile) {
	g.UserID = p.UserID
	g.Name = p.Name
	g.Rating = p.Rating
	g.Wins = p.Wins
	g.Losses = p.Losses
	g.Draws = p.Draws
	g.TotalGames = p.TotalGames
	g.WinStreak = p.WinStreak
	g.BestStreak = p.BestStreak
	g.MissSum = p.MissSum
}
