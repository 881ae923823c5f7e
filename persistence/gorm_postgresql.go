// persistence/gorm_postgresql.go
package persistence

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/cricketbingo/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormProfile{},
		&models.GormMatchRecord{},
		&models.GormDailyRecord{},
	)
}

// GetProfile 加载玩家档案
func (p *GormPostgreSQL) GetProfile(userID string) (*models.Profile, error) {
	var row models.GormProfile
	if err := p.db.Where("user_id = ?", userID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return row.ToProfile(), nil
}

// SaveProfile 保存玩家档案（UPSERT）
func (p *GormPostgreSQL) SaveProfile(profile *models.Profile) error {
	var row models.GormProfile
	result := p.db.Where("user_id = ?", profile.UserID).First(&row)

	if result.Error == gorm.ErrRecordNotFound {
		row.FromProfile(profile)
		return p.db.Create(&row).Error
	} else if result.Error != nil {
		return result.Error
	}

	row.FromProfile(profile)
	return p.db.Save(&row).Error
}

// TopProfiles 按评分降序返回前N名玩家
func (p *GormPostgreSQL) TopProfiles(limit int) ([]*models.Profile, error) {
	var rows []models.GormProfile
	if err := p.db.Order("rating DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	profiles := make([]*models.Profile, len(rows))
	for i := range rows {
		profiles[i] = rows[i].ToProfile()
	}
	return profiles, nil
}

// AppendMatchHistory 追加一条对局记录
func (p *GormPostgreSQL) AppendMatchHistory(userID string, rec *models.MatchRecord) error {
	players, err := toJSONMap(map[string]interface{}{"players": rec.Players})
	if err != nil {
		return err
	}
	row := models.GormMatchRecord{
		UserID:      userID,
		RoomCode:    rec.RoomCode,
		Mode:        rec.Mode,
		WinnerID:    rec.WinnerID,
		Players:     players,
		RatingDelta: rec.RatingDelta,
		StartedAt:   rec.StartedAt,
		EndedAt:     rec.EndedAt,
	}
	return p.db.Create(&row).Error
}

// GetDailyRecord 加载某日的每日挑战记录
func (p *GormPostgreSQL) GetDailyRecord(date string) (*models.DailyRecord, error) {
	var row models.GormDailyRecord
	if err := p.db.Where("date = ?", date).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	rec := &models.DailyRecord{Date: row.Date, Seed: row.Seed}
	if raw, ok := row.Entries["entries"]; ok {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &rec.Entries); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// SaveDailyRecord 保存每日挑战记录（UPSERT，每个日期一行）
func (p *GormPostgreSQL) SaveDailyRecord(rec *models.DailyRecord) error {
	entries, err := toJSONMap(map[string]interface{}{"entries": rec.Entries})
	if err != nil {
		return err
	}

	var row models.GormDailyRecord
	result := p.db.Where("date = ?", rec.Date).First(&row)

	if result.Error == gorm.ErrRecordNotFound {
		row = models.GormDailyRecord{Date: rec.Date, Seed: rec.Seed, Entries: entries}
		return p.db.Create(&row).Error
	} else if result.Error != nil {
		return result.Error
	}

	row.Seed = rec.Seed
	row.Entries = entries
	return p.db.Save(&row).Error
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction 事务支持
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}

// toJSONMap 将任意结构体转为jsonb可存储的map
func toJSONMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
