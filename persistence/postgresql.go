// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/cricketbingo/models"
)

// PostgreSQL 不经过ORM的数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS profiles (
            id SERIAL PRIMARY KEY,
            user_id VARCHAR(255) UNIQUE NOT NULL,
            data JSONB NOT NULL,
            rating DOUBLE PRECISION NOT NULL DEFAULT 1200,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS match_history (
            id SERIAL PRIMARY KEY,
            user_id VARCHAR(255) NOT NULL,
            room_code VARCHAR(16) NOT NULL,
            record JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS daily_records (
            id SERIAL PRIMARY KEY,
            date VARCHAR(10) UNIQUE NOT NULL,
            seed BIGINT NOT NULL,
            entries JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_profiles_rating ON profiles(rating DESC);
        CREATE INDEX IF NOT EXISTS idx_match_history_user_id ON match_history(user_id);
        CREATE INDEX IF NOT EXISTS idx_daily_records_date ON daily_records(date);
    `)

	return err
}

// GetProfile 加载玩家档案
func (p *PostgreSQL) GetProfile(userID string) (*models.Profile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM profiles WHERE user_id = $1`, userID).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	var profile models.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveProfile 保存玩家档案（UPSERT）
func (p *PostgreSQL) SaveProfile(profile *models.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO profiles (user_id, data, rating)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id)
        DO UPDATE SET data = $2, rating = $3, updated_at = CURRENT_TIMESTAMP
    `
	_, err = p.db.ExecContext(ctx, query, profile.UserID, data, profile.Rating)
	return err
}

// TopProfiles 按评分降序返回前N名玩家
func (p *PostgreSQL) TopProfiles(limit int) ([]*models.Profile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := p.db.QueryContext(ctx,
		`SELECT data FROM profiles ORDER BY rating DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var profile models.Profile
		if err := json.Unmarshal(data, &profile); err != nil {
			return nil, err
		}
		profiles = append(profiles, &profile)
	}
	return profiles, rows.Err()
}

// AppendMatchHistory 追加一条对局记录
func (p *PostgreSQL) AppendMatchHistory(userID string, rec *models.MatchRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO match_history (user_id, room_code, record) VALUES ($1, $2, $3)`,
		userID, rec.RoomCode, data)
	return err
}

// GetDailyRecord 加载某日的每日挑战记录
func (p *PostgreSQL) GetDailyRecord(date string) (*models.DailyRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		seed    int64
		entries []byte
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT seed, entries FROM daily_records WHERE date = $1`, date).Scan(&seed, &entries)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	rec := &models.DailyRecord{Date: date, Seed: seed}
	if err := json.Unmarshal(entries, &rec.Entries); err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveDailyRecord 保存每日挑战记录（UPSERT）
func (p *PostgreSQL) SaveDailyRecord(rec *models.DailyRecord) error {
	entries, err := json.Marshal(rec.Entries)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
        INSERT INTO daily_records (date, seed, entries)
        VALUES ($1, $2, $3)
        ON CONFLICT (date)
        DO UPDATE SET entries = $3, updated_at = CURRENT_TIMESTAMP
    `
	_, err = p.db.ExecContext(ctx, query, rec.Date, rec.Seed, entries)
	return err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
