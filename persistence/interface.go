// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/cricketbingo/models"
)

// Store 存储接口。评分写入失败可重试，引擎绝不静默丢弃。
type Store interface {
	GetProfile(userID string) (*models.Profile, error)
	SaveProfile(p *models.Profile) error
	TopProfiles(limit int) ([]*models.Profile, error)
	AppendMatchHistory(userID string, rec *models.MatchRecord) error
	GetDailyRecord(date string) (*models.DailyRecord, error)
	SaveDailyRecord(rec *models.DailyRecord) error
	Close() error
}

// 错误定义
var ErrRecordNotFound = fmt.Errorf("record not found")
