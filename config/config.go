package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// DatasetConfig maps pool names to the JSON files backing them.
type DatasetConfig struct {
	Pools map[string]string `mapstructure:"pools"`
}

// GameConfig 游戏规则参数
type GameConfig struct {
	DefaultGridSize   int           `mapstructure:"default_grid_size"`
	MatchTimeLimit    time.Duration `mapstructure:"match_time_limit"`
	DisconnectGrace   time.Duration `mapstructure:"disconnect_grace"`
	EvictionGrace     time.Duration `mapstructure:"eviction_grace"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	EloK              float64       `mapstructure:"elo_k"`
	RatingFloor       float64       `mapstructure:"rating_floor"`
	InitialRating     float64       `mapstructure:"initial_rating"`
	MatchmakingWindow float64       `mapstructure:"matchmaking_window"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	setDefaults()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}

func setDefaults() {
	viper.SetDefault("game.default_grid_size", 3)
	viper.SetDefault("game.match_time_limit", "10m")
	viper.SetDefault("game.disconnect_grace", "30s")
	viper.SetDefault("game.eviction_grace", "2m")
	viper.SetDefault("game.sweep_interval", "30s")
	viper.SetDefault("game.elo_k", 32)
	viper.SetDefault("game.rating_floor", 0)
	viper.SetDefault("game.initial_rating", 1200)
	viper.SetDefault("game.matchmaking_window", 300)
}
