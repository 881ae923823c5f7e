package main

import (
	"github.com/wfunc/cricketbingo/board"
	"github.com/wfunc/cricketbingo/broadcast"
	"github.com/wfunc/cricketbingo/config"
	"github.com/wfunc/cricketbingo/daily"
	"github.com/wfunc/cricketbingo/dataset"
	"github.com/wfunc/cricketbingo/logger"
	"github.com/wfunc/cricketbingo/matchmaking"
	"github.com/wfunc/cricketbingo/monitor"
	"github.com/wfunc/cricketbingo/persistence"
	"github.com/wfunc/cricketbingo/rating"
	"github.com/wfunc/cricketbingo/room"
	"github.com/wfunc/cricketbingo/server"
	"github.com/wfunc/cricketbingo/services"
	"github.com/wfunc/cricketbingo/timer"
)

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Load cricketer pools; the server refuses to start without data.
	lookup, err := dataset.Load(cfg.Dataset.Pools)
	if err != nil {
		logger.Log.Fatalf("Failed to load cricketer data: %v", err)
	}

	// Initialize Database
	db, err := persistence.NewGormPostgreSQL(
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.DBName,
	)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Info("Database connection successful.")

	gen := board.NewGenerator(lookup)
	elo := rating.Engine{K: cfg.Game.EloK, Floor: cfg.Game.RatingFloor}
	profiles := services.NewProfileService(db, elo, cfg.Game.InitialRating)
	hub := broadcast.NewHub()

	timers := timer.NewTimerManager()
	defer timers.Stop()

	coordinator := room.NewCoordinator(room.Config{
		DefaultGridSize: cfg.Game.DefaultGridSize,
		MatchTimeLimit:  cfg.Game.MatchTimeLimit,
		DisconnectGrace: cfg.Game.DisconnectGrace,
		EvictionGrace:   cfg.Game.EvictionGrace,
		SweepInterval:   cfg.Game.SweepInterval,
	}, gen, profiles, hub, timers)

	scheduler := daily.NewScheduler(gen, coordinator, profiles, db,
		"overall", cfg.Game.DefaultGridSize, board.DifficultyNormal)
	coordinator.SetDailyRecorder(scheduler)

	matchmaker := matchmaking.NewMatchmaker(coordinator, profiles,
		int(cfg.Game.MatchmakingWindow), "overall", cfg.Game.DefaultGridSize, board.DifficultyNormal)

	mon := monitor.NewMonitor("cricketbingo")
	mon.StartServer(cfg.Server.MetricsAddress)

	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, cfg.Server.RPCAddress, server.Deps{
		Coordinator:    coordinator,
		ProfileService: profiles,
		Matchmaker:     matchmaker,
		Scheduler:      scheduler,
		Hub:            hub,
		Monitor:        mon,
	})

	logger.Log.Infof("Starting bingo server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
