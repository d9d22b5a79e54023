package main

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zulandar/atila/internal/config"
	"github.com/zulandar/atila/internal/db"
	"github.com/zulandar/atila/internal/logging"
	"github.com/zulandar/atila/internal/recalc"
	"github.com/zulandar/atila/internal/worklist"
)

// app bundles what most commands need.
type app struct {
	cfg *config.Config
	db  *gorm.DB
	log *zap.Logger
	svc *worklist.Service
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}

	return cfg, gormDB, nil
}

// openApp loads config, connects, migrates and wires the worklist service.
func openApp(configPath string) (*app, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	log, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, nil)
	if err != nil {
		return nil, err
	}
	r, err := recalc.New(recalc.Opts{
		DB:          gormDB,
		Logger:      log,
		Concurrency: cfg.Recalc.Concurrency,
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, db: gormDB, log: log, svc: worklist.New(gormDB, r)}, nil
}

// truncate shortens s to at most maxLen runes, ending in "...".
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
