package main

import (
	"context"
	"os"

	"github.com/safar/petalstore/internal/config"
	"github.com/safar/petalstore/internal/database"
	"github.com/safar/petalstore/internal/logging"
	"github.com/safar/petalstore/migrations"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(config.LogConfig{Level: "info"}).WithError(err).Fatal("load config")
	}
	logger := logging.New(cfg.Log)

	if len(os.Args) < 2 {
		logger.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}
	direction := os.Args[1]

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("connect to database")
	}
	defer db.Close()

	n, err := database.Migrate(ctx, db, migrations.FS, direction, logger)
	if err != nil {
		logger.WithError(err).Fatal("run migrations")
	}

	logger.WithFields(logrus.Fields{"count": n, "direction": direction}).Info("migrations complete")
}
