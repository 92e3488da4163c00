package main

import (
	"database/sql"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vbonduro/shopsync/internal/config"
	"github.com/vbonduro/shopsync/internal/db"
	"github.com/vbonduro/shopsync/internal/device"
	"github.com/vbonduro/shopsync/internal/logging"
	"github.com/vbonduro/shopsync/internal/store"
)

// rootOptions are the global flags. Empty values defer to the environment.
type rootOptions struct {
	DBPath   string
	LogLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "shopsync",
		Short:         "Offline-first workshop device",
		Long:          "Keeps the workshop running while offline and reconciles with the cloud backend when it is reachable.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to the SQLite database (overrides DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newProvisionCommand(opts))
	cmd.AddCommand(newLogoutCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	return cmd
}

// app holds what every command needs: configuration, the logger and the open
// store.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	store  *store.Store
	device *device.Service

	closeLog func()
}

func openApp(opts *rootOptions) (*app, error) {
	cfg := config.Load()
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	logger, cleanup, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		cleanup()
		return nil, err
	}

	s := store.New(database)
	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       database,
		store:    s,
		device:   device.NewService(s.Device, logger),
		closeLog: cleanup,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
	a.closeLog()
}
