// Package commands wires the engines into the tempo command tree.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tempo/internal/amqp"
	"tempo/internal/config"
	"tempo/internal/core"
	"tempo/internal/log"
	"tempo/internal/session"
	"tempo/internal/stats"
	"tempo/internal/store"
	"tempo/internal/sync"
	syncmem "tempo/internal/sync/memory"
	"tempo/internal/sync/sheets"
	"tempo/internal/transfer"
)

var (
	version = "dev"
	commit  = "none"
)

// app holds everything a command needs. It is built once in the root
// command's PersistentPreRunE and torn down after the run.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	db       *store.DB
	events   *amqp.Client
	engine   *session.Engine
	stats    *stats.Engine
	transfer *transfer.Reconciler
	syncer   *sync.Syncer
}

var a *app

var rootCmd = &cobra.Command{
	Use:   "tempo",
	Short: "A billable work-session tracker",
	Long: `tempo tracks billable work sessions: start, pause, resume, and stop
timers per category and account, report on the results, and replicate
the dataset to a remote spreadsheet.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		built, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}

		a = built

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if a != nil {
			a.close()
		}
	},
}

func buildApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%s", err)
	}

	logger := log.New(log.Config{
		Level:     cfg.LogLevel,
		Component: log.ComponentCLI,
		File:      cfg.LogFile,
	})
	log.SetDefault(logger)

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	db := store.NewDB(st)

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("event publishing disabled", log.FieldError, err)
		}
	}

	clock := core.SystemClock()

	var remote sync.RemoteStore
	if cfg.GoogleSpreadsheetID != "" {
		remote, err = sheets.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetPrefix)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("sheets remote: %w", err)
		}
	} else {
		remote = syncmem.New()
	}

	engine := session.New(db, clock,
		logger.WithComponent(log.ComponentSession), events)
	syncer := sync.New(db, remote, clock,
		logger.WithComponent(log.ComponentSync))

	// Mutations feed the offline change queue only when sync is on,
	// otherwise the queue would grow with nothing to drain it.
	if cfg.SyncEnabled {
		engine.SetChangeRecorder(syncer)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		events: events,
		engine: engine,
		stats:  stats.New(db, clock),
		transfer: transfer.New(db, clock,
			logger.WithComponent(log.ComponentTransfer)),
		syncer: syncer,
	}, nil
}

func (a *app) close() {
	if a.events != nil {
		a.events.Close()
	}

	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close store", log.FieldError, err)
	}
}

// currentUser resolves the --user flag to a user record, creating it
// on first use.
func (a *app) currentUser(ctx context.Context, cmd *cobra.Command) (*core.User, error) {
	username, _ := cmd.Flags().GetString("user")

	u, err := a.engine.UserByName(ctx, username)
	if err == nil {
		return u, nil
	}

	return a.engine.CreateUser(ctx, username)
}

func formatMs(ms int64) string {
	return time.Duration(ms * int64(time.Millisecond)).Round(time.Second).String()
}

// SetVersion sets the build information printed by the version command.
func SetVersion(v, c string) {
	version = v
	commit = c
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tempo %s (%s)\n", version, commit)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("user", "default", "username to act as")

	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionCmd)
}
