package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/youssefsiam38/taskpg"
	"github.com/youssefsiam38/taskpg/auth"
	"github.com/youssefsiam38/taskpg/driver"
	"github.com/youssefsiam38/taskpg/driver/databasesql"
	"github.com/youssefsiam38/taskpg/driver/pgxv5"
	"github.com/youssefsiam38/taskpg/driver/sqlite"
	"github.com/youssefsiam38/taskpg/internal/config"
	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/ui"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "taskpg",
		Short: "taskpg - a task tracker with a hierarchical timeline",
		Long: `taskpg tracks tasks with dates, status, progress and parent/child structure,
and shows them as a list, a status board, a month calendar and a timeline.`,
		Version:       taskpg.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.NewLogger(os.Stderr)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newUserCmd(a))
	root.AddCommand(newImportCmd(a))

	return root
}

// tasker is the part of the client the commands use. Client[TTx] satisfies
// it for every driver.
type tasker interface {
	Migrate(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Auth() *auth.Provider
	CreateUser(ctx context.Context, profile *storage.Profile, password string) (*storage.Profile, error)
	ImportTasks(ctx context.Context, tasks []*storage.Task) (int, error)
}

// env is an opened database with its client.
type env struct {
	client   tasker
	handlers func(*ui.Config) (*ui.Handlers, error)
	close    func()
}

// open connects with the configured driver.
func (a *app) open(ctx context.Context) (*env, error) {
	url := a.cfg.Database.URL
	switch a.cfg.Database.Driver {
	case config.DriverPgx:
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect: %w", err)
		}
		return newEnv(a, pgxv5.New(pool), pool.Close)
	case config.DriverPq:
		db, err := sql.Open("postgres", url)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connect: %w", err)
		}
		return newEnv(a, databasesql.New(db, url), func() { _ = db.Close() })
	default:
		db, err := sqlite.Open(url)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", url, err)
		}
		return newEnv(a, sqlite.New(db), func() { _ = db.Close() })
	}
}

func newEnv[TTx any](a *app, drv driver.Driver[TTx], closeFn func()) (*env, error) {
	client, err := taskpg.NewClient(drv, &taskpg.ClientConfig{
		CleanupInterval: a.cfg.Maintenance.Interval,
		Auth: &auth.Config{
			SessionTTL:  a.cfg.Auth.SessionTTL,
			RecoveryTTL: a.cfg.Auth.RecoveryTTL,
		},
		Logger: a.logger,
		OnError: func(err error) {
			a.logger.Error("background operation failed", "error", err)
		},
	})
	if err != nil {
		closeFn()
		return nil, err
	}
	return &env{
		client: client,
		handlers: func(cfg *ui.Config) (*ui.Handlers, error) {
			return ui.New(client, cfg)
		},
		close: closeFn,
	}, nil
}
