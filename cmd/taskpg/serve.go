package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/youssefsiam38/taskpg/auth"
	"github.com/youssefsiam38/taskpg/ui"
)

func newServeCmd(a *app) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply the schema before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, migrate bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	if migrate {
		if err := e.client.Migrate(ctx); err != nil {
			return err
		}
	}

	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	handlers, err := e.handlers(&ui.Config{
		BasePath:        a.cfg.UI.BasePath,
		Location:        loc,
		Logger:          a.logger,
		RefreshInterval: a.cfg.UI.RefreshInterval,
		SecureCookie:    a.cfg.UI.SecureCookie,
	})
	if err != nil {
		return err
	}
	defer handlers.Close()

	unsubscribe := e.client.Auth().OnAuthStateChange(func(ev auth.Event) {
		a.logger.Info("auth event", "type", ev.Type, "profile_id", ev.ProfileID)
	})
	defer unsubscribe()

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.routes(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := e.client.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", "addr", srv.Addr, "ui", a.cfg.UI.BasePath+"/", "driver", a.cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if stopErr := e.client.Stop(shutdownCtx); stopErr != nil {
			a.logger.Warn("client stop failed", "error", stopErr)
		}
		return err
	})
	return g.Wait()
}

// routes mounts the frontend under the base path and the API under /api.
func (a *app) routes(h *ui.Handlers) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", h.API))

	base := a.cfg.UI.BasePath
	if base == "" {
		mux.Handle("/", h.UI)
		return mux
	}
	mux.Handle(base+"/", http.StripPrefix(base, h.UI))
	mux.Handle("GET /{$}", http.RedirectHandler(base+"/", http.StatusFound))
	return mux
}
