package ui

import (
	"net/http"

	"github.com/youssefsiam38/taskpg"
	"github.com/youssefsiam38/taskpg/ui/api"
	"github.com/youssefsiam38/taskpg/ui/frontend"
	"github.com/youssefsiam38/taskpg/ui/service"
)

// Handlers holds the SSR frontend and the JSON API. Both run on one service,
// so they share the task feed and each user's timeline state.
type Handlers struct {
	// UI serves the HTMX frontend. Mount it under Config.BasePath.
	UI http.Handler

	// API serves the JSON API.
	API http.Handler

	svc interface{ Close() }
}

// New builds the frontend and API handlers for a client.
//
// Usage:
//
//	h, err := ui.New(client, &ui.Config{BasePath: "/ui"})
//	if err != nil { ... }
//	defer h.Close()
//	mux.Handle("/ui/", http.StripPrefix("/ui", h.UI))
//	mux.Handle("/api/", http.StripPrefix("/api", h.API))
func New[TTx any](client *taskpg.Client[TTx], cfg *Config) (*Handlers, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		c := *cfg
		cfg = &c
		cfg.applyDefaults()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	svc := service.New(client, &service.Options{Location: cfg.Location})

	var logger frontend.Logger
	if cfg.Logger != nil {
		logger = cfg.Logger
	}

	return &Handlers{
		UI: frontend.NewRouter(svc, &frontend.Config{
			BasePath:        cfg.BasePath,
			PageSize:        cfg.PageSize,
			RefreshInterval: cfg.RefreshInterval,
			CookieName:      cfg.CookieName,
			SecureCookie:    cfg.SecureCookie,
			Logger:          logger,
		}),
		API: api.NewRouter(svc, &api.Config{
			PageSize:      cfg.PageSize,
			EventInterval: cfg.EventInterval,
			CookieName:    cfg.CookieName,
			Logger:        logger,
		}),
		svc: svc,
	}, nil
}

// Close detaches the handlers from the client's change events.
func (h *Handlers) Close() {
	h.svc.Close()
}
