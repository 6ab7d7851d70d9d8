package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/youssefsiam38/taskpg/auth"
	"github.com/youssefsiam38/taskpg/ui/service"
)

// Config holds API router configuration.
type Config struct {
	// PageSize for pagination.
	PageSize int

	// EventInterval is how often the change stream checks the feed version.
	EventInterval time.Duration

	// CookieName is the session cookie accepted in place of a bearer token.
	CookieName string

	// Logger for structured logging.
	Logger Logger
}

// Logger interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// router holds the API router state.
type router[TTx any] struct {
	svc    *service.Service[TTx]
	auth   *auth.Provider
	config *Config
}

// NewRouter creates a new API router.
func NewRouter[TTx any](svc *service.Service[TTx], cfg *Config) http.Handler {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 25
	}
	if cfg.EventInterval == 0 {
		cfg.EventInterval = time.Second
	}

	r := &router[TTx]{
		svc:    svc,
		auth:   svc.Client().Auth(),
		config: cfg,
	}

	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /auth/signin", r.handleSignIn)
	mux.HandleFunc("POST /auth/recover", r.handleRequestRecovery)
	mux.HandleFunc("POST /auth/recover/{token}", r.handleRecover)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /auth/signout", r.handleSignOut)
	protected.HandleFunc("PUT /auth/password", r.handleUpdatePassword)
	protected.HandleFunc("GET /me", r.handleMe)

	// Version and change stream
	protected.HandleFunc("GET /version", r.handleVersion)
	protected.HandleFunc("GET /events", r.handleEvents)

	// Views
	protected.HandleFunc("GET /dashboard", r.handleDashboard)
	protected.HandleFunc("GET /board", r.handleBoard)
	protected.HandleFunc("GET /calendar", r.handleCalendar)

	// Tasks
	protected.HandleFunc("GET /tasks", r.handleListTasks)
	protected.HandleFunc("POST /tasks", r.handleCreateTask)
	protected.HandleFunc("POST /tasks/import", r.handleImportTasks)
	protected.HandleFunc("GET /tasks/{id}", r.handleGetTask)
	protected.HandleFunc("PUT /tasks/{id}", r.handleUpdateTask)
	protected.HandleFunc("PATCH /tasks/{id}", r.handlePatchTask)
	protected.HandleFunc("DELETE /tasks/{id}", r.handleDeleteTask)
	protected.HandleFunc("POST /tasks/{id}/move", r.handleMoveTask)

	// Timeline
	protected.HandleFunc("GET /timeline", r.handleTimeline)
	protected.HandleFunc("POST /timeline/toggle", r.handleToggleRow)
	protected.HandleFunc("PUT /timeline/window", r.handleSetWindow)
	protected.HandleFunc("DELETE /timeline/window", r.handleResetWindow)
	protected.HandleFunc("PUT /timeline/categories", r.handleSetCategories)
	protected.HandleFunc("PUT /timeline/granularity", r.handleSetGranularity)
	protected.HandleFunc("POST /timeline/drag", r.handleDragBar)
	protected.HandleFunc("POST /timeline/progress", r.handleBarProgress)
	protected.HandleFunc("POST /timeline/scroll", r.handleScroll)

	// Directory
	protected.HandleFunc("GET /profiles", r.handleListProfiles)
	protected.HandleFunc("GET /teams", r.handleListTeams)
	protected.HandleFunc("POST /teams", r.handleCreateTeam)

	mux.Handle("/", r.authMiddleware(protected))

	return withMiddleware(mux, cfg)
}

// withMiddleware wraps the handler with common middleware.
func withMiddleware(handler http.Handler, cfg *Config) http.Handler {
	// Add JSON content type
	handler = jsonMiddleware(handler)
	// Add error recovery
	handler = recoveryMiddleware(handler, cfg.Logger)
	return handler
}

// jsonMiddleware sets JSON content type for all responses.
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func recoveryMiddleware(next http.Handler, logger Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if logger != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				}
				http.Error(w, `{"error":{"code":"internal_error","message":"internal server error"}}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type sessionKey struct{}

// authMiddleware resolves the bearer token (or session cookie) into a
// session. Recovery sessions may only change the password.
func (rt *router[TTx]) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" && rt.config.CookieName != "" {
			if c, err := r.Cookie(rt.config.CookieName); err == nil {
				token = c.Value
			}
		}

		session, err := rt.auth.Session(r.Context(), token)
		switch {
		case errors.Is(err, auth.ErrInvalidSession), errors.Is(err, auth.ErrSessionExpired):
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		case err != nil:
			rt.internalError(w, r, err)
			return
		}

		if session.Recovery() && !(r.Method == http.MethodPut && r.URL.Path == "/auth/password") &&
			r.URL.Path != "/auth/signout" {
			writeError(w, http.StatusForbidden, "password_reset_required", "set a new password first")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// sessionFrom returns the session attached by authMiddleware.
func sessionFrom(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionKey{}).(*auth.Session)
	return session
}
