package frontend

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/youssefsiam38/taskpg/auth"
	"github.com/youssefsiam38/taskpg/ui/service"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// DefaultCookieName is the session cookie used when Config.CookieName is empty.
const DefaultCookieName = "taskpg_session"

// Config holds frontend router configuration.
type Config struct {
	// BasePath is the URL prefix where the UI is mounted.
	// All navigation links will be prefixed with this path.
	BasePath string

	// PageSize for pagination.
	PageSize int

	// RefreshInterval for the task change poller.
	RefreshInterval time.Duration

	// CookieName names the session cookie.
	CookieName string

	// SecureCookie marks the session cookie Secure. Enable behind HTTPS.
	SecureCookie bool

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

// router holds the frontend router state.
type router[TTx any] struct {
	svc      *service.Service[TTx]
	auth     *auth.Provider
	config   *Config
	renderer *renderer
}

// NewRouter creates a new frontend router.
func NewRouter[TTx any](svc *service.Service[TTx], cfg *Config) http.Handler {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 25
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 5 * time.Second
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}

	rend, err := newRenderer(templatesFS, cfg, svc.Feed().Version, svc.Client().Now)
	if err != nil {
		panic(fmt.Sprintf("frontend: %v", err))
	}

	r := &router[TTx]{
		svc:      svc,
		auth:     svc.Client().Auth(),
		config:   cfg,
		renderer: rend,
	}

	mux := http.NewServeMux()

	// Static assets
	staticSub, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Public auth pages
	mux.HandleFunc("GET /login", r.handleLoginPage)
	mux.HandleFunc("POST /login", r.handleLogin)
	mux.HandleFunc("GET /recover", r.handleRecoverPage)
	mux.HandleFunc("POST /recover", r.handleRequestRecovery)
	mux.HandleFunc("GET /recover/{token}", r.handleRecover)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /logout", r.handleLogout)
	protected.HandleFunc("GET /password", r.handlePasswordPage)
	protected.HandleFunc("POST /password", r.handleUpdatePassword)

	// Main pages
	protected.HandleFunc("GET /{$}", r.handleDashboard)
	protected.HandleFunc("GET /tasks", r.handleTasks)
	protected.HandleFunc("GET /tasks/new", r.handleNewTask)
	protected.HandleFunc("POST /tasks", r.handleCreateTask)
	protected.HandleFunc("GET /tasks/{id}", r.handleTaskDetail)
	protected.HandleFunc("GET /tasks/{id}/edit", r.handleEditTask)
	protected.HandleFunc("POST /tasks/{id}", r.handleUpdateTask)
	protected.HandleFunc("POST /tasks/{id}/delete", r.handleDeleteTask)
	protected.HandleFunc("POST /tasks/{id}/move", r.handleMoveTask)
	protected.HandleFunc("GET /board", r.handleBoard)
	protected.HandleFunc("GET /calendar", r.handleCalendar)
	protected.HandleFunc("GET /people", r.handlePeople)
	protected.HandleFunc("POST /teams", r.handleCreateTeam)

	// Timeline
	protected.HandleFunc("GET /timeline", r.handleTimeline)
	protected.HandleFunc("POST /timeline/toggle", r.handleTimelineToggle)
	protected.HandleFunc("POST /timeline/window", r.handleTimelineWindow)
	protected.HandleFunc("POST /timeline/window/reset", r.handleTimelineResetWindow)
	protected.HandleFunc("POST /timeline/categories", r.handleTimelineCategories)
	protected.HandleFunc("POST /timeline/granularity", r.handleTimelineGranularity)
	protected.HandleFunc("POST /timeline/drag", r.handleTimelineDrag)
	protected.HandleFunc("POST /timeline/progress", r.handleTimelineProgress)
	protected.HandleFunc("POST /timeline/scroll", r.handleTimelineScroll)

	// HTMX fragments
	protected.HandleFunc("GET /fragments/task-rows", r.handleFragmentTaskRows)
	protected.HandleFunc("GET /fragments/version", r.handleFragmentVersion)

	mux.Handle("/", r.authMiddleware(protected))

	return withFrontendMiddleware(mux, cfg)
}

// withFrontendMiddleware wraps the handler with frontend-specific middleware.
func withFrontendMiddleware(handler http.Handler, cfg *Config) http.Handler {
	handler = frontendRecoveryMiddleware(handler, cfg.Logger)
	return handler
}

// frontendRecoveryMiddleware recovers from panics.
func frontendRecoveryMiddleware(next http.Handler, logger Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if logger != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				}
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
