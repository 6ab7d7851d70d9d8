package frontend

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
)

// renderer executes the embedded templates. Each page is parsed once into
// its own clone of the layout so "content" blocks do not collide.
type renderer struct {
	base    *template.Template
	pages   map[string]*template.Template
	config  *Config
	version func() uint64
	now     func() time.Time
}

// newRenderer parses the layout, the shared fragments and every page.
func newRenderer(fsys fs.FS, cfg *Config, version func() uint64, now func() time.Time) (*renderer, error) {
	base, err := template.New("").Funcs(templateFuncs(now)).ParseFS(fsys, "templates/base.html", "templates/fragments/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := path.Base(file)
		if name == "base.html" {
			continue
		}
		tmpl, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := tmpl.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &renderer{base: base, pages: pages, config: cfg, version: version, now: now}, nil
}

// PageData contains common data for all pages.
type PageData struct {
	Title           string
	BasePath        string
	CurrentPath     string
	User            *storage.Profile
	RefreshInterval int // seconds
	TasksVersion    uint64
	Flash           *FlashMessage
	Data            any
}

// FlashMessage represents a flash message.
type FlashMessage struct {
	Type    string // "success", "error", "info"
	Message string
}

// page describes one rendered page.
type page struct {
	Title  string
	Status int
	Flash  *FlashMessage
	Data   any
}

// render writes a full page. Output is buffered so a template error still
// produces a clean 500.
func (r *renderer) render(w http.ResponseWriter, req *http.Request, name string, p page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page template %q", name)
	}

	data := PageData{
		Title:           p.Title,
		BasePath:        r.config.BasePath,
		CurrentPath:     req.URL.Path,
		RefreshInterval: int(r.config.RefreshInterval.Seconds()),
		TasksVersion:    r.version(),
		Flash:           p.Flash,
		Data:            p.Data,
	}
	if session := sessionFrom(req.Context()); session != nil {
		data.User = session.Profile
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if p.Status != 0 {
		w.WriteHeader(p.Status)
	}
	_, err := buf.WriteTo(w)
	return err
}

// renderFragment writes one of the shared fragments, named by its path under
// templates/ (e.g. "fragments/timeline.html").
func (r *renderer) renderFragment(w http.ResponseWriter, name string, data any) error {
	var buf bytes.Buffer
	if err := r.base.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// formatDate prints a date as YYYY-MM-DD, or "-" when absent.
func formatDate(v any) string {
	switch d := v.(type) {
	case civil.Date:
		if d.IsValid() {
			return d.String()
		}
	case *civil.Date:
		if d != nil && d.IsValid() {
			return d.String()
		}
	}
	return "-"
}

// inputDate is formatDate for <input type="date"> values.
func inputDate(v any) string {
	if s := formatDate(v); s != "-" {
		return s
	}
	return ""
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

var agoUnits = []struct {
	size time.Duration
	name string
}{
	{24 * time.Hour, "day"},
	{time.Hour, "hour"},
	{time.Minute, "minute"},
}

// timeAgo renders t relative to now in the largest whole unit.
func timeAgo(now func() time.Time) func(time.Time) string {
	return func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		d := now().Sub(t)
		for _, u := range agoUnits {
			if n := int(d / u.size); n >= 1 {
				if n == 1 {
					return "1 " + u.name + " ago"
				}
				return fmt.Sprintf("%d %ss ago", n, u.name)
			}
		}
		return "just now"
	}
}

// truncate shortens s to n runes, ending with an ellipsis when cut.
func truncate(n int, s string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

var statusColors = map[types.Status]string{
	types.StatusToDo:       "bg-gray-100 text-gray-800",
	types.StatusInProgress: "bg-blue-100 text-blue-800",
	types.StatusBlocked:    "bg-red-100 text-red-800",
	types.StatusNeedHelp:   "bg-yellow-100 text-yellow-800",
	types.StatusDone:       "bg-green-100 text-green-800",
}

func statusColor(status types.Status) string {
	if c, ok := statusColors[status]; ok {
		return c
	}
	return statusColors[types.StatusToDo]
}

func priorityColor(priority types.Priority) string {
	switch priority {
	case types.PriorityUrgent:
		return "text-red-600"
	case types.PriorityHigh:
		return "text-orange-600"
	case types.PriorityMedium:
		return "text-blue-600"
	default:
		return "text-gray-500"
	}
}

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return part * 100 / total
}

// fallback returns def when s is blank.
func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// dict builds a map from key/value pairs so a template can pass several
// values to a fragment: {{template "x" (dict "A" .A "B" 2)}}.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

func templateFuncs(now func() time.Time) template.FuncMap {
	return template.FuncMap{
		"formatDate":    formatDate,
		"inputDate":     inputDate,
		"formatTime":    formatTime,
		"formatTimeAgo": timeAgo(now),
		"truncate":      truncate,
		"statusColor":   statusColor,
		"priorityColor": priorityColor,
		"markdown":      renderMarkdown,
		"percent":       percent,
		"mul":           func(a, b int) int { return a * b },
		"has":           func(list []string, s string) bool { return slices.Contains(list, s) },
		"default":       fallback,
		"dict":          dict,
	}
}
