package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/youssefsiam38/taskpg"
	"github.com/youssefsiam38/taskpg/auth"
	"github.com/youssefsiam38/taskpg/timeline"
	"github.com/youssefsiam38/taskpg/types"
	"github.com/youssefsiam38/taskpg/ui/service"
)

// Response wraps all API responses.
type Response struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
	Meta  *Meta     `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	TotalCount int  `json:"total_count,omitempty"`
	HasMore    bool `json:"has_more,omitempty"`
	Limit      int  `json:"limit,omitempty"`
	Offset     int  `json:"offset,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Data: data})
}

// writeJSONWithMeta writes a JSON response with metadata.
func writeJSONWithMeta(w http.ResponseWriter, status int, data any, meta *Meta) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Data: data, Meta: meta})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{
		Error: &APIError{Code: code, Message: message},
	})
}

// writeServiceError maps service errors onto status codes.
func (rt *router[TTx]) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "task not found")
	case service.IsValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", err.Error())
	default:
		rt.internalError(w, r, err)
	}
}

func (rt *router[TTx]) internalError(w http.ResponseWriter, r *http.Request, err error) {
	if rt.config.Logger != nil {
		rt.config.Logger.Error("request failed", "error", err, "path", r.URL.Path)
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return false
	}
	return true
}

// parseTaskID validates a task id path parameter.
func parseTaskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid task ID")
		return "", false
	}
	return id.String(), true
}

// parseInt parses an integer from a query parameter with a default.
// It applies bounds validation to prevent resource exhaustion.
func parseInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return service.ValidateLimit(i)
}

// parseOffset parses an offset from a query parameter with a default.
func parseOffset(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return service.ValidateOffset(i)
}

// Auth handlers

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
	Profile   any       `json:"profile"`
}

func newSessionResponse(s *auth.Session) sessionResponse {
	return sessionResponse{Token: s.Token, Kind: string(s.Kind), ExpiresAt: s.ExpiresAt, Profile: s.Profile}
}

func (rt *router[TTx]) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := rt.auth.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	if err != nil {
		rt.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (rt *router[TTx]) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := rt.auth.SignOut(r.Context(), sessionFrom(r.Context()).Token); err != nil {
		rt.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *router[TTx]) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	err := rt.auth.UpdatePassword(r.Context(), sessionFrom(r.Context()).Token, req.Password)
	if errors.Is(err, auth.ErrWeakPassword) {
		writeError(w, http.StatusUnprocessableEntity, "weak_password", err.Error())
		return
	}
	if err != nil {
		rt.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRequestRecovery always answers 202 so callers cannot probe for
// registered addresses. The token is logged for delivery by the operator.
func (rt *router[TTx]) handleRequestRecovery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	token, err := rt.auth.RequestRecovery(r.Context(), req.Email)
	if err != nil {
		rt.internalError(w, r, err)
		return
	}
	if token != "" && rt.config.Logger != nil {
		rt.config.Logger.Info("password recovery link issued", "email", req.Email, "token", token)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (rt *router[TTx]) handleRecover(w http.ResponseWriter, r *http.Request) {
	session, err := rt.auth.Recover(r.Context(), r.PathValue("token"))
	if errors.Is(err, auth.ErrInvalidRecoveryToken) {
		writeError(w, http.StatusGone, "invalid_recovery_token", err.Error())
		return
	}
	if err != nil {
		rt.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

func (rt *router[TTx]) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()).Profile)
}

// Version handlers

type versionResponse struct {
	Version    string `json:"version"`
	TasksEpoch uint64 `json:"tasks_epoch"`
}

func (rt *router[TTx]) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{
		Version:    taskpg.Version,
		TasksEpoch: rt.svc.Feed().Version(),
	})
}

// handleEvents streams a "tasks" event whenever the task feed changes.
func (rt *router[TTx]) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "sse_not_supported", "SSE not supported")
		return
	}

	send := func(epoch uint64) {
		_, _ = fmt.Fprintf(w, "event: tasks\ndata: {\"tasks_epoch\":%d}\n\n", epoch)
		flusher.Flush()
	}

	last := rt.svc.Feed().Version()
	send(last)

	ticker := time.NewTicker(rt.config.EventInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if v := rt.svc.Feed().Version(); v != last {
				last = v
				send(v)
			}
		}
	}
}

// View handlers

func (rt *router[TTx]) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.svc.GetDashboardStats(r.Context())
	if err != nil {
		rt.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *router[TTx]) handleBoard(w http.ResponseWriter, r *http.Request) {
	board, err := rt.svc.GetBoard(r.Context())
	if err != nil {
		rt.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleCalendar serves the month given as ?month=YYYY-MM, defaulting to
// the current month.
func (rt *router[TTx]) handleCalendar(w http.ResponseWriter, r *http.Request) {
	day := rt.svc.Today()
	if month := r.URL.Query().Get("month"); month != "" {
		parsed, err := civil.ParseDate(month + "-01")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_month", "month must be YYYY-MM")
			return
		}
		day = parsed
	}
	cal, err := rt.svc.GetCalendar(r.Context(), day)
	if err != nil {
		rt.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// Task handlers

func (rt *router[TTx]) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := service.TaskListParams{
		Status:   q.Get("status"),
		Assignee: q.Get("assignee"),
		Category: q.Get("category"),
		Search:   q.Get("q"),
		Limit:    parseInt(r, "limit", rt.config.PageSize),
		Offset:   parseOffset(r, "offset", 0),
		OrderBy:  service.ValidateOrderBy(q.Get("order_by"), service.AllowedTaskOrderBy),
		OrderDir: service.ValidateOrderDir(q.Get("order_dir")),
	}

	list, err := rt.svc.ListTasks(r.Context(), params)
	if err != nil {
		rt.internalError(w, r, err)
		return
	}

	writeJSONWithMeta(w, http.StatusOK, list.Tasks, &Meta{
		TotalCount: list.TotalCount,
		HasMore:    list.HasMore,
		Limit:      params.Limit,
		Offset:     params.Offset,
	})
}

func (rt *router[TTx]) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}
	detail, err := rt.svc.GetTaskDetail(r.Context(), id)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (rt *router[TTx]) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var form service.TaskForm
	if !decodeBody(w, r, &form) {
		return
	}
	task, err := rt.svc.CreateTask(r.Context(), form)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (rt *router[TTx]) handleImportTasks(w http.ResponseWriter, r *http.Request) {
	var forms []service.TaskForm
	if !decodeBody(w, r, &forms) {
		return
	}
	n, err := rt.svc.ImportTasks(r.Context(), forms)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"imported": n})
}

func (rt *router[TTx]) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}
	var form service.TaskForm
	if !decodeBody(w, r, &form) {
		return
	}
	task, err := rt.svc.UpdateTask(r.Context(), id, form)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (rt *router[TTx]) handlePatchTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}
	var form service.TaskPatchForm
	if !decodeBody(w, r, &form) {
		return
	}
	patch, err := form.Patch()
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	task, err := rt.svc.PatchTask(r.Context(), id, patch)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (rt *router[TTx]) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}
	if err := rt.svc.DeleteTask(r.Context(), id); err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *router[TTx]) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status types.Status `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	task, err := rt.svc.MoveTask(r.Context(), id, req.Status)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Timeline handlers

func (rt *router[TTx]) userID(r *http.Request) string {
	return sessionFrom(r.Context()).Profile.ID
}

func (rt *router[TTx]) writeTimeline(w http.ResponseWriter, r *http.Request) {
	view, err := rt.svc.TimelineView(r.Context(), rt.userID(r))
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *router[TTx]) handleTimeline(w http.ResponseWriter, r *http.Request) {
	rt.writeTimeline(w, r)
}

type rowRequest struct {
	Key timeline.RowKey `json:"key"`
}

func (rt *router[TTx]) handleToggleRow(w http.ResponseWriter, r *http.Request) {
	var req rowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rt.svc.ToggleRow(rt.userID(r), req.Key)
	rt.writeTimeline(w, r)
}

func (rt *router[TTx]) handleSetWindow(w http.ResponseWriter, r *http.Request) {
	var req timeline.Window
	if !decodeBody(w, r, &req) {
		return
	}
	if err := rt.svc.SetWindow(rt.userID(r), req.From, req.To); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_input", err.Error())
		return
	}
	rt.writeTimeline(w, r)
}

func (rt *router[TTx]) handleResetWindow(w http.ResponseWriter, r *http.Request) {
	rt.svc.ResetWindow(rt.userID(r))
	rt.writeTimeline(w, r)
}

func (rt *router[TTx]) handleSetCategories(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Categories []types.Category `json:"categories"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	rt.svc.SetCategories(rt.userID(r), req.Categories)
	rt.writeTimeline(w, r)
}

func (rt *router[TTx]) handleSetGranularity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Granularity string `json:"granularity"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	rt.svc.SetGranularity(rt.userID(r), timeline.ParseGranularity(req.Granularity))
	rt.writeTimeline(w, r)
}

// dragRequest either moves a bar by Days or drops it at Start..End.
type dragRequest struct {
	Key   timeline.RowKey `json:"key"`
	Edge  string          `json:"edge"`
	Days  int             `json:"days"`
	Start *civil.Date     `json:"start"`
	End   *civil.Date     `json:"end"`
}

func (rt *router[TTx]) handleDragBar(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		view *timeline.View
		err  error
	)
	if req.Start != nil && req.End != nil {
		view, err = rt.svc.RescheduleBar(r.Context(), rt.userID(r), req.Key, *req.Start, *req.End)
	} else {
		view, err = rt.svc.DragBar(r.Context(), rt.userID(r), req.Key, service.ParseDragEdge(req.Edge), req.Days)
	}
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *router[TTx]) handleBarProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key      timeline.RowKey `json:"key"`
		Progress int             `json:"progress"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := rt.svc.SetBarProgress(r.Context(), rt.userID(r), req.Key, req.Progress)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type scrollRequest struct {
	Chart *int `json:"chart"`
	Wheel int  `json:"wheel"`
}

type scrollResponse struct {
	Tree  int `json:"tree"`
	Chart int `json:"chart"`
}

func (rt *router[TTx]) handleScroll(w http.ResponseWriter, r *http.Request) {
	var req scrollRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var tree, chart int
	if req.Chart != nil {
		tree, chart = rt.svc.ScrollChart(rt.userID(r), *req.Chart)
	} else {
		tree, chart = rt.svc.WheelTree(rt.userID(r), req.Wheel)
	}
	writeJSON(w, http.StatusOK, scrollResponse{Tree: tree, Chart: chart})
}

// Directory handlers

func (rt *router[TTx]) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := rt.svc.ListProfiles(r.Context())
	if err != nil {
		rt.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (rt *router[TTx]) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := rt.svc.ListTeams(r.Context())
	if err != nil {
		rt.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (rt *router[TTx]) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r.Context()).Profile.Role != types.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "only admins can create teams")
		return
	}
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	team, err := rt.svc.CreateTeam(r.Context(), req.Name, req.Color)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}
