package frontend

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
	"github.com/youssefsiam38/taskpg/ui/service"
)

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
	// Apply bounds validation
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

// formInt reads an integer form value, defaulting to 0.
func formInt(r *http.Request, key string) int {
	i, _ := strconv.Atoi(strings.TrimSpace(r.FormValue(key)))
	return i
}

// taskID validates the {id} path parameter.
func taskID(r *http.Request) (string, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// logError logs an error if the logger is configured.
// It's used for optional data fetches that shouldn't break the page.
func (rt *router[TTx]) logError(msg string, err error) {
	if rt.config.Logger != nil {
		rt.config.Logger.Warn(msg, "error", err.Error())
	}
}

func (rt *router[TTx]) serverError(w http.ResponseWriter, r *http.Request, err error) {
	if rt.config.Logger != nil {
		rt.config.Logger.Error("request failed", "error", err, "path", r.URL.Path)
	}
	if r.Header.Get("HX-Request") == "true" {
		http.Error(w, "Cannot load workspace", http.StatusInternalServerError)
		return
	}
	p := page{Title: "Cannot load workspace", Status: http.StatusInternalServerError}
	if err := rt.renderer.render(w, r, "error.html", p); err != nil {
		http.Error(w, "Cannot load workspace", http.StatusInternalServerError)
	}
}

// Main page handlers

func (rt *router[TTx]) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.svc.GetDashboardStats(r.Context())
	if err != nil {
		rt.serverError(w, r, err)
		return
	}

	data := map[string]any{
		"Stats":    stats,
		"Statuses": types.Statuses,
	}
	if err := rt.renderer.render(w, r, "dashboard.html", page{Title: "Dashboard", Data: data}); err != nil {
		rt.serverError(w, r, err)
	}
}

func (rt *router[TTx]) taskListParams(r *http.Request) service.TaskListParams {
	q := r.URL.Query()
	return service.TaskListParams{
		Status:   q.Get("status"),
		Assignee: q.Get("assignee"),
		Category: q.Get("category"),
		Search:   q.Get("q"),
		OrderBy:  service.ValidateOrderBy(q.Get("order_by"), service.AllowedTaskOrderBy),
		OrderDir: service.ValidateOrderDir(q.Get("order_dir")),
		Limit:    parseInt(r, "limit", rt.config.PageSize),
		Offset:   parseOffset(r, "offset", 0),
	}
}

func (rt *router[TTx]) taskRowsData(r *http.Request) (map[string]any, error) {
	params := rt.taskListParams(r)
	list, err := rt.svc.ListTasks(r.Context(), params)
	if err != nil {
		return nil, err
	}

	q := r.URL.Query()
	pageURL := func(offset int) string {
		q.Set("offset", strconv.Itoa(offset))
		return rt.path("/fragments/task-rows?" + q.Encode())
	}

	return map[string]any{
		"BasePath":   rt.config.BasePath,
		"Tasks":      list.Tasks,
		"TotalCount": list.TotalCount,
		"HasMore":    list.HasMore,
		"Params":     params,
		"PrevURL":    pageURL(max(0, params.Offset-params.Limit)),
		"NextURL":    pageURL(params.Offset + params.Limit),
	}, nil
}

func (rt *router[TTx]) handleTasks(w http.ResponseWriter, r *http.Request) {
	rows, err := rt.taskRowsData(r)
	if err != nil {
		rt.serverError(w, r, err)
		return
	}

	data := map[string]any{
		"Rows":       rows,
		"Statuses":   types.Statuses,
		"Categories": types.Categories,
		"OrderBy":    []string{"start_date", "end_date", "name", "priority", "progress", "status"},
	}
	if err := rt.renderer.render(w, r, "tasks.html", page{Title: "Tasks", Data: data}); err != nil {
		rt.serverError(w, r, err)
	}
}

func (rt *router[TTx]) handleFragmentTaskRows(w http.ResponseWriter, r *http.Request) {
	rows, err := rt.taskRowsData(r)
	if err != nil {
		rt.serverError(w, r, err)
		return
	}
	if err := rt.renderer.renderFragment(w, "fragments/task-rows.html", rows); err != nil {
		rt.serverError(w, r, err)
	}
}

// handleFragmentVersion answers the change poller. When the task feed moved
// past the version the page was rendered with, it shows a reload notice.
func (rt *router[TTx]) handleFragmentVersion(w http.ResponseWriter, r *http.Request) {
	seen, _ := strconv.ParseUint(r.URL.Query().Get("v"), 10, 64)
	current := rt.svc.Feed().Version()

	data := map[string]any{
		"BasePath":        rt.config.BasePath,
		"Version":         seen,
		"Changed":         current != seen,
		"RefreshInterval": int(rt.config.RefreshInterval.Seconds()),
	}
	if err := rt.renderer.renderFragment(w, "fragments/version.html", data); err != nil {
		rt.serverError(w, r, err)
	}
}

// taskFormData collects the choices a task form offers.
func (rt *router[TTx]) taskFormData(r *http.Request, id string, form service.TaskForm) (map[string]any, error) {
	tasks, err := rt.svc.Tasks(r.Context())
	if err != nil {
		return nil, err
	}
	profiles, err := rt.svc.ListProfiles(r.Context())
	if err != nil {
		return nil, err
	}

	others := make([]*storage.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != id {
			others = append(others, t)
		}
	}

	return map[string]any{
		"ID":          id,
		"Form":        form,
		"Tasks":       others,
		"Profiles":    profiles,
		"Statuses":    types.Statuses,
		"Priorities":  types.Priorities,
		"Categories":  types.Categories,
		"Recurrences": []types.RecurrenceRule{types.RecurrenceNone, types.RecurrenceDaily, types.RecurrenceWeekly, types.RecurrenceMonthly},
	}, nil
}

func (rt *router[TTx]) renderTaskForm(w http.ResponseWriter, r *http.Request, id string, form service.TaskForm, status int, flash *FlashMessage) {
	data, err := rt.taskFormData(r, id, form)
	if err != nil {
		rt.serverError(w, r, err)
		return
	}
	title := "New task"
	if id != "" {
		title = "Edit task"
	}
	if err := rt.renderer.render(w, r, "task-form.html", page{Title: title, Status: status, Flash: flash, Data: data}); err != nil {
		rt.serverError(w, r, err)
	}
}

// parseTaskForm reads a task form from the request body.
func parseTaskForm(r *http.Request) (service.TaskForm, error) {
	if err := r.ParseForm(); err != nil {
		return service.TaskForm{}, err
	}
	return service.TaskForm{
		Name:         r.PostFormValue("name"),
		Description:  r.PostFormValue("description"),
		StartDate:    r.PostFormValue("start_date"),
		EndDate:      r.PostFormValue("end_date"),
		Status:       r.PostFormValue("status"),
		Priority:     r.PostFormValue("priority"),
		Progress:     formInt(r, "progress"),
		Assignee:     r.PostFormValue("assignee"),
		ParentID:     r.PostFormValue("parent_id"),
		Category:     r.PostFormValue("category"),
		Recurrence:   r.PostFormValue("recurrence"),
		Interval:     formInt(r, "recurrence_interval"),
		Until:        r.PostFormValue("recurrence_until"),
		Dependencies: r.PostForm["dependencies"],
	}, nil
}

func (rt *router[TTx]) handleNewTask(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	form := service.TaskForm{
		Status:    string(types.StatusToDo),
		Priority:  string(types.PriorityMedium),
		Category:  string(types.CategoryRoutine),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		ParentID:  q.Get("parent_id"),
		Interval:  1,
	}
	if q.Get("start_date") == "" {
		form.StartDate = rt.svc.Today().String()
	}
	rt.renderTaskForm(w, r, "", form, http.StatusOK, nil)
}

func (rt *router[TTx]) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	form, err := parseTaskForm(r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	task, err := rt.svc.CreateTask(r.Context(), form)
	if service.IsValidationError(err) {
		rt.renderTaskForm(w, r, "", form, http.StatusUnprocessableEntity, &FlashMessage{Type: "error", Message: err.Error()})
		return
	}
	if err != nil {
		rt.serverError(w, r, err)
		return
	}
	rt.redirect(w, r, "/tasks/"+task.ID)
}

func (rt *router[TTx]) handleTaskDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	detail, err := rt.svc.GetTaskDetail(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		rt.serverError(w, r, err)
		return
	}
	data := map[string]any{"Detail": detail, "Statuses": types.Statuses}
	if err := rt.renderer.render(w, r, "task-detail.html", page{Title: detail.Task.Name, Data: data}); err != nil {
		rt.serverError(w, r, err)
	}
}

func (rt *router[TTx]) handleEditTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	task, err := rt.svc.Client().GetTask(r.Context(), id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	rt.renderTaskForm(w, r, id, service.FormFromTask(task), http.StatusOK, nil)
}

func (rt *router[TTx]) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	form, err := parseTaskForm(r)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	_, err = rt.svc.UpdateTask(r.Context(), id, form)
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.NotFound(w, r)
	case service.IsValidationError(err):
		rt.renderTaskForm(w, r, id, form, http.StatusUnprocessableEntity, &FlashMessage{Type: "error", Message: err.Error()})
	case err != nil:
		rt.serverError(w, r, err)
	default:
		rt.redirect(w, r, "/tasks/"+id)
	}
}

func (rt *router[TTx]) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	err := rt.svc.DeleteTask(r.Context(), id)
	if err != nil && !errors.Is(err, service.ErrNotFound) {
		rt.serverError(w, r, err)
		return
	}
	rt.redirect(w, r, "/tasks")
}

func (rt *router[TTx]) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	_, err := rt.svc.MoveTask(r.Context(), id, types.Status(r.PostFormValue("status")))
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.NotFound(w, r)
	case service.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case err != nil:
		rt.serverError(w, r, err)
	default:
		back := "/board"
		if r.PostFormValue("back") == "detail" {
			back = "/tasks/" + id
		}
		rt.redirect(w, r, back)
	}
}

func (rt *router[TTx]) handleBoard(w http.ResponseWriter, r *http.Request) {
	board, err := rt.svc.GetBoard(r.Context())
	if err != nil {
		rt.serverError(w, r, err)
		return
	}
	data := map[string]any{"Board": board, "Statuses": types.Statuses}
	if err := rt.renderer.render(w, r, "board.html", page{Title: "Board", Data: data}); err != nil {
		rt.serverError(w, r, err)
	}
}

// handleCalendar shows the month given as ?month=YYYY-MM.
func (rt *router[TTx]) handleCalendar(w http.ResponseWriter, r *http.Request) {
	day := rt.svc.Today()
	if month := r.URL.Query().Get("month"); month != "" {
		if parsed, err := civil.ParseDate(month + "-01"); err == nil {
			day = parsed
		}
	}
	cal, err := rt.svc.GetCalendar(r.Context(), day)
	if err != nil {
		rt.serverError(w, r, err)
		return
	}
	data := map[string]any{
		"Calendar": cal,
		"PrevKey":  monthKey(cal.Prev),
		"NextKey":  monthKey(cal.Next),
		"Weekdays": []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
	}
	if err := rt.renderer.render(w, r, "calendar.html", page{Title: cal.Title, Data: data}); err != nil {
		rt.serverError(w, r, err)
	}
}

func monthKey(d civil.Date) string {
	return d.String()[:7]
}

func (rt *router[TTx]) handlePeople(w http.ResponseWriter, r *http.Request) {
	rt.renderPeople(w, r, http.StatusOK, nil)
}

func (rt *router[TTx]) renderPeople(w http.ResponseWriter, r *http.Request, status int, flash *FlashMessage) {
	profiles, err := rt.svc.ListProfiles(r.Context())
	if err != nil {
		rt.serverError(w, r, err)
		return
	}
	teams, err := rt.svc.ListTeams(r.Context())
	if err != nil {
		rt.serverError(w, r, err)
		return
	}
	teamNames := make(map[string]string, len(teams))
	for _, t := range teams {
		teamNames[t.ID] = t.Name
	}
	type member struct {
		*storage.Profile
		Team string
	}
	members := make([]member, len(profiles))
	for i, p := range profiles {
		members[i].Profile = p
		if p.TeamID != nil {
			members[i].Team = teamNames[*p.TeamID]
		}
	}

	data := map[string]any{
		"Members":   members,
		"Teams":     teams,
		"CanManage": sessionFrom(r.Context()).Profile.Role == types.RoleAdmin,
	}
	if err := rt.renderer.render(w, r, "people.html", page{Title: "People", Status: status, Flash: flash, Data: data}); err != nil {
		rt.serverError(w, r, err)
	}
}

func (rt *router[TTx]) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r.Context()).Profile.Role != types.RoleAdmin {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	_, err := rt.svc.CreateTeam(r.Context(), r.PostFormValue("name"), r.PostFormValue("color"))
	if service.IsValidationError(err) {
		rt.renderPeople(w, r, http.StatusUnprocessableEntity, &FlashMessage{Type: "error", Message: "Team name is required"})
		return
	}
	if err != nil {
		rt.serverError(w, r, err)
		return
	}
	rt.redirect(w, r, "/people")
}
