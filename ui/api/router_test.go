package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/youssefsiam38/taskpg"
	"github.com/youssefsiam38/taskpg/driver/sqlite"
	"github.com/youssefsiam38/taskpg/internal/testutil"
	"github.com/youssefsiam38/taskpg/storage"
	"github.com/youssefsiam38/taskpg/types"
	"github.com/youssefsiam38/taskpg/ui/service"
)

const testPassword = "correct horse"

type testAPI struct {
	t       *testing.T
	handler http.Handler
	svc     *service.Service[*sql.Tx]
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := taskpg.DefaultClientConfig()
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Now = func() time.Time { return time.Date(2024, time.January, 5, 12, 0, 0, 0, time.UTC) }

	client, err := taskpg.NewClient(sqlite.New(testutil.NewSQLiteDB(t)), cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if err := client.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	svc := service.New(client, &service.Options{Location: time.UTC})
	t.Cleanup(svc.Close)

	return &testAPI{t: t, handler: NewRouter(svc, nil), svc: svc}
}

func (a *testAPI) user(email string, role types.Role) string {
	a.t.Helper()
	_, err := a.svc.Client().CreateUser(context.Background(), &storage.Profile{Email: email, DisplayName: email, Role: role}, testPassword)
	if err != nil {
		a.t.Fatalf("CreateUser failed: %v", err)
	}

	rec := a.do(http.MethodPost, "/auth/signin", "", signInRequest{Email: email, Password: testPassword})
	if rec.Code != http.StatusOK {
		a.t.Fatalf("signin status = %d: %s", rec.Code, rec.Body)
	}
	var session sessionResponse
	decodeData(a.t, rec, &session)
	return session.Token
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) *Meta {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
		Meta *Meta           `json:"meta"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return resp.Meta
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("response has no error")
	}
	return resp.Error.Code
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"unknown token", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodGet, "/tasks", tt.token, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if got := rec.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q", got)
			}
		})
	}
}

func TestSignIn(t *testing.T) {
	a := newTestAPI(t)
	token := a.user("Ann@Example.com", types.RoleUser)

	rec := a.do(http.MethodPost, "/auth/signin", "", signInRequest{Email: "ann@example.com", Password: "wrong password"})
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "invalid_credentials" {
		t.Errorf("bad password: status = %d", rec.Code)
	}

	rec = a.do(http.MethodGet, "/me", token, nil)
	var me storage.Profile
	decodeData(t, rec, &me)
	if me.Email != "ann@example.com" {
		t.Errorf("me = %q, want lowercased email", me.Email)
	}

	if rec := a.do(http.MethodPost, "/auth/signout", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("signout status = %d", rec.Code)
	}
	if rec := a.do(http.MethodGet, "/me", token, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("after signout status = %d, want 401", rec.Code)
	}
}

func TestTaskCRUD(t *testing.T) {
	a := newTestAPI(t)
	token := a.user("ann@example.com", types.RoleUser)

	rec := a.do(http.MethodPost, "/tasks", token, service.TaskForm{Name: "Plan", StartDate: "2024-01-08", EndDate: "2024-01-10"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	var task storage.Task
	decodeData(t, rec, &task)

	rec = a.do(http.MethodGet, "/tasks/"+task.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	progress := 100
	rec = a.do(http.MethodPatch, "/tasks/"+task.ID, token, service.TaskPatchForm{Progress: &progress})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body)
	}
	var patched storage.Task
	decodeData(t, rec, &patched)
	if patched.Status != types.StatusDone {
		t.Errorf("status after 100%% = %q, want Done", patched.Status)
	}

	rec = a.do(http.MethodGet, "/tasks?limit=1", token, nil)
	var list []json.RawMessage
	meta := decodeData(t, rec, &list)
	if len(list) != 1 || meta == nil || meta.TotalCount != 1 {
		t.Errorf("list = %d items, meta %+v", len(list), meta)
	}

	if rec := a.do(http.MethodDelete, "/tasks/"+task.ID, token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := a.do(http.MethodGet, "/tasks/"+task.ID, token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestTaskErrors(t *testing.T) {
	a := newTestAPI(t)
	token := a.user("ann@example.com", types.RoleUser)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"bad id", http.MethodGet, "/tasks/42", nil, http.StatusBadRequest, "invalid_id"},
		{"unknown id", http.MethodDelete, "/tasks/8f0e1c7a-1d1b-4c35-9a43-3c6b1d7f0a11", nil, http.StatusNotFound, "not_found"},
		{"blank name", http.MethodPost, "/tasks", service.TaskForm{Name: " "}, http.StatusUnprocessableEntity, "invalid_input"},
		{"bad date", http.MethodPost, "/tasks", service.TaskForm{Name: "x", EndDate: "soon"}, http.StatusUnprocessableEntity, "invalid_input"},
		{"bad body", http.MethodPost, "/tasks", "not an object", http.StatusBadRequest, "invalid_body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(tt.method, tt.path, token, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := errorCode(t, rec); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestImportTasks(t *testing.T) {
	a := newTestAPI(t)
	token := a.user("ann@example.com", types.RoleUser)

	forms := []service.TaskForm{{Name: "a"}, {Name: "b"}}
	rec := a.do(http.MethodPost, "/tasks/import", token, forms)
	if rec.Code != http.StatusCreated {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body)
	}

	rec = a.do(http.MethodPost, "/tasks/import", token, []service.TaskForm{{Name: "c"}, {Name: ""}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad import status = %d, want 422", rec.Code)
	}

	rec = a.do(http.MethodGet, "/tasks", token, nil)
	var list []json.RawMessage
	decodeData(t, rec, &list)
	if len(list) != 2 {
		t.Errorf("tasks = %d, want 2", len(list))
	}
}

func TestTimelineEndpoints(t *testing.T) {
	a := newTestAPI(t)
	token := a.user("ann@example.com", types.RoleUser)

	rec := a.do(http.MethodPost, "/tasks", token, service.TaskForm{Name: "Plan", StartDate: "2024-01-08", EndDate: "2024-01-10", Assignee: "ann"})
	var task storage.Task
	decodeData(t, rec, &task)

	rec = a.do(http.MethodGet, "/timeline", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("timeline status = %d", rec.Code)
	}
	var view struct {
		Rows []struct {
			Key string `json:"key"`
		} `json:"rows"`
	}
	decodeData(t, rec, &view)
	if len(view.Rows) != 2 || view.Rows[0].Key != "user:ann" || view.Rows[1].Key != "cat:ann:routine" {
		t.Errorf("rows = %+v", view.Rows)
	}

	rec = a.do(http.MethodPost, "/timeline/toggle", token, map[string]string{"key": "cat:ann:routine"})
	decodeData(t, rec, &view)
	if len(view.Rows) != 3 || view.Rows[2].Key != "task:"+task.ID {
		t.Errorf("rows after expand = %+v", view.Rows)
	}

	for _, key := range []string{"user:ann", "cat:ann:routine"} {
		rec = a.do(http.MethodPost, "/timeline/drag", token, map[string]any{"key": key, "days": 5})
		if rec.Code != http.StatusOK {
			t.Fatalf("header drag status = %d", rec.Code)
		}
	}
	rec = a.do(http.MethodPost, "/timeline/drag", token, map[string]any{"key": "task:" + task.ID, "days": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("drag status = %d: %s", rec.Code, rec.Body)
	}

	got, err := a.svc.Client().GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.StartDate.String() != "2024-01-10" || got.EndDate.String() != "2024-01-12" {
		t.Errorf("dates = %v..%v, want shifted by 2 days only", got.StartDate, got.EndDate)
	}

	rec = a.do(http.MethodPost, "/timeline/drag", token, map[string]any{"key": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad key status = %d, want 400", rec.Code)
	}

	rec = a.do(http.MethodPost, "/timeline/scroll", token, map[string]any{"chart": 30})
	var offsets scrollResponse
	decodeData(t, rec, &offsets)
	if offsets.Tree != 30 || offsets.Chart != 30 {
		t.Errorf("offsets = %+v, want 30/30", offsets)
	}
}

func TestTimelineWindowLimit(t *testing.T) {
	a := newTestAPI(t)
	token := a.user("ann@example.com", types.RoleUser)

	rec := a.do(http.MethodPut, "/timeline/window", token, map[string]string{"from": "0001-01-01", "to": "9999-12-31"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body)
	}
	if code := errorCode(t, rec); code != "invalid_input" {
		t.Errorf("error code = %q", code)
	}

	rec = a.do(http.MethodPut, "/timeline/window", token, map[string]string{"from": "2024-01-01", "to": "2025-12-31"})
	if rec.Code != http.StatusOK {
		t.Fatalf("two-year window status = %d: %s", rec.Code, rec.Body)
	}
	var view struct {
		Window struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"window"`
	}
	decodeData(t, rec, &view)
	if view.Window.From != "2024-01-01" || view.Window.To != "2025-12-31" {
		t.Errorf("window = %+v", view.Window)
	}
}

func TestCreateTeamRequiresAdmin(t *testing.T) {
	a := newTestAPI(t)
	user := a.user("ann@example.com", types.RoleUser)
	admin := a.user("root@example.com", types.RoleAdmin)

	body := map[string]string{"name": "Ops", "color": "#123456"}
	if rec := a.do(http.MethodPost, "/teams", user, body); rec.Code != http.StatusForbidden {
		t.Errorf("user status = %d, want 403", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/teams", admin, body); rec.Code != http.StatusCreated {
		t.Errorf("admin status = %d, want 201", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/teams", admin, map[string]string{"name": ""}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("blank name status = %d, want 422", rec.Code)
	}
}

func TestRecoverySessionIsRestricted(t *testing.T) {
	a := newTestAPI(t)
	a.user("ann@example.com", types.RoleUser)

	link, err := a.svc.Client().Auth().RequestRecovery(context.Background(), "ann@example.com")
	if err != nil || link == "" {
		t.Fatalf("RequestRecovery = %q, %v", link, err)
	}

	rec := a.do(http.MethodPost, "/auth/recover/"+link, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recover status = %d", rec.Code)
	}
	var session sessionResponse
	decodeData(t, rec, &session)

	if rec := a.do(http.MethodGet, "/tasks", session.Token, nil); rec.Code != http.StatusForbidden {
		t.Errorf("tasks with recovery session status = %d, want 403", rec.Code)
	}
	rec = a.do(http.MethodPut, "/auth/password", session.Token, map[string]string{"password": "short"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("weak password status = %d, want 422", rec.Code)
	}
	rec = a.do(http.MethodPut, "/auth/password", session.Token, map[string]string{"password": "a much better one"})
	if rec.Code != http.StatusNoContent {
		t.Errorf("password status = %d, want 204", rec.Code)
	}

	if rec := a.do(http.MethodPost, "/auth/recover/"+link, "", nil); rec.Code != http.StatusGone {
		t.Errorf("second redeem status = %d, want 410", rec.Code)
	}
}

func TestVersion(t *testing.T) {
	a := newTestAPI(t)
	token := a.user("ann@example.com", types.RoleUser)
	a.do(http.MethodPost, "/tasks", token, service.TaskForm{Name: "x"})

	rec := a.do(http.MethodGet, "/version", token, nil)
	var v versionResponse
	decodeData(t, rec, &v)
	if v.Version != taskpg.Version || v.TasksEpoch != 1 {
		t.Errorf("version = %+v", v)
	}
}
