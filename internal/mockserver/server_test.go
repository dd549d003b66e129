package mockserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/me/shennong/pkg/model"
)

func testServer() *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New([]byte(`{"processors":{"mfcc":{}}}`), logger)
}

func do(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	srv := testServer()
	w := do(t, srv, "GET", "/api/users/current", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLoginAndCurrentUser(t *testing.T) {
	srv := testServer()
	srv.AddUser("a@example.com", "pw", false)

	w := do(t, srv, "POST", "/api/token", "", map[string]string{"email": "a@example.com", "password": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", w.Code)
	}

	w = do(t, srv, "POST", "/api/token", "", map[string]string{"email": "a@example.com", "password": "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body)
	}
	var tok model.Token
	json.Unmarshal(w.Body.Bytes(), &tok)

	w = do(t, srv, "GET", "/api/users/current", tok.AccessToken, nil)
	var u model.User
	json.Unmarshal(w.Body.Bytes(), &u)
	if u.Email != "a@example.com" {
		t.Errorf("current user = %+v", u)
	}
}

func TestAdminOnlyRoutes(t *testing.T) {
	srv := testServer()
	user := srv.AddUser("u@example.com", "pw", false)
	admin := srv.AddUser("admin@example.com", "pw", true)

	if w := do(t, srv, "GET", "/api/users", srv.IssueToken(user.ID), nil); w.Code != http.StatusForbidden {
		t.Errorf("user listing users: status = %d, want 403", w.Code)
	}
	if w := do(t, srv, "GET", "/api/users", srv.IssueToken(admin.ID), nil); w.Code != http.StatusOK {
		t.Errorf("admin listing users: status = %d, want 200", w.Code)
	}
}

func TestSubmitJobViolations(t *testing.T) {
	srv := testServer()
	u := srv.AddUser("u@example.com", "pw", false)

	w := do(t, srv, "POST", "/api/shennong-job", srv.IssueToken(u.ID), model.JobConfig{Channel: 3})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var body struct {
		Detail string `json:"detail"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if !strings.Contains(body.Detail, `"channel"`) {
		t.Errorf("detail = %q", body.Detail)
	}
}

func TestPaginate(t *testing.T) {
	srv := testServer()
	u := srv.AddUser("u@example.com", "pw", false)
	for i := 0; i < 30; i++ {
		srv.AddJob(u.ID, model.JobConfig{}, model.JobStateSuccess)
	}

	w := do(t, srv, "GET", "/api/users/1/tasks?page=2&per_page=25&desc=true", srv.IssueToken(u.ID), nil)
	var page model.Page[model.Job]
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 30 || len(page.Data) != 5 || page.HasMore() {
		t.Errorf("page = total %d, len %d, more %v", page.Total, len(page.Data), page.HasMore())
	}
	if page.Data[0].ID < page.Data[4].ID {
		t.Error("descending order not applied")
	}
}

func TestBucket(t *testing.T) {
	srv := testServer()
	if w := do(t, srv, "PUT", "/"+Bucket+"/p/a.wav", "", "data"); w.Code != http.StatusOK {
		t.Fatalf("put status = %d", w.Code)
	}
	if _, ok := srv.Object("p/a.wav"); !ok {
		t.Fatal("object not stored")
	}
	if w := do(t, srv, "DELETE", "/"+Bucket+"/p/a.wav", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if srv.ObjectCount() != 0 {
		t.Error("object not deleted")
	}
}
