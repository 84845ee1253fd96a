package rest_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"punchlist/internal/backend/rest"
	"punchlist/internal/config"
	"punchlist/internal/service"
)

func newClient(t *testing.T, srv *httptest.Server) (*rest.Client, *config.Config) {
	t.Helper()
	cfg := &config.Config{Dir: t.TempDir(), ServerURL: srv.URL}
	c, err := rest.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, cfg
}

// writeToken stores a non-expiring session so requests carry a bearer.
func writeToken(t *testing.T, cfg *config.Config) {
	t.Helper()
	tok := `{"access_token":"test-access","token_type":"bearer","refresh_token":"test-refresh"}`
	if err := os.WriteFile(cfg.TokenPath(), []byte(tok), 0600); err != nil {
		t.Fatalf("write token: %v", err)
	}
}

func TestCurrentUser_NoTokenMeansSignedOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	c, _ := newClient(t, srv)
	id, err := c.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != nil {
		t.Errorf("expected nil identity without a token, got %+v", id)
	}
}

func TestSignIn_StoresTokenAndReturnsIdentity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("grant_type") != "password" {
			t.Errorf("expected password grant, got %q", r.FormValue("grant_type"))
		}
		if r.FormValue("username") != "a@b.com" || r.FormValue("password") != "pw" {
			t.Errorf("unexpected credentials %q/%q", r.FormValue("username"), r.FormValue("password"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"acc","token_type":"bearer","refresh_token":"ref","expires_in":3600}`)
	})
	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer acc" {
			t.Errorf("expected bearer acc, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"u1","email":"a@b.com"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, cfg := newClient(t, srv)
	id, err := c.SignIn(context.Background(), "a@b.com", "pw")
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if id.ID != "u1" || id.Email != "a@b.com" {
		t.Errorf("unexpected identity %+v", id)
	}

	data, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		t.Fatalf("token.json not written: %v", err)
	}
	var tok struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(data, &tok); err != nil || tok.RefreshToken != "ref" {
		t.Errorf("token.json missing refresh token: %s", data)
	}
}

func TestSignIn_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"invalid email or password"}`)
	}))
	defer srv.Close()

	c, cfg := newClient(t, srv)
	_, err := c.SignIn(context.Background(), "a@b.com", "wrong")
	if err == nil {
		t.Fatal("expected sign-in error")
	}
	if !service.IsAuth(err) {
		t.Errorf("expected an auth error, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "invalid email or password") {
		t.Errorf("expected a friendly credentials message, got %q", err.Error())
	}
	if _, err := os.Stat(cfg.TokenPath()); !os.IsNotExist(err) {
		t.Error("failed sign-in must not write token.json")
	}
}

func TestSignUp_ConfirmationPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/signup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"user":null,"access_token":"","refresh_token":"","expires_in":0}`)
	}))
	defer srv.Close()

	c, cfg := newClient(t, srv)
	id, err := c.SignUp(context.Background(), "a@b.com", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != nil {
		t.Errorf("confirmation-pending signup must return nil identity, got %+v", id)
	}
	if _, err := os.Stat(cfg.TokenPath()); !os.IsNotExist(err) {
		t.Error("no session token may be stored while confirmation is pending")
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error":"email already registered"}`)
	}))
	defer srv.Close()

	c, _ := newClient(t, srv)
	_, err := c.SignUp(context.Background(), "a@b.com", "pw")
	if err == nil || !strings.Contains(err.Error(), "email already registered") {
		t.Errorf("expected duplicate-email error, got %v", err)
	}
}

func TestListTasks_ParsesWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/tasks" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id":"t2","title":"newer","done":false,"created_at":"2025-02-01T10:00:00Z"},
			{"id":"t1","title":"older","done":true,"created_at":"2025-01-01T10:00:00Z"}
		]`)
	}))
	defer srv.Close()

	c, cfg := newClient(t, srv)
	writeToken(t, cfg)

	tasks, err := c.ListTasks(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	want := service.Task{
		ID: "t2", Title: "newer", Done: false,
		CreatedAt: time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	if !tasks[0].CreatedAt.Equal(want.CreatedAt) || tasks[0].ID != want.ID || tasks[0].Title != want.Title {
		t.Errorf("expected %+v, got %+v", want, tasks[0])
	}
	if !tasks[1].Done {
		t.Error("expected done flag parsed")
	}
}

func TestListTasks_WithoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	c, _ := newClient(t, srv)
	_, err := c.ListTasks(context.Background(), "u1")
	if !service.IsAuth(err) {
		t.Errorf("expected an auth error without a session, got %v", err)
	}
}

func TestUpdateTask_ExpiredSessionIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid or expired token"}`)
	}))
	defer srv.Close()

	c, cfg := newClient(t, srv)
	writeToken(t, cfg)

	done := true
	err := c.UpdateTask(context.Background(), "t1", service.TaskUpdate{Done: &done})
	if !service.IsAuth(err) {
		t.Errorf("a 401 must surface as an auth error, got %T: %v", err, err)
	}
}

func TestDeleteTask_NotFoundIsDataError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"task not found"}`)
	}))
	defer srv.Close()

	c, cfg := newClient(t, srv)
	writeToken(t, cfg)

	err := c.DeleteTask(context.Background(), "nope")
	if !service.IsData(err) {
		t.Fatalf("expected a data error, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found message, got %q", err.Error())
	}
}

func TestCreateTask_SendsTitleAndParsesTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title != "buy milk" {
			t.Errorf("expected title in body, got %+v (%v)", body, err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"t1","title":"buy milk","done":false,"created_at":"2025-02-01T10:00:00Z"}`)
	}))
	defer srv.Close()

	c, cfg := newClient(t, srv)
	writeToken(t, cfg)

	task, err := c.CreateTask(context.Background(), "u1", "buy milk")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if task.ID != "t1" || task.Title != "buy milk" {
		t.Errorf("unexpected task %+v", task)
	}
}

func TestSignOut_RemovesTokenEvenWhenRemoteFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, cfg := newClient(t, srv)
	writeToken(t, cfg)

	err := c.SignOut(context.Background())
	if err == nil {
		t.Error("expected the remote failure to be reported")
	}
	if _, statErr := os.Stat(cfg.TokenPath()); !os.IsNotExist(statErr) {
		t.Error("sign-out must remove token.json even when the remote call fails")
	}
}

func TestSignOut_WithoutSessionIsANoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	c, _ := newClient(t, srv)
	if err := c.SignOut(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// OnSessionChange polls token.json; another process signing in must be
// observed within a couple of poll intervals.
func TestOnSessionChange_SeesExternalSignInAndOut(t *testing.T) {
	if testing.Short() {
		t.Skip("polling test")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"u1","email":"a@b.com"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, cfg := newClient(t, srv)

	changes := make(chan *service.Identity, 2)
	sub := c.OnSessionChange(func(id *service.Identity) { changes <- id })
	defer sub.Cancel()

	// Another process signs in.
	writeToken(t, cfg)
	select {
	case id := <-changes:
		if id == nil || id.ID != "u1" {
			t.Errorf("expected identity u1, got %+v", id)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for sign-in notification")
	}

	// And signs out again.
	if err := os.Remove(filepath.Join(cfg.Dir, config.TokenFile)); err != nil {
		t.Fatalf("remove token: %v", err)
	}
	select {
	case id := <-changes:
		if id != nil {
			t.Errorf("expected nil identity on sign-out, got %+v", id)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for sign-out notification")
	}
}
