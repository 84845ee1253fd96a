// Package rest implements service.Service against the punchlist HTTP API.
//
// Authentication uses OAuth2 password and refresh_token grants against the
// server's /auth/v1/token endpoint. The session token is persisted to
// token.json in the config directory and refreshed transparently.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"punchlist/internal/config"
	"punchlist/internal/service"
)

const (
	// APITimeout bounds every remote call.
	APITimeout = 5 * time.Second

	// sessionPollInterval is how often OnSessionChange checks token.json
	// for changes made by another punchlist process.
	sessionPollInterval = 2 * time.Second
)

// Client implements service.Service against a punchlist server.
type Client struct {
	baseURL string
	cfg     *config.Config
	oauth   *oauth2.Config
	http    *http.Client
	log     *slog.Logger
}

// New creates a REST client for the server configured in cfg.
// It performs no network I/O; a missing token.json simply means the
// client starts signed out.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	base := strings.TrimRight(cfg.ServerURL, "/")
	if _, err := url.Parse(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid server URL: %q", cfg.ServerURL)
	}

	return &Client{
		baseURL: base,
		cfg:     cfg,
		oauth: &oauth2.Config{
			ClientID: "punchlist",
			Endpoint: oauth2.Endpoint{
				TokenURL:  base + "/auth/v1/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		http: &http.Client{},
		log:  cfg.Log(),
	}, nil
}

// signupResponse is the /auth/v1/signup response body.
type signupResponse struct {
	User         *identityJSON `json:"user"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
}

type identityJSON struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type taskJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

func (t taskJSON) task() service.Task {
	return service.Task{ID: t.ID, Title: t.Title, Done: t.Done, CreatedAt: t.CreatedAt}
}

// CurrentUser implements service.Service.
func (c *Client) CurrentUser(ctx context.Context) (*service.Identity, error) {
	tok, err := c.loadToken()
	if err != nil {
		return nil, &service.AuthError{Op: "read session", Err: err}
	}
	if tok == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	id, err := c.fetchIdentity(ctx, c.authedClient(ctx, tok))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// SignUp implements service.Service. A nil identity with a nil error
// means the account was created but awaits email confirmation.
func (c *Client) SignUp(ctx context.Context, email, password string) (*service.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/signup", bytes.NewReader(body))
	if err != nil {
		return nil, &service.AuthError{Op: "sign up", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &service.AuthError{Op: "sign up", Err: friendly(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, &service.AuthError{Op: "sign up", Err: statusError(resp)}
	}

	var sr signupResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &service.AuthError{Op: "sign up", Err: err}
	}

	if sr.User == nil {
		// Confirmation pending: no session was issued.
		return nil, nil
	}

	tok := &oauth2.Token{
		AccessToken:  sr.AccessToken,
		TokenType:    "bearer",
		RefreshToken: sr.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(sr.ExpiresIn) * time.Second),
	}
	if err := c.saveToken(tok); err != nil {
		return nil, &service.AuthError{Op: "sign up", Err: err}
	}
	return &service.Identity{ID: sr.User.ID, Email: sr.User.Email}, nil
}

// SignIn implements service.Service.
func (c *Client) SignIn(ctx context.Context, email, password string) (service.Identity, error) {
	tctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	tok, err := c.oauth.PasswordCredentialsToken(tctx, email, password)
	if err != nil {
		return service.Identity{}, &service.AuthError{Op: "sign in", Err: friendly(err)}
	}
	if err := c.saveToken(tok); err != nil {
		return service.Identity{}, &service.AuthError{Op: "sign in", Err: err}
	}

	ictx, cancelID := context.WithTimeout(ctx, APITimeout)
	defer cancelID()
	return c.fetchIdentity(ictx, c.authedClient(ictx, tok))
}

// SignOut implements service.Service. The local session is removed even
// when the remote revocation fails; the remote error is still returned
// so callers can log it.
func (c *Client) SignOut(ctx context.Context) error {
	tok, err := c.loadToken()
	if err != nil || tok == nil {
		c.removeToken()
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var remoteErr error
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil)
	if err == nil {
		resp, err := c.authedClient(ctx, tok).Do(req)
		if err != nil {
			remoteErr = friendly(err)
		} else {
			resp.Body.Close()
			if resp.StatusCode != http.StatusNoContent {
				remoteErr = statusError(resp)
			}
		}
	} else {
		remoteErr = err
	}

	c.removeToken()
	if remoteErr != nil {
		return &service.AuthError{Op: "sign out", Err: remoteErr}
	}
	return nil
}

// OnSessionChange implements service.Service. Concurrent punchlist
// processes share token.json; polling it approximates the session
// broadcast a browser tab would receive from its auth provider.
func (c *Client) OnSessionChange(fn func(*service.Identity)) service.Subscription {
	sub := &subscription{stop: make(chan struct{})}

	go func() {
		last := c.tokenFingerprint()
		ticker := time.NewTicker(sessionPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-sub.stop:
				return
			case <-ticker.C:
				cur := c.tokenFingerprint()
				if cur == last {
					continue
				}
				last = cur
				if cur == "" {
					fn(nil)
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), APITimeout)
				id, err := c.CurrentUser(ctx)
				cancel()
				if err != nil {
					c.log.Warn("session change lookup failed", "err", err)
					continue
				}
				fn(id)
			}
		}
	}()

	return sub
}

// ListTasks implements service.Service. Owner scoping happens
// server-side via the bearer token; the owner argument only binds the
// result to a working set.
func (c *Client) ListTasks(ctx context.Context, owner string) ([]service.Task, error) {
	res, err := c.do(ctx, http.MethodGet, "/rest/v1/tasks", nil, http.StatusOK)
	if err != nil {
		return nil, dataError("list tasks", err)
	}

	var items []taskJSON
	if err := json.Unmarshal(res, &items); err != nil {
		return nil, dataError("list tasks", err)
	}
	tasks := make([]service.Task, len(items))
	for i, it := range items {
		tasks[i] = it.task()
	}
	return tasks, nil
}

// CreateTask implements service.Service.
func (c *Client) CreateTask(ctx context.Context, owner, title string) (service.Task, error) {
	res, err := c.do(ctx, http.MethodPost, "/rest/v1/tasks", map[string]string{"title": title}, http.StatusCreated)
	if err != nil {
		return service.Task{}, dataError("create task", err)
	}

	var it taskJSON
	if err := json.Unmarshal(res, &it); err != nil {
		return service.Task{}, dataError("create task", err)
	}
	return it.task(), nil
}

// UpdateTask implements service.Service.
func (c *Client) UpdateTask(ctx context.Context, id string, fields service.TaskUpdate) error {
	body := map[string]any{}
	if fields.Title != nil {
		body["title"] = *fields.Title
	}
	if fields.Done != nil {
		body["done"] = *fields.Done
	}

	_, err := c.do(ctx, http.MethodPatch, "/rest/v1/tasks/"+url.PathEscape(id), body, http.StatusNoContent)
	return dataError("update task", err)
}

// DeleteTask implements service.Service.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/rest/v1/tasks/"+url.PathEscape(id), nil, http.StatusNoContent)
	return dataError("delete task", err)
}

// do issues an authenticated request with a per-call timeout and
// returns the response body after checking the expected status.
func (c *Client) do(ctx context.Context, method, path string, body any, want int) ([]byte, error) {
	tok, err := c.loadToken()
	if err != nil {
		return nil, &service.AuthError{Op: "read session", Err: err}
	}
	if tok == nil {
		return nil, &service.AuthError{Op: method + " " + path, Err: errors.New("not logged in (run: punchlist login)")}
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.authedClient(ctx, tok).Do(req)
	if err != nil {
		return nil, friendly(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return nil, statusError(resp)
	}
	return io.ReadAll(resp.Body)
}

// authedClient returns an HTTP client that attaches and auto-refreshes
// the bearer token, persisting any refreshed token to token.json.
func (c *Client) authedClient(ctx context.Context, tok *oauth2.Token) *http.Client {
	src := &savingSource{
		src:  c.oauth.TokenSource(ctx, tok),
		c:    c,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(ctx, src)
}

func (c *Client) fetchIdentity(ctx context.Context, client *http.Client) (service.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return service.Identity{}, &service.AuthError{Op: "current user", Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return service.Identity{}, &service.AuthError{Op: "current user", Err: friendly(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return service.Identity{}, &service.AuthError{Op: "current user", Err: statusError(resp)}
	}

	var id identityJSON
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return service.Identity{}, &service.AuthError{Op: "current user", Err: err}
	}
	return service.Identity{ID: id.ID, Email: id.Email}, nil
}

// loadToken reads token.json. A missing file means signed out, not an
// error.
func (c *Client) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.cfg.TokenPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}
	return &tok, nil
}

func (c *Client) saveToken(tok *oauth2.Token) error {
	if err := c.cfg.EnsureDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.cfg.TokenPath(), data, 0600)
}

func (c *Client) removeToken() {
	if err := os.Remove(c.cfg.TokenPath()); err != nil && !os.IsNotExist(err) {
		c.log.Warn("failed to remove token.json", "err", err)
	}
}

// tokenFingerprint identifies the stored session for change detection.
func (c *Client) tokenFingerprint() string {
	tok, err := c.loadToken()
	if err != nil || tok == nil {
		return ""
	}
	return tok.RefreshToken
}

// savingSource persists tokens back to token.json when the underlying
// source refreshes them.
type savingSource struct {
	src  oauth2.TokenSource
	c    *Client
	mu   sync.Mutex
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.c.saveToken(tok); err != nil {
			s.c.log.Warn("failed to persist refreshed token", "err", err)
		}
	}
	return tok, nil
}

type subscription struct {
	stop chan struct{}
	once sync.Once
}

func (s *subscription) Cancel() {
	s.once.Do(func() { close(s.stop) })
}

// dataError wraps err as a DataError unless it already carries auth
// semantics (401/403 responses stay auth errors so the caller can
// prompt for a new login).
func dataError(op string, err error) error {
	if err == nil {
		return nil
	}
	if service.IsAuth(err) {
		return err
	}
	return &service.DataError{Op: op, Err: err}
}

// statusError maps an HTTP error response to a user-facing error.
func statusError(resp *http.Response) error {
	msg := serverMessage(resp)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &service.AuthError{Op: "session", Err: errors.New("session expired or revoked (run: punchlist login)")}
	case http.StatusNotFound:
		return errors.New("not found")
	case http.StatusConflict:
		return errors.New("email already registered")
	}
	if msg != "" {
		return fmt.Errorf("server error: %s", msg)
	}
	return fmt.Errorf("server returned %s", resp.Status)
}

// serverMessage extracts the {"error": "..."} body, if any.
func serverMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) != nil {
		return ""
	}
	return body.Error
}

// friendly rewrites transport errors into messages fit for the status
// line, the same ones the CLI prints.
func friendly(err error) error {
	if err == nil {
		return nil
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		switch rerr.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return errors.New("invalid email or password")
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "context deadline exceeded") {
		return errors.New("request timed out")
	}
	return err
}
