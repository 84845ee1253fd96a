package server

import (
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrEmailTaken is returned when a signup reuses an existing email.
var ErrEmailTaken = errors.New("email already registered")

// ErrNotFound is returned for lookups that match no row.
var ErrNotFound = errors.New("not found")

// User is a server-side account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
}

// Task is a server-side task row.
type Task struct {
	ID        string
	UserID    string
	Title     string
	Done      bool
	CreatedAt time.Time
}

// Store persists users, refresh tokens, and tasks in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the SQLite database at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func sqliteDSN(path string) string {
	v := url.Values{}
	v.Set("mode", "rwc")
	v.Set("_pragma", "busy_timeout(5000)")
	return "file:" + filepath.ToSlash(path) + "?" + v.Encode()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS refresh_tokens (
	token TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	done INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_user_created ON tasks(user_id, created_at DESC);`
	_, err := s.db.Exec(ddl)
	return err
}

// CreateUser inserts a new account. Returns ErrEmailTaken when the
// email is already registered.
func (s *Store) CreateUser(email, passwordHash string) (User, error) {
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
	}
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?);`,
		u.ID, u.Email, u.PasswordHash, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

// UserByEmail looks up an account by email.
func (s *Store) UserByEmail(email string) (User, error) {
	var u User
	err := s.db.QueryRow(
		`SELECT id, email, password_hash FROM users WHERE email = ?;`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// UserByID looks up an account by id.
func (s *Store) UserByID(id string) (User, error) {
	var u User
	err := s.db.QueryRow(
		`SELECT id, email, password_hash FROM users WHERE id = ?;`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// InsertRefreshToken stores a refresh token for userID.
func (s *Store) InsertRefreshToken(token, userID string) error {
	_, err := s.db.Exec(
		`INSERT INTO refresh_tokens (token, user_id, created_at) VALUES (?, ?, ?);`,
		token, userID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// UserIDForRefreshToken resolves a refresh token to its owner.
func (s *Store) UserIDForRefreshToken(token string) (string, error) {
	var userID string
	err := s.db.QueryRow(
		`SELECT user_id FROM refresh_tokens WHERE token = ?;`, token,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}

// DeleteRefreshToken revokes a refresh token. Deleting an unknown
// token is not an error.
func (s *Store) DeleteRefreshToken(token string) error {
	_, err := s.db.Exec(`DELETE FROM refresh_tokens WHERE token = ?;`, token)
	return err
}

// ListTasks returns userID's tasks ordered by creation time descending.
func (s *Store) ListTasks(userID string) ([]Task, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, title, done, created_at FROM tasks
		 WHERE user_id = ? ORDER BY created_at DESC, rowid DESC;`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var done int
		var created string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &done, &created); err != nil {
			return nil, err
		}
		t.Done = done != 0
		t.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a task for userID and returns it.
func (s *Store) CreateTask(userID, title string) (Task, error) {
	t := Task{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, user_id, title, done, created_at) VALUES (?, ?, ?, 0, ?);`,
		t.ID, t.UserID, t.Title, t.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// UpdateTask applies a partial update to one of userID's tasks.
// Returns ErrNotFound when the task does not exist or belongs to
// someone else.
func (s *Store) UpdateTask(id, userID string, title *string, done *bool) error {
	sets := []string{}
	args := []any{}
	if title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *title)
	}
	if done != nil {
		v := 0
		if *done {
			v = 1
		}
		sets = append(sets, "done = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id, userID)

	res, err := s.db.Exec(
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?;`, args...,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes one of userID's tasks. Returns ErrNotFound when
// nothing was deleted.
func (s *Store) DeleteTask(id, userID string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ? AND user_id = ?;`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
