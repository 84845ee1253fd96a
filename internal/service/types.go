package service

import "time"

// Task represents a single task item.
type Task struct {
	ID        string
	Title     string
	Done      bool
	CreatedAt time.Time
}

// Identity represents an authenticated user.
type Identity struct {
	ID    string
	Email string
}

// TaskUpdate describes a partial update to a task.
// Nil fields are left unchanged.
type TaskUpdate struct {
	Title *string
	Done  *bool
}
