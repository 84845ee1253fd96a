// Package service defines the backend-agnostic interface for auth and task operations.
package service

import "context"

// Subscription is a handle to a session-change subscription.
// Cancel releases the subscription and is safe to call more than once.
type Subscription interface {
	Cancel()
}

// Service defines the interface for backend auth and task operations.
// All remote calls go through this interface.
// Commands and the UI never speak HTTP directly.
type Service interface {
	// CurrentUser returns the identity for the stored session.
	// Returns (nil, nil) when no session exists.
	CurrentUser(ctx context.Context) (*Identity, error)

	// OnSessionChange subscribes to session changes made outside this
	// process. fn receives the new identity, or nil on sign-out.
	OnSessionChange(fn func(*Identity)) Subscription

	// SignUp registers a new account.
	// Returns (nil, nil) when the account was created but requires
	// confirmation before a session is issued.
	SignUp(ctx context.Context, email, password string) (*Identity, error)

	// SignIn authenticates with email and password and stores the session.
	SignIn(ctx context.Context, email, password string) (Identity, error)

	// SignOut revokes the session remotely and clears it locally.
	// The local session is cleared even if the remote call fails.
	SignOut(ctx context.Context) error

	// ListTasks returns the owner's tasks, newest first.
	ListTasks(ctx context.Context, owner string) ([]Task, error)

	// CreateTask creates a task for the owner and returns it with its
	// server-assigned ID and creation time.
	CreateTask(ctx context.Context, owner, title string) (Task, error)

	// UpdateTask applies a partial update to a task by ID.
	UpdateTask(ctx context.Context, id string, fields TaskUpdate) error

	// DeleteTask deletes a task by ID.
	DeleteTask(ctx context.Context, id string) error
}
