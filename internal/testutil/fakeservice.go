// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"punchlist/internal/service"
)

// ErrNotFound is returned when a resource is not found.
var ErrNotFound = errors.New("not found")

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu       sync.RWMutex
	identity *service.Identity
	tasks    []service.Task
	nextID   int
	nextSub  int
	subs     map[int]func(*service.Identity)
	calls    map[string]int
	clock    time.Time

	// Error injection for testing
	CurrentUserErr error
	SignUpErr      error
	SignInErr      error
	SignOutErr     error
	ListTasksErr   error
	CreateTaskErr  error
	UpdateTaskErr  error
	DeleteTaskErr  error

	// ConfirmationRequired makes SignUp succeed without issuing a
	// session, as backends do when email confirmation is pending.
	ConfirmationRequired bool
}

// NewFakeService creates a new FakeService with no session and no tasks.
func NewFakeService() *FakeService {
	return &FakeService{
		subs:  make(map[int]func(*service.Identity)),
		calls: make(map[string]int),
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// SetIdentity sets the current session identity.
func (f *FakeService) SetIdentity(id, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity = &service.Identity{ID: id, Email: email}
}

// SeedTask adds a task directly to the backing store.
// Tasks seeded later get later creation times.
func (f *FakeService) SeedTask(id, title string, done bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Second)
	f.tasks = append(f.tasks, service.Task{
		ID:        id,
		Title:     title,
		Done:      done,
		CreatedAt: f.clock,
	})
}

// Tasks returns a copy of the backing store, newest first.
func (f *FakeService) Tasks() []service.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := make([]service.Task, len(f.tasks))
	copy(result, f.tasks)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Calls returns how many times the named method was invoked.
func (f *FakeService) Calls(method string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls[method]
}

// ActiveSubscriptions returns the number of uncancelled session
// subscriptions.
func (f *FakeService) ActiveSubscriptions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// EmitSessionChange invokes all session subscribers with id, simulating
// a session change made outside the process.
func (f *FakeService) EmitSessionChange(id *service.Identity) {
	f.mu.Lock()
	f.identity = id
	fns := make([]func(*service.Identity), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}

func (f *FakeService) record(method string) {
	f.calls[method]++
}

// CurrentUser implements service.Service.
func (f *FakeService) CurrentUser(ctx context.Context) (*service.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CurrentUser")
	if f.CurrentUserErr != nil {
		return nil, f.CurrentUserErr
	}
	if f.identity == nil {
		return nil, nil
	}
	id := *f.identity
	return &id, nil
}

// OnSessionChange implements service.Service.
func (f *FakeService) OnSessionChange(fn func(*service.Identity)) service.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("OnSessionChange")
	f.nextSub++
	id := f.nextSub
	f.subs[id] = fn
	return &fakeSubscription{svc: f, id: id}
}

// SignUp implements service.Service.
func (f *FakeService) SignUp(ctx context.Context, email, password string) (*service.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SignUp")
	if f.SignUpErr != nil {
		return nil, f.SignUpErr
	}
	if f.ConfirmationRequired {
		return nil, nil
	}
	f.identity = &service.Identity{ID: "user-" + email, Email: email}
	id := *f.identity
	return &id, nil
}

// SignIn implements service.Service.
func (f *FakeService) SignIn(ctx context.Context, email, password string) (service.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SignIn")
	if f.SignInErr != nil {
		return service.Identity{}, f.SignInErr
	}
	f.identity = &service.Identity{ID: "user-" + email, Email: email}
	return *f.identity, nil
}

// SignOut implements service.Service.
// The session is cleared even when an error is injected, matching the
// interface contract.
func (f *FakeService) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SignOut")
	f.identity = nil
	return f.SignOutErr
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, owner string) ([]service.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTasks")
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	result := make([]service.Task, len(f.tasks))
	copy(result, f.tasks)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, owner, title string) (service.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateTask")
	if f.CreateTaskErr != nil {
		return service.Task{}, f.CreateTaskErr
	}
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	t := service.Task{
		ID:        fmt.Sprintf("task-%d", f.nextID),
		Title:     title,
		CreatedAt: f.clock,
	}
	f.tasks = append(f.tasks, t)
	return t, nil
}

// UpdateTask implements service.Service.
func (f *FakeService) UpdateTask(ctx context.Context, id string, fields service.TaskUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateTask")
	if f.UpdateTaskErr != nil {
		return f.UpdateTaskErr
	}
	for i, t := range f.tasks {
		if t.ID == id {
			if fields.Title != nil {
				f.tasks[i].Title = *fields.Title
			}
			if fields.Done != nil {
				f.tasks[i].Done = *fields.Done
			}
			return nil
		}
	}
	return ErrNotFound
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTask")
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type fakeSubscription struct {
	svc  *FakeService
	id   int
	once sync.Once
}

func (s *fakeSubscription) Cancel() {
	s.once.Do(func() {
		s.svc.mu.Lock()
		defer s.svc.mu.Unlock()
		delete(s.svc.subs, s.id)
	})
}
