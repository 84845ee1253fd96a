// Package tasklist maintains the optimistic working copy of a user's tasks.
//
// The Reconciler is owned by a single event loop and is not safe for
// concurrent use. Each mutation follows a three-step protocol: a Begin
// call applies the optimistic edit and returns a pending Mutation,
// Perform executes the remote call (the only step that may run off the
// loop), and Resolve applies the outcome back to the working copy.
package tasklist

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"punchlist/internal/service"
)

// Reconciler holds the optimistic working copy of one user's task list.
// All methods except Perform and Fetch must be called from the owning
// event loop.
type Reconciler struct {
	svc service.Service
	log *slog.Logger

	owner      string
	tasks      []service.Task
	loadFailed bool
	gen        uint64
	inflight   int
}

// Outcome carries the result of a performed mutation back to the loop.
type Outcome struct {
	Mutation *Mutation
	Created  service.Task // set on a confirmed add
	Err      error
}

// New creates a Reconciler backed by svc.
func New(svc service.Service, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconciler{svc: svc, log: log}
}

// Tasks returns the current working copy, newest first.
// The returned slice is shared; callers must not modify it.
func (r *Reconciler) Tasks() []service.Task {
	return r.tasks
}

// Owner returns the user ID the working copy belongs to, or "" when
// signed out.
func (r *Reconciler) Owner() string {
	return r.owner
}

// LoadFailed reports whether the last load for the current owner failed.
func (r *Reconciler) LoadFailed() bool {
	return r.loadFailed
}

// Inflight returns the number of unresolved mutations in the current
// working copy.
func (r *Reconciler) Inflight() int {
	return r.inflight
}

// Fetch loads the owner's tasks from the backend. Safe to call off the
// event loop; hand the result to Reset or FailLoad on the loop.
func (r *Reconciler) Fetch(ctx context.Context, owner string) ([]service.Task, error) {
	return r.svc.ListTasks(ctx, owner)
}

// Reset replaces the working copy with tasks fetched for owner, newest
// first. Outcomes of mutations begun before the reset are dropped when
// they arrive.
func (r *Reconciler) Reset(owner string, tasks []service.Task) {
	r.owner = owner
	r.tasks = make([]service.Task, len(tasks))
	copy(r.tasks, tasks)
	sort.SliceStable(r.tasks, func(i, j int) bool {
		return r.tasks[i].CreatedAt.After(r.tasks[j].CreatedAt)
	})
	r.loadFailed = false
	r.bump()
}

// FailLoad records a failed load for owner, leaving the list empty.
func (r *Reconciler) FailLoad(owner string) {
	r.owner = owner
	r.tasks = nil
	r.loadFailed = true
	r.bump()
}

// Clear empties the working copy on sign-out.
func (r *Reconciler) Clear() {
	r.owner = ""
	r.tasks = nil
	r.loadFailed = false
	r.bump()
}

// bump starts a new generation. In-flight mutations from the previous
// generation become stale.
func (r *Reconciler) bump() {
	r.gen++
	r.inflight = 0
}

// BeginAdd prepends a provisional task and returns the pending mutation.
// Returns nil without side effects when the trimmed title is empty or
// no owner is set.
func (r *Reconciler) BeginAdd(title string) *Mutation {
	title = strings.TrimSpace(title)
	if title == "" || r.owner == "" {
		return nil
	}

	t := service.Task{
		ID:        newProvisionalID(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	r.tasks = append([]service.Task{t}, r.tasks...)
	r.inflight++

	return &Mutation{
		Kind:  KindAdd,
		ID:    t.ID,
		Title: title,
		owner: r.owner,
		gen:   r.gen,
	}
}

// BeginToggle flips the done state of the task with id and returns the
// pending mutation. Returns nil when id is not in the working copy.
func (r *Reconciler) BeginToggle(id string) *Mutation {
	i := r.index(id)
	if i < 0 {
		return nil
	}

	prev := r.tasks[i].Done
	r.tasks[i].Done = !prev
	r.inflight++

	return &Mutation{
		Kind:     KindToggle,
		ID:       id,
		Done:     !prev,
		prevDone: prev,
		gen:      r.gen,
	}
}

// BeginRemove removes the task with id and returns the pending mutation.
// The mutation snapshots the whole list; a failed remove restores the
// snapshot, which also undoes edits that confirmed in between.
func (r *Reconciler) BeginRemove(id string) *Mutation {
	i := r.index(id)
	if i < 0 {
		return nil
	}

	snapshot := make([]service.Task, len(r.tasks))
	copy(snapshot, r.tasks)
	r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
	r.inflight++

	return &Mutation{
		Kind:     KindRemove,
		ID:       id,
		snapshot: snapshot,
		gen:      r.gen,
	}
}

// Perform executes the remote call for a pending mutation. It reads only
// fields fixed at Begin time, so it may run off the event loop. The
// returned Outcome must be handed back to Resolve on the loop.
func (r *Reconciler) Perform(ctx context.Context, m *Mutation) Outcome {
	switch m.Kind {
	case KindAdd:
		created, err := r.svc.CreateTask(ctx, m.owner, m.Title)
		return Outcome{Mutation: m, Created: created, Err: err}
	case KindToggle:
		done := m.Done
		err := r.svc.UpdateTask(ctx, m.ID, service.TaskUpdate{Done: &done})
		return Outcome{Mutation: m, Err: err}
	case KindRemove:
		return Outcome{Mutation: m, Err: r.svc.DeleteTask(ctx, m.ID)}
	default:
		return Outcome{Mutation: m}
	}
}

// Resolve applies a mutation outcome to the working copy. Outcomes from
// a previous generation are dropped so a task cannot resurface after
// sign-out or a reload.
func (r *Reconciler) Resolve(o Outcome) {
	m := o.Mutation
	if m == nil {
		return
	}
	if m.gen != r.gen {
		r.log.Debug("dropping stale outcome", "kind", m.Kind, "id", m.ID)
		return
	}
	r.inflight--

	if o.Err != nil {
		r.revert(m)
		m.State = Reverted
		r.log.Warn("mutation reverted", "kind", m.Kind, "id", m.ID, "err", o.Err)
		return
	}

	if m.Kind == KindAdd {
		// Swap the provisional entry for the confirmed task at the head.
		if i := r.index(m.ID); i >= 0 {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
		}
		r.tasks = append([]service.Task{o.Created}, r.tasks...)
	}
	m.State = Confirmed
	r.log.Debug("mutation confirmed", "kind", m.Kind, "id", m.ID)
}

func (r *Reconciler) revert(m *Mutation) {
	switch m.Kind {
	case KindAdd:
		if i := r.index(m.ID); i >= 0 {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
		}
	case KindToggle:
		if i := r.index(m.ID); i >= 0 {
			r.tasks[i].Done = m.prevDone
		}
	case KindRemove:
		r.tasks = m.snapshot
	}
}

func (r *Reconciler) index(id string) int {
	for i, t := range r.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
