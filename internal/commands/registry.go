package commands

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps command names and aliases to commands.
type Registry struct {
	mu    sync.RWMutex
	names map[string]Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]Command)}
}

// Register adds cmd under its name and all of its aliases. A name or
// alias that is already taken is rejected before anything is inserted.
func (r *Registry) Register(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := append([]string{cmd.Name()}, cmd.Aliases()...)
	for _, key := range keys {
		if _, taken := r.names[key]; taken {
			return fmt.Errorf("command already registered: %s", key)
		}
	}
	for _, key := range keys {
		r.names[key] = cmd
	}
	return nil
}

// Find looks up a command by name or alias.
func (r *Registry) Find(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.names[name]
	return cmd, ok
}

// All returns each registered command once, sorted by primary name.
// Help output relies on the stable order.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byName := make(map[string]Command)
	for _, cmd := range r.names {
		byName[cmd.Name()] = cmd
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	cmds := make([]Command, len(names))
	for i, name := range names {
		cmds[i] = byName[name]
	}
	return cmds
}

// DefaultRegistry receives the init-time registrations from each
// command file in this package.
var DefaultRegistry = NewRegistry()

// Register adds cmd to DefaultRegistry, panicking on conflicts so a
// bad registration fails at startup rather than at dispatch time.
func Register(cmd Command) {
	if err := DefaultRegistry.Register(cmd); err != nil {
		panic(err)
	}
}
