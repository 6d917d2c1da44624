package tasks

import (
	"context"
	"sort"
	"sync"

	"foundation_site/internal/models"
)

// Handler runs one scheduled task and returns a result stored in the task
// history.
type Handler func(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error)

// Definition is a named task.
type Definition interface {
	TaskID() string
	HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error)
}

// Registry stores the mapping of task names to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for a task name
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Define registers d under its TaskID.
func (r *Registry) Define(d Definition) {
	r.Register(d.TaskID(), d.HandleExecution)
}

// Get retrieves a handler for a task name
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	return handler, ok
}

// Names lists the registered task names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
