package dispatch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"toolgate/internal/validation"
)

var (
	// ErrDuplicateTool is returned when a name is registered twice
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrInvalidToolName is returned for names that are not lower_snake_case
	ErrInvalidToolName = errors.New("invalid tool name")

	// ErrRegistryFrozen is returned for registrations after startup
	ErrRegistryFrozen = errors.New("registry is frozen")

	// ErrNilHandler is returned when registering a nil handler
	ErrNilHandler = errors.New("handler is nil")
)

var toolNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Handler implements one tool.
//
// Args declares every accepted argument; the dispatcher binds the request
// against it before Handle runs, so Handle only sees checked values.
// Handle must honor ctx where its domain action allows it and return a
// *toolerr.Error for anything the caller should see classified.
type Handler interface {
	Description() string
	Args() []validation.ArgSpec
	Handle(ctx context.Context, args validation.Args) (any, error)
}

// ToolInfo describes a registered tool for listings and protocol schemas.
type ToolInfo struct {
	Name        string
	Description string
	Args        []validation.ArgSpec
}

// Registry maps tool names to handlers. It is written during startup and
// read-only once frozen.
type Registry struct {
	mu       sync.RWMutex
	frozen   atomic.Bool
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h under name. Duplicate names, malformed names and
// registration after Freeze are configuration errors.
func (r *Registry) Register(name string, h Handler) error {
	if !toolNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidToolName, name)
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryFrozen, name)
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	for _, spec := range h.Args() {
		if strings.TrimSpace(spec.Name) == "" {
			return fmt.Errorf("tool %s declares an argument without a name", name)
		}
	}

	r.handlers[name] = h
	return nil
}

// MustRegister is Register for static startup wiring; it panics on error.
func (r *Registry) MustRegister(name string, h Handler) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	if r.frozen.Load() {
		h, ok := r.handlers[name]
		return h, ok
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Tools lists registered tools sorted by name.
func (r *Registry) Tools() []ToolInfo {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}

	tools := make([]ToolInfo, 0, len(r.handlers))
	for name, h := range r.handlers {
		tools = append(tools, ToolInfo{
			Name:        name,
			Description: h.Description(),
			Args:        h.Args(),
		})
	}
	slices.SortFunc(tools, func(a, b ToolInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return tools
}
