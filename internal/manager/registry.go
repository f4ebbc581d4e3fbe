package manager

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	merrors "github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/logging"
	"github.com/sourcegraph/conc/pool"
)

var (
	// ErrDuplicateManager is returned when a manager name or type is registered twice.
	ErrDuplicateManager = errors.New("manager already registered")
	// ErrRegistryFrozen is returned when registering after Init started.
	ErrRegistryFrozen = errors.New("manager registry is frozen after init")
	// ErrNotInitialized is returned when Build or Watch run before a successful Init.
	ErrNotInitialized = errors.New("managers are not initialized")
)

// Registry holds the ordered manager list and runs lifecycle phases over it.
//
// The list is only mutated before the first RunInit; afterwards it is
// read-only, so the phase runners can hand it to concurrent goroutines
// without further locking.
type Registry struct {
	// initMu serializes RunInit callers so managers initialize at most once.
	initMu      sync.Mutex
	mu          sync.Mutex
	managers    []Manager
	types       map[reflect.Type]struct{}
	names       map[string]struct{}
	frozen      bool
	initialized bool
	logger      logging.Logger
}

// NewRegistry creates a registry and registers managers in the given order.
func NewRegistry(logger logging.Logger, managers ...Manager) (*Registry, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Registry{
		types:  make(map[reflect.Type]struct{}),
		names:  make(map[string]struct{}),
		logger: logger.WithComponent("registry"),
	}
	for _, m := range managers {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends m to the ordered list.
func (r *Registry) Register(m Manager) error {
	if m == nil {
		return fmt.Errorf("register: nil manager")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %s: %w", m.Name(), ErrRegistryFrozen)
	}
	typ := reflect.TypeOf(m)
	if _, ok := r.types[typ]; ok {
		return fmt.Errorf("register %s (%s): %w", m.Name(), typ, ErrDuplicateManager)
	}
	if _, ok := r.names[m.Name()]; ok {
		return fmt.Errorf("register %s: %w", m.Name(), ErrDuplicateManager)
	}

	r.types[typ] = struct{}{}
	r.names[m.Name()] = struct{}{}
	r.managers = append(r.managers, m)
	return nil
}

// Managers returns the live ordered list. Callers must not modify it.
func (r *Registry) Managers() []Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.managers
}

// Initialized reports whether RunInit completed successfully.
func (r *Registry) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// RunInit initializes managers one at a time in registration order. The
// first failure aborts the sequence; managers after the failing one are not
// initialized. Once it has succeeded, further calls are no-ops.
func (r *Registry) RunInit(ctx context.Context) error {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		return nil
	}
	r.frozen = true
	managers := r.managers
	r.mu.Unlock()

	for _, m := range managers {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.logger.Debug(ctx, "init", "manager", m.Name())
		if err := m.Init(ctx); err != nil {
			return &merrors.ManagerError{Manager: m.Name(), Phase: merrors.PhaseInit, Err: err}
		}
	}

	r.mu.Lock()
	r.initialized = true
	r.mu.Unlock()
	return nil
}

// RunBuild runs every manager's Build concurrently and waits for all of them
// to settle. Every failure is part of the returned error.
func (r *Registry) RunBuild(ctx context.Context) error {
	return r.runConcurrent(ctx, merrors.PhaseBuild, Manager.Build)
}

// RunWatch arms every manager's watchers concurrently and returns once all of
// them have done so.
func (r *Registry) RunWatch(ctx context.Context) error {
	return r.runConcurrent(ctx, merrors.PhaseWatch, Manager.Watch)
}

func (r *Registry) runConcurrent(ctx context.Context, phase merrors.Phase, run func(Manager, context.Context) error) error {
	if !r.Initialized() {
		return fmt.Errorf("%s: %w", phase, ErrNotInitialized)
	}

	p := pool.New().WithErrors()
	for _, m := range r.Managers() {
		m := m
		p.Go(func() error {
			r.logger.Debug(ctx, string(phase), "manager", m.Name())
			if err := run(m, ctx); err != nil {
				return &merrors.ManagerError{Manager: m.Name(), Phase: phase, Err: err}
			}
			return nil
		})
	}
	return p.Wait()
}
