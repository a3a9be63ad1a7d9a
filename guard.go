package flowz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
)

// Metric keys for Guard observability.
const (
	GuardCommitsTotal   = metricz.Key("guard.commits.total")
	GuardRollbacksTotal = metricz.Key("guard.rollbacks.total")
)

// Hook event keys for Guard.
const (
	GuardEventCommitted  = hookz.Key("guard.committed")
	GuardEventRolledBack = hookz.Key("guard.rolledback")
)

// GuardEvent represents the terminal outcome of one Guard use.
type GuardEvent struct {
	Name       Name       // Guard name
	State      GuardState // Terminal state reached
	Error      error      // Body error that forced a rollback, if any
	Suppressed bool       // Whether the error was swallowed
	Timestamp  time.Time  // When the event occurred
}

// GuardState tracks a Guard through its lifecycle. Committed and RolledBack
// are terminal; a guard that reached either cannot be run again.
type GuardState int

const (
	StateNotStarted GuardState = iota
	StateActive
	StateCommitted
	StateRolledBack
)

// String implements fmt.Stringer.
func (s GuardState) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// Tx is the resource handle a Guard drives. Database transactions are the
// canonical implementation, but anything with begin/commit/rollback
// semantics fits: staged file writes, reservation holds, in-memory journals.
//
// Nesting two guards over one resource requires the resource to support
// reentrant begin/commit. That is the resource's contract, not the guard's.
type Tx interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Guard scopes one logical transaction over a Tx. Run begins the
// transaction, executes the body, and guarantees exactly one terminal
// operation: Commit when the body returns nil, Rollback when it returns an
// error or panics. The body's error is returned after rollback unless it
// matches a suppressed target.
//
// A Guard is single-use. Running a guard that is active or already terminal
// fails with *InvalidStateError; create a new Guard per transaction.
//
// Example:
//
//	guard := flowz.NewGuard("order-write", tx)
//	err := guard.Run(ctx, func(ctx context.Context) error {
//	    if err := insertOrder(ctx, order); err != nil {
//	        return err
//	    }
//	    return insertItems(ctx, order.Items)
//	})
type Guard struct {
	tx       Tx
	name     Name
	suppress []error
	state    GuardState
	mu       sync.Mutex

	// Observability
	metrics *metricz.Registry
	hooks   *hookz.Hooks[GuardEvent]
}

// NewGuard creates a new Guard over tx.
func NewGuard(name Name, tx Tx) *Guard {
	registry := metricz.New()
	registry.Counter(GuardCommitsTotal)
	registry.Counter(GuardRollbacksTotal)

	return &Guard{
		name:    name,
		tx:      tx,
		metrics: registry,
		hooks:   hookz.New[GuardEvent](),
	}
}

// Suppress registers error targets to swallow. When the body fails with an
// error matching any target via errors.Is, the guard still rolls back, but
// Run returns nil instead of the error. Everything else propagates.
func (g *Guard) Suppress(targets ...error) *Guard {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suppress = append(g.suppress, targets...)
	return g
}

// Run executes fn inside the guarded transaction. Begin failures leave the
// guard not-started and are returned directly, so the same guard may be
// retried. After a successful begin the guard always reaches a terminal
// state: Committed on a nil body error, RolledBack otherwise. A panic in
// the body rolls back and is returned as an error.
//
// A failing Commit is followed by a Rollback so the resource is not left
// dangling; both errors are returned joined and the guard ends RolledBack.
func (g *Guard) Run(ctx context.Context, fn func(context.Context) error) error {
	g.mu.Lock()
	if g.state != StateNotStarted {
		state := g.state
		g.mu.Unlock()
		return &InvalidStateError{State: state}
	}
	if err := g.tx.Begin(ctx); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("begin: %w", err)
	}
	g.state = StateActive
	g.mu.Unlock()

	bodyErr := runBody(ctx, fn)
	if bodyErr == nil {
		if commitErr := g.tx.Commit(ctx); commitErr != nil {
			rollbackErr := g.tx.Rollback(ctx)
			g.finish(ctx, StateRolledBack, commitErr, false)
			if rollbackErr != nil {
				return errors.Join(fmt.Errorf("commit: %w", commitErr), fmt.Errorf("rollback: %w", rollbackErr))
			}
			return fmt.Errorf("commit: %w", commitErr)
		}
		g.finish(ctx, StateCommitted, nil, false)
		return nil
	}

	rollbackErr := g.tx.Rollback(ctx)
	suppressed := rollbackErr == nil && g.isSuppressed(bodyErr)
	g.finish(ctx, StateRolledBack, bodyErr, suppressed)

	if rollbackErr != nil {
		return errors.Join(bodyErr, fmt.Errorf("rollback: %w", rollbackErr))
	}
	if suppressed {
		return nil
	}
	return bodyErr
}

// runBody executes fn, converting a panic into an error so the guard's
// rollback path still runs.
func runBody(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (g *Guard) finish(ctx context.Context, state GuardState, bodyErr error, suppressed bool) {
	g.mu.Lock()
	g.state = state
	g.mu.Unlock()

	event := GuardEvent{
		Name:       g.name,
		State:      state,
		Error:      bodyErr,
		Suppressed: suppressed,
		Timestamp:  time.Now(),
	}
	if state == StateCommitted {
		g.metrics.Counter(GuardCommitsTotal).Inc()
		_ = g.hooks.Emit(ctx, GuardEventCommitted, event) //nolint:errcheck
		return
	}
	g.metrics.Counter(GuardRollbacksTotal).Inc()
	_ = g.hooks.Emit(ctx, GuardEventRolledBack, event) //nolint:errcheck
}

func (g *Guard) isSuppressed(err error) bool {
	g.mu.Lock()
	targets := g.suppress
	g.mu.Unlock()

	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// State returns the guard's current state.
func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Name returns the name of this guard.
func (g *Guard) Name() Name {
	return g.name
}

// Metrics returns the metrics registry for this guard.
func (g *Guard) Metrics() *metricz.Registry {
	return g.metrics
}

// OnCommitted registers a handler called when the guard commits.
func (g *Guard) OnCommitted(handler func(context.Context, GuardEvent) error) error {
	_, err := g.hooks.Hook(GuardEventCommitted, handler)
	return err
}

// OnRolledBack registers a handler called when the guard rolls back.
func (g *Guard) OnRolledBack(handler func(context.Context, GuardEvent) error) error {
	_, err := g.hooks.Hook(GuardEventRolledBack, handler)
	return err
}

// Close gracefully shuts down observability components.
func (g *Guard) Close() error {
	g.hooks.Close()
	return nil
}
