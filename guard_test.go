package flowz

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeTx records begin/commit/rollback invocations and can fail any of them.
type fakeTx struct {
	begins      int
	commits     int
	rollbacks   int
	beginErr    error
	commitErr   error
	rollbackErr error
}

func (f *fakeTx) Begin(context.Context) error {
	f.begins++
	return f.beginErr
}

func (f *fakeTx) Commit(context.Context) error {
	f.commits++
	return f.commitErr
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rollbacks++
	return f.rollbackErr
}

func TestGuard_CommitOnSuccess(t *testing.T) {
	tx := &fakeTx{}
	guard := NewGuard("tx", tx)

	err := guard.Run(context.Background(), func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if guard.State() != StateCommitted {
		t.Errorf("expected committed state, got %s", guard.State())
	}
	if tx.begins != 1 || tx.commits != 1 || tx.rollbacks != 0 {
		t.Errorf("expected begin=1 commit=1 rollback=0, got begin=%d commit=%d rollback=%d",
			tx.begins, tx.commits, tx.rollbacks)
	}
}

func TestGuard_RollbackOnError(t *testing.T) {
	tx := &fakeTx{}
	guard := NewGuard("tx", tx)
	boom := errors.New("boom")

	err := guard.Run(context.Background(), func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected body error to propagate, got %v", err)
	}

	if guard.State() != StateRolledBack {
		t.Errorf("expected rolled-back state, got %s", guard.State())
	}
	if tx.commits != 0 || tx.rollbacks != 1 {
		t.Errorf("expected commit=0 rollback=1, got commit=%d rollback=%d", tx.commits, tx.rollbacks)
	}
}

func TestGuard_RollbackOnPanic(t *testing.T) {
	tx := &fakeTx{}
	guard := NewGuard("tx", tx)

	err := guard.Run(context.Background(), func(context.Context) error {
		panic("body exploded")
	})
	if err == nil {
		t.Fatal("expected error from panicking body")
	}
	if !strings.Contains(err.Error(), "body exploded") {
		t.Errorf("expected panic message in error, got %v", err)
	}

	if guard.State() != StateRolledBack {
		t.Errorf("expected rolled-back state, got %s", guard.State())
	}
	if tx.commits != 0 || tx.rollbacks != 1 {
		t.Errorf("expected commit=0 rollback=1, got commit=%d rollback=%d", tx.commits, tx.rollbacks)
	}
}

func TestGuard_Suppress(t *testing.T) {
	tx := &fakeTx{}
	notFound := errors.New("not found")
	guard := NewGuard("tx", tx).Suppress(notFound)

	err := guard.Run(context.Background(), func(context.Context) error {
		return notFound
	})
	if err != nil {
		t.Fatalf("expected suppressed error to be swallowed, got %v", err)
	}

	// Still rolled back: suppression hides the error, not the outcome.
	if guard.State() != StateRolledBack {
		t.Errorf("expected rolled-back state, got %s", guard.State())
	}
	if tx.rollbacks != 1 {
		t.Errorf("expected rollback=1, got %d", tx.rollbacks)
	}
}

func TestGuard_SuppressMatchesWrappedErrors(t *testing.T) {
	tx := &fakeTx{}
	notFound := errors.New("not found")
	guard := NewGuard("tx", tx).Suppress(notFound)

	err := guard.Run(context.Background(), func(context.Context) error {
		return errors.Join(errors.New("lookup user"), notFound)
	})
	if err != nil {
		t.Fatalf("expected wrapped suppressed error to be swallowed, got %v", err)
	}
}

func TestGuard_SuppressDoesNotHideOthers(t *testing.T) {
	tx := &fakeTx{}
	notFound := errors.New("not found")
	guard := NewGuard("tx", tx).Suppress(notFound)
	boom := errors.New("boom")

	err := guard.Run(context.Background(), func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected unsuppressed error to propagate, got %v", err)
	}
}

func TestGuard_SingleUse(t *testing.T) {
	tx := &fakeTx{}
	guard := NewGuard("tx", tx)

	if err := guard.Run(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := guard.Run(context.Background(), func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error on reuse")
	}

	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected *InvalidStateError, got %T", err)
	}
	if stateErr.State != StateCommitted {
		t.Errorf("expected committed state in error, got %s", stateErr.State)
	}
	if tx.begins != 1 {
		t.Errorf("expected no second begin, got %d", tx.begins)
	}
}

func TestGuard_BeginFailureIsRetryable(t *testing.T) {
	beginErr := errors.New("connection refused")
	tx := &fakeTx{beginErr: beginErr}
	guard := NewGuard("tx", tx)

	err := guard.Run(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, beginErr) {
		t.Fatalf("expected begin error, got %v", err)
	}
	if guard.State() != StateNotStarted {
		t.Errorf("expected not-started state after begin failure, got %s", guard.State())
	}

	// The guard never became active, so it can be retried.
	tx.beginErr = nil
	if err := guard.Run(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected retry after begin failure to succeed, got %v", err)
	}
	if guard.State() != StateCommitted {
		t.Errorf("expected committed state, got %s", guard.State())
	}
}

func TestGuard_CommitFailureRollsBack(t *testing.T) {
	commitErr := errors.New("commit refused")
	tx := &fakeTx{commitErr: commitErr}
	guard := NewGuard("tx", tx)

	err := guard.Run(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, commitErr) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if guard.State() != StateRolledBack {
		t.Errorf("expected rolled-back state after commit failure, got %s", guard.State())
	}
	if tx.rollbacks != 1 {
		t.Errorf("expected cleanup rollback, got %d", tx.rollbacks)
	}
}

func TestGuard_RollbackFailureIsReported(t *testing.T) {
	rollbackErr := errors.New("rollback refused")
	tx := &fakeTx{rollbackErr: rollbackErr}
	guard := NewGuard("tx", tx)
	boom := errors.New("boom")

	err := guard.Run(context.Background(), func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected body error in chain, got %v", err)
	}
	if !errors.Is(err, rollbackErr) {
		t.Fatalf("expected rollback error in chain, got %v", err)
	}
}

func TestGuard_Metrics(t *testing.T) {
	tx := &fakeTx{}
	guard := NewGuard("tx", tx)
	_ = guard.Run(context.Background(), func(context.Context) error { return nil })

	if commits := guard.Metrics().Counter(GuardCommitsTotal).Value(); commits != 1 {
		t.Errorf("expected 1 commit, got %v", commits)
	}

	failing := NewGuard("tx2", &fakeTx{})
	_ = failing.Run(context.Background(), func(context.Context) error { return errors.New("x") })

	if rollbacks := failing.Metrics().Counter(GuardRollbacksTotal).Value(); rollbacks != 1 {
		t.Errorf("expected 1 rollback, got %v", rollbacks)
	}
}

func TestGuardState_String(t *testing.T) {
	cases := map[GuardState]string{
		StateNotStarted: "not-started",
		StateActive:     "active",
		StateCommitted:  "committed",
		StateRolledBack: "rolled-back",
	}
	for state, want := range cases {
		if state.String() != want {
			t.Errorf("expected %q, got %q", want, state.String())
		}
	}
}
