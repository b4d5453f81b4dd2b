package engine

import "fmt"

// RollbackWarning records one non-fatal failure while unwinding a resource.
// Warnings are collected and returned, never raised: a failure during cleanup
// must not mask the provisioning error that triggered it.
type RollbackWarning struct {
	Kind string // "alarm", "volume" or "instance"
	ID   string
	Err  error
}

func (w RollbackWarning) Error() string {
	return fmt.Sprintf("rollback %s %s: %v", w.Kind, w.ID, w.Err)
}

func (w RollbackWarning) Unwrap() error { return w.Err }

// ProvisionError is returned when provisioning failed partway. It carries the
// original failure, the manifest of resources created before it, and the
// outcome of the rollback attempt. Callers must not assume rollback succeeded.
type ProvisionError struct {
	Err              error
	Manifest         *Manifest
	RolledBack       bool
	RollbackWarnings []RollbackWarning
}

func (e *ProvisionError) Error() string {
	if len(e.RollbackWarnings) > 0 {
		return fmt.Sprintf("provisioning failed (rollback attempted, %d warnings): %v", len(e.RollbackWarnings), e.Err)
	}
	if e.RolledBack {
		return fmt.Sprintf("provisioning failed (rollback attempted): %v", e.Err)
	}
	return fmt.Sprintf("provisioning failed: %v", e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }
