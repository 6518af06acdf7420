package services

import "recuperi_go/models"

// Lifecycle guard for recovery activities.
//
// The state machine is deliberately small: planned <-> completed, both
// directions via the status toggle and nothing else. While an activity is
// completed every other mutation (edit, delete) is rejected; toggling it
// back to planned re-enables them. There is no cancelled state.

// ValidActivityStatus reports whether s is a status the ledger accepts.
func ValidActivityStatus(s string) bool {
	return s == models.ActivityStatusPlanned || s == models.ActivityStatusCompleted
}

// CanTransition reports whether the status toggle may move from -> to.
// Both directions are legal and symmetric; same-state toggles are handled
// upstream as idempotent no-ops.
func CanTransition(from, to string) bool {
	if !ValidActivityStatus(from) || !ValidActivityStatus(to) {
		return false
	}
	return from != to
}

// EnsureMutable rejects edits and deletes on completed activities.
func EnsureMutable(a *models.RecoveryActivity) error {
	if a.IsCompleted() {
		return ErrImmutable
	}
	return nil
}
