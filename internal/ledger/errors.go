package ledger

import "errors"

// Closed error taxonomy for the persistence layer. Callers discriminate with
// errors.Is rather than by inspecting message strings.
var (
	// ErrConfigInvalid means the remote backend configuration is malformed.
	// It is raised eagerly, before any connection attempt.
	ErrConfigInvalid = errors.New("invalid backend configuration")

	// ErrNotConnected means an operation was issued before the backend was
	// initialized.
	ErrNotConnected = errors.New("backend not connected")

	// ErrUnauthorized means a write was attempted against the remote backend
	// with no authenticated principal. It is checked before issuing the
	// backend call.
	ErrUnauthorized = errors.New("not signed in")

	// ErrPermissionDenied is the backend's own access-control rejection of a
	// read or write.
	ErrPermissionDenied = errors.New("permission denied by backend")

	// ErrMigrationFailed means the atomic migration batch did not commit.
	// Nothing was partially applied.
	ErrMigrationFailed = errors.New("migration batch failed")

	// ErrNotFound means the record's id does not exist in the active backend.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidRecord means a record failed validation before any write.
	ErrInvalidRecord = errors.New("invalid record")
)
