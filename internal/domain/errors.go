package domain

import "errors"

var (
	// ErrValidation marks malformed input, rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an entity or transaction that is absent or not
	// owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrOutOfOrder marks an undo or redo against a transaction that is
	// not at the top of its grid's stack.
	ErrOutOfOrder = errors.New("transaction not at top of stack")

	// ErrIntegrity marks an occurrence referencing a missing target or
	// parent. Flagged by the offline checker, never thrown by runtime ops.
	ErrIntegrity = errors.New("referential integrity violation")

	// ErrStorage marks a failed durable write.
	ErrStorage = errors.New("durable write failed")
)
