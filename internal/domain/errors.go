package domain

import "errors"

var (
	// ErrValidation indicates bad user input, such as empty item text.
	ErrValidation = errors.New("validation failed")

	// ErrItemNotFound indicates the checklist item no longer exists,
	// usually because a concurrent actor already resolved it.
	ErrItemNotFound = errors.New("checklist item not found")

	// ErrConflict indicates a day note was modified since it was loaded.
	ErrConflict = errors.New("day note revision conflict")

	// ErrMalformedContent indicates a day note body cannot be parsed as a checklist.
	ErrMalformedContent = errors.New("malformed checklist content")

	// ErrStoreUnavailable indicates the note backend failed, timed out, or
	// kept conflicting past the retry budget.
	ErrStoreUnavailable = errors.New("note store unavailable")

	// ErrStaleSnapshot indicates a button was rendered against a checklist
	// that has changed since.
	ErrStaleSnapshot = errors.New("checklist snapshot is stale")

	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")
)
