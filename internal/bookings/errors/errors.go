package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrNotActive is returned by a cancel that lost the race: the booking was no
	// longer active when the update ran.
	ErrNotActive = errors.New("booking is not active")

	// ErrLockHeld means another writer holds the (room, date) advisory lock.
	ErrLockHeld = errors.New("booking slot lock is held")

	ErrDuplicateToken = errors.New("cancellation token already exists")
)
