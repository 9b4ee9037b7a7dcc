package chat

import "errors"

// Sentinel errors mapped to HTTP statuses at the handler boundary.
var (
	// ErrNotFound indicates the referenced group, message, or user is absent.
	ErrNotFound = errors.New("chat: not found")
	// ErrForbidden indicates the actor lacks the role or ownership required.
	ErrForbidden = errors.New("chat: forbidden")
	// ErrValidation indicates malformed input; wrap it with field detail.
	ErrValidation = errors.New("chat: validation failed")
	// ErrBanned indicates the user is currently banned from the group.
	ErrBanned = errors.New("chat: user banned from group")
	// ErrNotMember indicates the user is not in the group's member set.
	ErrNotMember = errors.New("chat: user not a group member")
)
