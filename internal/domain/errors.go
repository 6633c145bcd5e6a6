package domain

import "errors"

// Sentinel errors for the application.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotParticipant = errors.New("not a participant in this conversation")

	// Messaging core taxonomy. An empty (after trimming) message body is
	// rejected before persistence and emits no event to anyone. A protocol
	// error closes the offending connection. A persistence failure means the
	// message is neither broadcast nor counted.
	ErrEmptyMessage = errors.New("message body is empty")
	ErrProtocol     = errors.New("protocol violation")
	ErrPersistence  = errors.New("message persistence failed")
)
