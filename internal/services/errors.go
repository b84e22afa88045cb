// Package services defines the business logic for conversations, messages,
// and read markers. This file centralizes service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// Errors come in two layers. A small set of kinds (ErrNotFound, ErrConflict,
// ErrForbidden, ErrInvalidInput, ErrDuplicateRequest, ErrRetryable) tells a
// caller how to react; the specific errors wrap exactly one kind so
// errors.Is works against either. Translation into HTTP statuses happens in
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrNotFound: the referenced property or conversation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict: the request contradicts an invariant (e.g. an owner
	// opening a conversation on their own listing).
	ErrConflict = errors.New("conflict")

	// ErrForbidden: the caller is not a participant of the conversation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput: the payload is malformed or out of bounds.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateRequest: an idempotency key matched an earlier append.
	// Callers treat this as success and return the stored message.
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrRetryable: storage was temporarily unavailable; retrying with the
	// same idempotency key is safe.
	ErrRetryable = errors.New("retryable")
)

// Specific errors.
var (
	ErrPropertyNotFound     = fmt.Errorf("property %w", ErrNotFound)
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)

	ErrSelfConversation = fmt.Errorf("%w: owner cannot open a conversation on their own property", ErrConflict)

	ErrNotParticipant = fmt.Errorf("%w: not a participant of this conversation", ErrForbidden)

	ErrEmptyBody          = fmt.Errorf("%w: message body is empty", ErrInvalidInput)
	ErrBodyTooLong        = fmt.Errorf("%w: message body too long", ErrInvalidInput)
	ErrInvalidIdempotency = fmt.Errorf("%w: malformed idempotency key", ErrInvalidInput)
	ErrMissingIdentity    = fmt.Errorf("%w: user id is required", ErrInvalidInput)

	ErrStoreUnavailable = fmt.Errorf("%w: store unavailable", ErrRetryable)
)
