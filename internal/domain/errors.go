package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the reconciliation core wraps exactly one
// of these so callers can branch with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
)

var (
	// Run errors
	ErrRunNotFound      = fmt.Errorf("%w: run not found", ErrNotFound)
	ErrRunClosed        = fmt.Errorf("%w: run is closed", ErrInvalidState)
	ErrRunNotClosed     = fmt.Errorf("%w: run is not closed", ErrInvalidState)
	ErrReopenNotCreator = fmt.Errorf("%w: only the creator can reopen a run", ErrInvalidState)
	ErrRunModified      = fmt.Errorf("%w: run was modified concurrently", ErrConflict)
	ErrCutDateRequired  = fmt.Errorf("%w: cut date is required", ErrValidation)

	// Membership errors
	ErrNotMember         = fmt.Errorf("%w: not a member of this run", ErrForbidden)
	ErrReadOnlyMember    = fmt.Errorf("%w: member cannot edit this run", ErrForbidden)
	ErrOwnerRequired     = fmt.Errorf("%w: only the owner can do this", ErrForbidden)
	ErrMemberNotFound    = fmt.Errorf("%w: member not found", ErrNotFound)
	ErrCannotRemoveOwner = fmt.Errorf("%w: the creator cannot be removed", ErrValidation)
	ErrInvalidRole       = fmt.Errorf("%w: invalid member role", ErrValidation)

	// Input errors
	ErrEmptyRows         = fmt.Errorf("%w: rows must not be empty", ErrValidation)
	ErrMissingMapping    = fmt.Errorf("%w: required mapping column missing", ErrValidation)
	ErrInvalidAmountMode = fmt.Errorf("%w: invalid amount mode", ErrValidation)
	ErrInvalidDateBasis  = fmt.Errorf("%w: invalid date basis", ErrValidation)

	// Line and match errors
	ErrSystemLineNotFound  = fmt.Errorf("%w: system line not found", ErrNotFound)
	ErrExtractLineNotFound = fmt.Errorf("%w: extract line not found", ErrNotFound)
	ErrAmountMismatch      = fmt.Errorf("%w: amount mismatch", ErrValidation)
	ErrExtractLineExcluded = fmt.Errorf("%w: extract line is excluded", ErrValidation)
	ErrDuplicateExtractID  = fmt.Errorf("%w: extract line listed twice", ErrValidation)

	// Pending errors
	ErrPendingNotFound        = fmt.Errorf("%w: pending item not found", ErrNotFound)
	ErrPendingAlreadyResolved = fmt.Errorf("%w: pending item already resolved", ErrNotFound)
	ErrDuplicatePending       = fmt.Errorf("%w: an active pending item already exists for this system line", ErrConflict)
	ErrResolutionNoteRequired = fmt.Errorf("%w: a note is required to resolve a pending item", ErrValidation)
	ErrUnknownArea            = fmt.Errorf("%w: unknown area", ErrValidation)
	ErrSystemLineMatched      = fmt.Errorf("%w: system line is matched", ErrValidation)
	ErrPendingNotOpen         = fmt.Errorf("%w: pending item is not open", ErrInvalidState)

	// Category errors
	ErrCategoryNotFound   = fmt.Errorf("%w: category not found", ErrNotFound)
	ErrCategoryNotEnabled = fmt.Errorf("%w: category not enabled on this run", ErrValidation)

	// Message errors
	ErrMessageBodyRequired = fmt.Errorf("%w: message body is required", ErrValidation)
	ErrMessageTooLong      = fmt.Errorf("%w: message is too long", ErrValidation)

	// Notification errors
	ErrNoRecipient = fmt.Errorf("%w: no recipient configured for area", ErrValidation)
)
