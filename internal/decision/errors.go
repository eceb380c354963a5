package decision

import (
	"errors"
	"fmt"
)

// ErrAlreadyResolved means another trigger claimed the application first.
// It is the expected outcome of losing a race, not a failure; callers treat
// it as a silent no-op.
var ErrAlreadyResolved = errors.New("application already resolved")

// ErrApplicationNotFound means no application has the requested id.
var ErrApplicationNotFound = errors.New("application not found")

// VoteError is a rejected vote. No state was changed.
type VoteError struct {
	// Code identifies the rejection.
	Code VoteErrorCode

	// Message is a human-readable description.
	Message string

	// ApplicationID identifies the application voted on.
	ApplicationID int64
}

// VoteErrorCode categorizes rejected votes.
type VoteErrorCode string

const (
	// ErrCodeInvalidVote means the application is unknown or no longer pending.
	ErrCodeInvalidVote VoteErrorCode = "INVALID_VOTE"

	// ErrCodeVoteWindowClosed means the voting deadline has passed.
	ErrCodeVoteWindowClosed VoteErrorCode = "VOTE_WINDOW_CLOSED"

	// ErrCodeUnauthorized means the voter is not a bound admin.
	ErrCodeUnauthorized VoteErrorCode = "UNAUTHORIZED"
)

// Error implements the error interface.
func (e *VoteError) Error() string {
	return fmt.Sprintf("%s: %s (application=%d)", e.Code, e.Message, e.ApplicationID)
}

// IsVoteError reports whether err is a *VoteError with the given code.
// An empty code matches any VoteError.
func IsVoteError(err error, code VoteErrorCode) bool {
	var ve *VoteError
	if errors.As(err, &ve) {
		return code == "" || ve.Code == code
	}
	return false
}

func voteError(code VoteErrorCode, id int64, format string, args ...any) *VoteError {
	return &VoteError{Code: code, ApplicationID: id, Message: fmt.Sprintf(format, args...)}
}
