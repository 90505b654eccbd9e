package domain

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned when a resource conflicts with existing state
	ErrConflict = errors.New("conflict occurred")

	// ErrForbidden is returned when the acting user may not perform the operation
	ErrForbidden = errors.New("operation forbidden")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
)

// Stable machine-readable error codes surfaced to API clients.
const (
	CodeReviewNotFound    = "REVIEW_NOT_FOUND"
	CodeProductNotFound   = "PRODUCT_NOT_FOUND"
	CodeReviewExists      = "REVIEW_EXISTS"
	CodeReviewLimit       = "REVIEW_LIMIT_REACHED"
	CodeAdminCannotReview = "ADMIN_CANNOT_REVIEW"
	CodeUserInactive      = "USER_INACTIVE"
	CodePurchaseRequired  = "PURCHASE_REQUIRED"
	CodeNotOwner          = "NOT_OWNER"
	CodeNotModerator      = "NOT_MODERATOR"
	CodeEditWindowExpired = "EDIT_WINDOW_EXPIRED"
	CodeCannotVoteOwn     = "CANNOT_VOTE_OWN_REVIEW"
	CodeInvalidVote       = "INVALID_VOTE"
	CodeInvalidAction     = "INVALID_ACTION"
	CodeReasonRequired    = "REASON_REQUIRED"
	CodeStatusUnchanged   = "STATUS_UNCHANGED"
	CodeInvalidInput      = "INVALID_INPUT"
)

// Error is a domain-rule violation carrying a stable machine-readable code.
// It unwraps to one of the sentinel errors above so service and handler code
// can branch with errors.Is while API clients branch on the code.
type Error struct {
	Code    string
	Message string
	kind    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.kind
}

// NewError creates a coded domain error of the given kind.
func NewError(kind error, code, message string) *Error {
	return &Error{Code: code, Message: message, kind: kind}
}

// ErrorCode extracts the machine-readable code from an error.
// Returns an empty string for errors without a code.
func ErrorCode(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
