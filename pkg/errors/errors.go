package classpoll_errors

import "errors"

// Business rule errors surfaced to callers with stable codes.
var (
	ErrNotFound           = errors.New("not found")
	ErrPollNotActive      = errors.New("poll is not active")
	ErrPollAlreadyStarted = errors.New("poll is already started or completed")
	ErrActivePollExists   = errors.New("another poll is already active")
	ErrInvalidOption      = errors.New("invalid option for this poll")
	ErrDuplicateVote      = errors.New("already voted on this poll")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Code returns the stable machine-readable code for a business error.
// Unknown errors map to INTERNAL_ERROR.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrPollNotActive),
		errors.Is(err, ErrPollAlreadyStarted),
		errors.Is(err, ErrActivePollExists):
		return "INVALID_STATE"
	case errors.Is(err, ErrInvalidOption):
		return "INVALID_OPTION"
	case errors.Is(err, ErrDuplicateVote):
		return "DUPLICATE_VOTE"
	case errors.Is(err, ErrInvalidInput):
		return "BAD_REQUEST"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrServiceUnavailable):
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// IsBusiness reports whether err is a caller-correctable business error,
// as opposed to a system fault.
func IsBusiness(err error) bool {
	code := Code(err)
	return code != "INTERNAL_ERROR" && code != "SERVICE_UNAVAILABLE"
}

// HTTPStatus maps a business error to its HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrPollNotActive),
		errors.Is(err, ErrPollAlreadyStarted),
		errors.Is(err, ErrActivePollExists),
		errors.Is(err, ErrDuplicateVote):
		return 409
	case errors.Is(err, ErrInvalidOption),
		errors.Is(err, ErrInvalidInput):
		return 400
	case errors.Is(err, ErrRateLimited):
		return 429
	case errors.Is(err, ErrServiceUnavailable):
		return 503
	default:
		return 500
	}
}
