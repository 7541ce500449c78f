package closet

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for display and recovery decisions.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is bad local input, caught before any network call,
	// or input the server rejected as malformed.
	KindValidation
	// KindAuth is a missing, rejected or expired credential.
	KindAuth
	// KindNotFound is an id the server does not know.
	KindNotFound
	// KindTransport is an unreachable server or a timeout.
	KindTransport
	// KindServer is a 5xx or an otherwise unexpected response.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindAuth:
		return "AuthError"
	case KindNotFound:
		return "NotFoundError"
	case KindTransport:
		return "TransportError"
	case KindServer:
		return "ServerError"
	default:
		return "UnknownError"
	}
}

// Error is a classified failure. Detail carries the server-provided
// message when there is one.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Detail == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrTransport  = &Error{Kind: KindTransport}
	ErrServer     = &Error{Kind: KindServer}
)

// Local misuse, outside the taxonomy.
var (
	ErrInvalidState     = errors.New("operation not valid in current store state")
	ErrOperationPending = errors.New("an operation on this item is already in progress")
	ErrSessionActive    = errors.New("already signed in; log out first")
	ErrNoSession        = &Error{Kind: KindAuth, Detail: "not signed in"}
)

// ErrUnreadableSession is wrapped by SessionStorage.Load when a record exists
// but its token cannot be recovered.
var ErrUnreadableSession = errors.New("token could not be decrypted")

// NewError builds a classified error.
func NewError(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: err}
}

// Validationf builds a KindValidation error with a formatted detail.
func Validationf(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// DetailOf returns the server or validation detail of err, if any.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}

// UserMessage renders err for display. Validation details are shown as-is;
// other kinds get a fixed message so transport internals stay out of view.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrInvalidState):
		return "Your closet is not ready yet. Try again in a moment."
	case errors.Is(err, ErrOperationPending):
		return "That item is still being updated."
	case errors.Is(err, ErrSessionActive):
		return "You are already signed in. Log out first."
	}

	switch KindOf(err) {
	case KindValidation:
		if d := DetailOf(err); d != "" {
			return d
		}
		return "The request was not valid."
	case KindAuth:
		return "Please sign in again."
	case KindNotFound:
		var e *Error
		if errors.As(err, &e) && (e.Op == "outfits" || e.Op == "analyze") {
			return "Your closet is empty. Add items first."
		}
		return "That item no longer exists."
	case KindTransport:
		return "Could not reach the server. Check your connection and try again."
	case KindServer:
		return "The server had a problem. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}
