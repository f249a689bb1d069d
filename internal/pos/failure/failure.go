// Package failure classifies checkout errors into the kinds the terminal reports to operators.
package failure

import (
	"errors"
	"strings"
)

// Kind groups errors by how they are surfaced.
type Kind int

const (
	// KindUnknown is any error that was not classified.
	KindUnknown Kind = iota
	// KindValidation covers local input problems. No request is sent.
	KindValidation
	// KindMissingContext means the cashier or store identity was unavailable.
	KindMissingContext
	// KindBackendRejection carries a structured failure message from the backend.
	KindBackendRejection
	// KindNetwork covers transport failures and unreadable responses.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindMissingContext:
		return "missing_context"
	case KindBackendRejection:
		return "backend_rejection"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

const (
	// GenericNetworkMessage is shown instead of transport details.
	GenericNetworkMessage = "Could not reach the server. Please try again."
	genericUnknownMessage = "Something went wrong. Please try again."
)

// Error is a classified error. Two errors match under errors.Is when their codes match.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// New constructs a classified error, usually a package sentinel.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is a classified error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code != "" && e.Code == other.Code
}

var (
	// ErrBackendRejection matches every rejection returned by Rejection.
	ErrBackendRejection = New(KindBackendRejection, "backend_rejection", "request rejected")
	// ErrNetwork matches every error returned by Network.
	ErrNetwork = New(KindNetwork, "network_failure", GenericNetworkMessage)
)

// Rejection wraps a backend failure message. The message is relayed verbatim.
func Rejection(message string) *Error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "The request was rejected."
	}
	return &Error{Kind: KindBackendRejection, Code: ErrBackendRejection.Code, Message: message}
}

// Network wraps a transport failure.
func Network(cause error) *Error {
	return &Error{Kind: KindNetwork, Code: ErrNetwork.Code, Message: GenericNetworkMessage, Err: cause}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}

// UserMessage returns the text shown to the operator for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var classified *Error
	if !errors.As(err, &classified) {
		return genericUnknownMessage
	}
	switch classified.Kind {
	case KindNetwork:
		return GenericNetworkMessage
	default:
		if classified.Message != "" {
			return classified.Message
		}
		return genericUnknownMessage
	}
}
