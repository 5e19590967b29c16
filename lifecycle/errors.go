package lifecycle

import "fmt"

// Kind classifies a lifecycle failure so callers map it to a wire code
// without inspecting message text.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindInvalidPayload Kind = "invalid_payload"
)

// Error is the typed failure returned by every lifecycle operation.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("lifecycle: %s: %s", e.Kind, e.Message)
}

func notFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func conflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func invalidPayloadError(message string) *Error {
	return &Error{Kind: KindInvalidPayload, Message: message}
}
