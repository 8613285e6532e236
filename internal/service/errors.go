package service

import "fmt"

// Kind classifies a service error so the handler layer can translate it to
// an HTTP status code without inspecting messages.
type Kind int

const (
	// KindValidation: malformed label, scope, or secret. Client's fault.
	KindValidation Kind = iota
	// KindAuthentication: missing, invalid, or expired session or credential.
	KindAuthentication
	// KindAuthorization: valid identity with insufficient scope, tier, or ownership.
	KindAuthorization
	// KindQuota: credential-count or credit exhaustion.
	KindQuota
	// KindNotFound: unknown record ID.
	KindNotFound
	// KindInternal: store or hash-engine failure. Details are logged
	// server-side and never surfaced to clients.
	KindInternal
)

// Error is a taxonomy error carrying a stable machine-readable code alongside
// its human message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func internalError(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: message, cause: cause}
}

func validationError(code, format string, args ...interface{}) *Error {
	return newError(KindValidation, code, fmt.Sprintf(format, args...))
}
