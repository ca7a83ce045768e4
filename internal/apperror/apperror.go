package apperror

import "errors"

// Kind classifies a failure independently of any transport. HTTP adapters map
// kinds to status codes; the services only ever emit the kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindDuplicate
	KindValidation
	KindAuthentication
	KindAuthorization
	KindRegistration
	KindStore
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "entity_not_found", Message: message}
}

func Duplicate(message string) *Error {
	return &Error{Kind: KindDuplicate, Code: "duplicate_entity", Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_argument", Message: message}
}

func Authentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Code: "authentication_failed", Message: message}
}

func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Code: "authorization_failed", Message: message}
}

func Registration(message string) *Error {
	return &Error{Kind: KindRegistration, Code: "registration_failed", Message: message}
}

func Store(err error) *Error {
	return &Error{Kind: KindStore, Code: "store_failure", Message: "downstream store failure", Err: err}
}

func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}
