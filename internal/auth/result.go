package auth

import "errors"

// internalMessage is what callers see for storage and other unexpected faults.
const internalMessage = "an internal error occurred"

// Result is the response envelope shared by every operation surface.
type Result[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// NewResult wraps a successful value.
func NewResult[T any](data T, message string) Result[T] {
	return Result[T]{Success: true, Message: message, Data: data}
}

// FailedResult builds the envelope for err. Only taxonomy messages reach the
// caller; anything else is reported generically.
func FailedResult(err error) Result[any] {
	return Result[any]{Success: false, Message: Message(err)}
}

// Message returns the caller-visible message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	if Kind(err) != "internal" {
		for _, kind := range []error{
			ErrNotFound, ErrInvalidCredential, ErrAccountIneligible, ErrPolicyViolation,
			ErrConflict, ErrAlreadyInactive, ErrConfigurationFault, ErrInvalidInput,
		} {
			if errors.Is(err, kind) {
				return kind.Error()
			}
		}
	}
	return internalMessage
}
