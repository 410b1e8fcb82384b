package services

import "errors"

// ValidationError reports missing or malformed input. Its message is safe to
// return to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

var (
	ErrFieldsRequired      = invalid("all fields required")
	ErrInvalidEmail        = invalid("invalid email")
	ErrPasswordTooShort    = invalid("password too short")
	ErrCredentialsRequired = invalid("email and password required")
	ErrTitleRequired       = invalid("title required")
	ErrInvalidStatus       = invalid("invalid status")
	ErrInvalidPriority     = invalid("invalid priority")
	ErrNothingToUpdate     = invalid("nothing to update")
)

var (
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is shared by unknown email and wrong password.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrTaskNotFound covers both missing tasks and tasks owned by someone else.
	ErrTaskNotFound = errors.New("task not found")
)
