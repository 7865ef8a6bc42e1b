// Package errors defines the domain error taxonomy shared across services.
// Handlers map DomainError codes onto HTTP statuses.
package errors

import "fmt"

// DomainError is a coded error safe to surface to API clients.
type DomainError struct {
	Code    string
	Message string
	// Details carries structured context for the client, e.g. the measured
	// GPS accuracy and the threshold it violated.
	Details map[string]interface{}
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetails returns a copy of the error carrying extra context.
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: details}
}

// Is matches domain errors by code so wrapped copies (WithDetails) still
// compare equal under errors.Is.
func (e *DomainError) Is(target error) bool {
	de, ok := target.(*DomainError)
	return ok && de.Code == e.Code
}
