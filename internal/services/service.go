// Package services holds the business logic of the platform
package services

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// FieldError is a business rule failure on a single input field
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}
