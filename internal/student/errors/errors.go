package errors

import "errors"

var (
	ErrNotFound = errors.New("student not found")

	ErrInvalidID = errors.New("invalid student ID format")

	ErrDuplicateRegNo = errors.New("registration number already exists")
)
