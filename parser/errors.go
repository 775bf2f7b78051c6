package parser

import (
	"fmt"
	"strings"
)

// ErrorKind categorizes the type of decode error
type ErrorKind int

const (
	ErrorInvalidOpcode ErrorKind = iota
	ErrorTruncatedPush
	ErrorEmptyBytecode
)

// Error represents a decode error with stream-offset information
type Error struct {
	Offset  int // byte offset into the bytecode stream, -1 if unknown
	Message string
	Kind    ErrorKind
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("offset 0x%04X: %s", e.Offset, e.Message)
	}
	return e.Message
}

// NewError creates a new decode error
func NewError(offset int, kind ErrorKind, message string) *Error {
	return &Error{
		Offset:  offset,
		Message: message,
		Kind:    kind,
	}
}

// ErrorList collects multiple decode errors
type ErrorList struct {
	Errors []*Error
}

// AddError adds an error to the list
func (el *ErrorList) AddError(err *Error) {
	el.Errors = append(el.Errors, err)
}

// HasErrors returns true if there are any errors
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// Error implements the error interface
func (el *ErrorList) Error() string {
	if !el.HasErrors() {
		return ""
	}

	var sb strings.Builder
	for _, err := range el.Errors {
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}
