package encoder

import (
	"fmt"

	"github.com/malik672/risc-evm/ir"
)

// EncodingError provides context for emission failures: the IR
// instruction being lowered and the underlying error.
type EncodingError struct {
	Instruction *ir.Instruction // IR op that failed to lower (may be nil)
	Message     string
	Wrapped     error
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	location := ""
	if e.Instruction != nil {
		location = fmt.Sprintf("%s: ", e.Instruction)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s%s: %v", location, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s%s", location, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EncodingError) Unwrap() error {
	return e.Wrapped
}

// WrapEncodingError wraps an error with IR instruction context. An
// existing EncodingError passes through unchanged; nil stays nil.
func WrapEncodingError(inst *ir.Instruction, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*EncodingError); ok {
		return err
	}
	return &EncodingError{
		Instruction: inst,
		Message:     "failed to lower instruction",
		Wrapped:     err,
	}
}
