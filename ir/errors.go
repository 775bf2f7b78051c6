package ir

import (
	"fmt"

	"github.com/malik672/risc-evm/parser"
)

// GenerationError wraps a symbolic-execution failure with the source
// instruction that triggered it.
type GenerationError struct {
	Instruction *parser.Instruction // instruction being lowered (may be nil)
	Message     string
	Wrapped     error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	location := ""
	if e.Instruction != nil {
		location = fmt.Sprintf("offset 0x%04X (%s): ", e.Instruction.Offset, e.Instruction.Opcode)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s%s: %v", location, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s%s", location, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *GenerationError) Unwrap() error {
	return e.Wrapped
}

// UnimplementedOpcodeError reports an opcode the generator cannot
// lower (environment, storage and call-family opcodes).
type UnimplementedOpcodeError struct {
	Opcode parser.Opcode
	Offset int
}

func (e *UnimplementedOpcodeError) Error() string {
	return fmt.Sprintf("offset 0x%04X: unimplemented opcode %s", e.Offset, e.Opcode)
}
