package parser

import (
	"fmt"
)

// Parser decodes raw EVM bytecode into an instruction sequence. The
// decoder is a two-state machine: reading an opcode, or collecting
// the immediate bytes of a PUSH. Instructions come out in stream
// order, one per opcode byte.
type Parser struct {
	// StrictPush enables bounds checking of PUSH immediates. When
	// disabled the stream is assumed well formed and a short trailing
	// immediate is taken as-is (the hot-path configuration).
	StrictPush bool
}

// NewParser creates a decoder with strict PUSH checking enabled.
func NewParser() *Parser {
	return &Parser{StrictPush: true}
}

// Parse decodes the full bytecode buffer. It fails on the first
// unassigned opcode byte and, in strict mode, on a PUSH immediate
// running past the end of the buffer.
func (p *Parser) Parse(bytecode []byte) ([]Instruction, error) {
	instructions := make([]Instruction, 0, len(bytecode))
	i := 0

	for i < len(bytecode) {
		offset := i
		opcode, err := OpcodeFromByte(bytecode[i])
		if err != nil {
			if decodeErr, ok := err.(*Error); ok {
				decodeErr.Offset = offset
			}
			return nil, err
		}
		i++

		var operand []byte
		if size := opcode.PushSize(); size > 0 {
			operand, err = p.parsePushOperand(bytecode, &i, size, offset)
			if err != nil {
				return nil, err
			}
		}

		instructions = append(instructions, Instruction{
			Opcode:  opcode,
			Operand: operand,
			Offset:  offset,
		})
	}

	return instructions, nil
}

// parsePushOperand consumes size immediate bytes following a PUSH
// opcode, advancing the stream index.
func (p *Parser) parsePushOperand(bytecode []byte, index *int, size, opOffset int) ([]byte, error) {
	if *index+size > len(bytecode) {
		if p.StrictPush {
			return nil, NewError(opOffset, ErrorTruncatedPush,
				fmt.Sprintf("unexpected end of bytecode: PUSH%d needs %d operand bytes, %d remain",
					size, size, len(bytecode)-*index))
		}
		// Unchecked mode: take what is there.
		size = len(bytecode) - *index
	}
	operand := make([]byte, size)
	copy(operand, bytecode[*index:*index+size])
	*index += size
	return operand, nil
}

// Parse decodes bytecode with the default strict decoder.
func Parse(bytecode []byte) ([]Instruction, error) {
	return NewParser().Parse(bytecode)
}
