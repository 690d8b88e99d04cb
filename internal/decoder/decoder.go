// Package decoder implements the opcode decoder (spec.md §4.1): it maps
// the raw CODE section to an array of typed, decoded opcodes.
package decoder

import (
	"encoding/binary"

	"github.com/zen19/qvmd/internal/model"
	"github.com/zen19/qvmd/internal/qvmerr"
)

const stage = "decoder"

// Decode walks code and returns one model.Opcode per instruction, in
// stream order, each carrying its byte offset for use as a function
// address or jump/call target.
func Decode(code []byte) ([]*model.Opcode, error) {
	var opcodes []*model.Opcode

	offset := 0
	for offset < len(code) {
		start := uint32(offset)
		raw := model.OpKind(code[offset])
		offset++

		if int(raw) <= 0 || !validKind(raw) {
			return nil, qvmerr.Malformed(stage, "unknown opcode 0x%x at offset 0x%x", code[start], start)
		}

		info := model.OpInfoFor(raw)

		var value int32
		if info.OperandSize > 0 {
			if offset+info.OperandSize > len(code) {
				return nil, qvmerr.Truncated(stage, "opcode %s at offset 0x%x is missing its %d-byte operand", info.Mnemonic, start, info.OperandSize)
			}
			switch info.OperandSize {
			case 1:
				value = int32(code[offset])
			case 4:
				value = int32(binary.LittleEndian.Uint32(code[offset : offset+4]))
			}
			offset += info.OperandSize
		}

		opcodes = append(opcodes, &model.Opcode{
			Kind:   raw,
			Value:  value,
			Info:   info,
			Offset: start,
		})
	}

	return opcodes, nil
}

// validKind reports whether raw is a recognized, non-sentinel opcode.
func validKind(raw model.OpKind) bool {
	return raw > model.OpUndef && int(raw) < model.OpKindCount
}
