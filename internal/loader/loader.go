// Package loader implements the external bytecode file loader
// described in spec.md §6: parsing a QVM module's header and sections
// into model.Sections. It is out of scope for the lifting/analysis
// core per spec.md §1, but is implemented here so the module is
// runnable end to end.
package loader

import (
	"encoding/binary"

	"github.com/zen19/qvmd/internal/model"
	"github.com/zen19/qvmd/internal/qvmerr"
)

const stage = "loader"

// headerFields is the little-endian uint32 count layout following the
// magic number: instruction count, code length, data length, lit
// length, bss length (spec.md §6). A real QVM header also carries code
// and data section offsets and an optional jump-table length; this
// loader reads the minimal layout the core's sections contract needs.
const headerFields = 5

// magic is the four-byte little-endian QVM header tag.
const magic = 0x12721444

// Load parses raw into model.Sections. raw is the entire module file.
func Load(raw []byte) (model.Sections, error) {
	const headerLen = 4 + headerFields*4
	if len(raw) < headerLen {
		return model.Sections{}, qvmerr.Truncated(stage, "file is %d bytes, shorter than the %d-byte header", len(raw), headerLen)
	}

	if got := binary.LittleEndian.Uint32(raw[0:4]); got != magic {
		return model.Sections{}, qvmerr.Malformed(stage, "bad magic 0x%x", got)
	}

	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(raw[off : off+4]) }
	instructionCount := u32(4)
	codeLen := u32(8)
	dataLen := u32(12)
	litLen := u32(16)
	bssLen := u32(20)

	offset := headerLen
	code, offset, err := slice(raw, offset, codeLen, "code")
	if err != nil {
		return model.Sections{}, err
	}
	data, offset, err := slice(raw, offset, dataLen, "data")
	if err != nil {
		return model.Sections{}, err
	}
	lit, _, err := slice(raw, offset, litLen, "lit")
	if err != nil {
		return model.Sections{}, err
	}

	_ = instructionCount // surfaced by the pipeline via the decoded opcode count instead

	return model.Sections{Code: code, Data: data, Lit: lit, BSSSize: bssLen}, nil
}

func slice(raw []byte, offset int, length uint32, name string) ([]byte, int, error) {
	end := offset + int(length)
	if end > len(raw) {
		return nil, 0, qvmerr.Truncated(stage, "%s section declares %d bytes but only %d remain", name, length, len(raw)-offset)
	}
	return raw[offset:end], end, nil
}
