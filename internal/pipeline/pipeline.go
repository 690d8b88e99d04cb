// Package pipeline is the single entry point gluing every stage
// together in the order spec.md §2 mandates, advancing each
// function's lifecycle state (spec.md §4.7) as each stage completes.
package pipeline

import (
	"github.com/zen19/qvmd/internal/decoder"
	"github.com/zen19/qvmd/internal/emitter"
	"github.com/zen19/qvmd/internal/lifter"
	"github.com/zen19/qvmd/internal/linker"
	"github.com/zen19/qvmd/internal/model"
	"github.com/zen19/qvmd/internal/resolver"
	"github.com/zen19/qvmd/internal/segmenter"
	"github.com/zen19/qvmd/internal/xref"
)

// Decompile runs the full decoder → segmenter → lifter → resolver →
// xref → linker → emitter pipeline over sections and returns the
// rendered listing.
func Decompile(sections model.Sections, moduleName string) (string, error) {
	mod, err := Analyze(sections, moduleName)
	if err != nil {
		return "", err
	}
	return emitter.Emit(mod)
}

// Analyze runs every stage up to (and including) the call-argument
// linker, returning the fully linked module without rendering it —
// the shape embedders that want the analysis without the text want.
func Analyze(sections model.Sections, moduleName string) (*model.Module, error) {
	mod := model.NewModule(moduleName)
	mod.Sections = sections

	opcodes, err := decoder.Decode(sections.Code)
	if err != nil {
		return nil, err
	}
	mod.Opcodes = opcodes
	mod.InstructionCount = len(opcodes)

	functions, bodies, err := segmenter.Segment(opcodes)
	if err != nil {
		return nil, err
	}
	mod.Functions = functions

	for i, fn := range functions {
		if err := lifter.Lift(mod, fn, bodies[i]); err != nil {
			return nil, err
		}
	}

	if err := resolver.Resolve(mod); err != nil {
		return nil, err
	}

	xref.BuildXrefs(mod)
	linker.LinkArgs(mod)

	return mod, nil
}
