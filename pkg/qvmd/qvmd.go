/*
Package qvmd provides a public API for embedding the QVM decompiler in
Go applications, mirroring the shape of pkg/rage's embeddable runtime
facade.

# Quick Start

Decompile a module file straight to its textual listing:

	text, err := qvmd.DecompileFile("game.qvm")
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(text)

Decompile bytes already read into memory (e.g. fetched over the
network, extracted from an archive):

	text, err := qvmd.DecompileBytes(data, "game.qvm")
*/
package qvmd

import (
	"os"
	"path/filepath"

	"github.com/zen19/qvmd/internal/loader"
	"github.com/zen19/qvmd/internal/pipeline"
)

// DecompileFile reads path, decompiles it, and returns the rendered
// listing.
func DecompileFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DecompileBytes(data, filepath.Base(path))
}

// DecompileBytes decompiles an in-memory QVM module. name is used only
// for the listing's banner comment.
func DecompileBytes(data []byte, name string) (string, error) {
	sections, err := loader.Load(data)
	if err != nil {
		return "", err
	}
	return pipeline.Decompile(sections, name)
}
