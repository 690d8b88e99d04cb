package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/zen19/qvmd/internal/emitter"
	"github.com/zen19/qvmd/internal/loader"
	"github.com/zen19/qvmd/internal/model"
	"github.com/zen19/qvmd/internal/pipeline"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: qvmd <input> <output>")
		os.Exit(1)
	}

	input := os.Args[1]
	output := os.Args[2]

	fmt.Printf("Decompiling %s to %s...\n", input, output)

	data, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	sections, err := loader.Load(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	mod, err := pipeline.Analyze(sections, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	reportProgress(mod.Functions)

	text, err := emitter.Emit(mod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(output, []byte(text), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Success.")
}

// reportProgress prints a carriage-return-driven counter on an
// interactive terminal, or nothing under redirection (where the
// banner above is the only progress signal).
func reportProgress(functions []*model.Function) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return
	}

	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		width = 80
	}

	total := len(functions)
	for i := range functions {
		line := fmt.Sprintf("function %d/%d", i+1, total)
		if len(line) > width {
			line = line[:width]
		}
		fmt.Printf("\r%-*s", width, line)
	}
	fmt.Print("\r")
	for i := 0; i < width; i++ {
		fmt.Print(" ")
	}
	fmt.Print("\r")
}
