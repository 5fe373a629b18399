// Package main provides the sonido-corpus CLI.
//
// Usage:
//
//	sonido-corpus [flags] <command> [args]
//
// Commands:
//
//	generate - write training batches as msgpack shards
//	preview  - render examples to WAV files with timeline logs
//	chords   - list the chord catalog
//	library  - list the loaded sample libraries
package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-corpus/cmd/sonido-corpus/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
