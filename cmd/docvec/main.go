// Package main provides the docvec CLI.
//
// Usage:
//
//	docvec [flags] <command> [args]
//
// Commands:
//
//	build    - Rebuild the index from a JSON list of texts
//	append   - Append texts to the existing index
//	search   - Search the index
//	migrate  - Import a legacy chunk list
//
// Configuration:
//
//	The OpenAI API key is read from DOCVEC_API_KEY. Everything else can be
//	set via flags or a YAML config file passed with --config.
package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/docvec/cmd/docvec/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
