// Command ask is the entry point for the ask codebase assistant.
// It provides a CLI interface (via Cobra), an interactive REPL, and an
// optional HTTP server exposing the agent over a REST/SSE API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ndev/ask-go/cmd/ask/commands"
)

func main() {
	// Load .env from the working directory if present. Real environment
	// variables always win over .env values.
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
