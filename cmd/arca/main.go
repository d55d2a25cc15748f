package main

import (
	"os"

	"github.com/ebursztein/arca-backend/cmd/arca/commands"
)

// main is the entry point for the Arca CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
