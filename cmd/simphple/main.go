package main

import (
	"os"

	"github.com/netbrain/simphple-orm/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
