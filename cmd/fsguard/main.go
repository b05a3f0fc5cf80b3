package main

import (
	"context"
	"os"

	"fsguard/cmd/fsguard/commands"
	"fsguard/internal/exitcodes"

	"github.com/charmbracelet/fang"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := fang.Execute(context.Background(), commands.Root(), fang.WithVersion(version+" ("+commit+")")); err != nil {
		os.Exit(exitcodes.FromError(err))
	}
}
