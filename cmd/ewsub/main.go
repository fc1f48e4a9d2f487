package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

var version = "dev"

func main() {
	cmd := newRootCmd()

	// Default to warnings only; --debug lowers the global level in the
	// command's PersistentPreRun.
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	logger := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
