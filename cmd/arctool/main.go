// Command arctool lists and extracts ArchiveFile-style archives.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"charm.land/fang/v2"
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Could not load .env", "err", err)
	}
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}
