package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alexanderramin/gridboard/internal/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// DB path: env var or default ~/.gridboard/gridboard.db
	dbPath := os.Getenv("GRIDBOARD_DB")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("finding home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".gridboard", "gridboard.db")
	}

	addr := os.Getenv("GRIDBOARD_ADDR")
	if addr == "" {
		addr = ":8787"
	}

	serverURL := os.Getenv("GRIDBOARD_SERVER")
	if serverURL == "" {
		serverURL = "http://localhost:8787"
	}

	cfg := cli.Config{
		DBPath:    dbPath,
		Addr:      addr,
		Secret:    os.Getenv("GRIDBOARD_SECRET"),
		ServerURL: serverURL,
	}
	return cli.NewRootCmd(cfg).Execute()
}
