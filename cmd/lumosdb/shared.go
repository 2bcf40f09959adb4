package main

import (
	"fmt"
	"os"

	"github.com/lumos-db/lumosdb/internal/columnengine"
	"github.com/lumos-db/lumosdb/internal/rowengine"
	"github.com/lumos-db/lumosdb/pkg/config"
)

// loadConfig loads configuration, exiting on failure the way teacher's
// subcommands do.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// openEngines opens both engine facades against cfg's configured paths,
// ensuring the data directory exists first.
func openEngines(cfg *config.Config) (*rowengine.Engine, *columnengine.Engine) {
	if err := cfg.EnsureDataDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating data directory: %v\n", err)
		os.Exit(1)
	}

	row, err := rowengine.Open(cfg.RowEngine.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening row engine: %v\n", err)
		os.Exit(1)
	}

	column, err := columnengine.Open(cfg.ColumnEngine.Path)
	if err != nil {
		row.Close()
		fmt.Fprintf(os.Stderr, "Error opening column engine: %v\n", err)
		os.Exit(1)
	}

	return row, column
}
