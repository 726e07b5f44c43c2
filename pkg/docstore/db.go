package docstore

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
)

type Config struct {
	Path     string
	InMemory bool
}

func DefaultConfig() Config {
	if p := os.Getenv("OTAKUHUB_DB_PATH"); p != "" {
		return Config{Path: p}
	}

	// local default: ~/.otakuhub/data
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return Config{
		Path: filepath.Join(home, ".otakuhub", "data"),
	}
}

// DB wraps a Badger instance holding every collection of the catalog.
type DB struct {
	badger *badger.DB
}

func Open(cfg Config) (*DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &DB{badger: db}, nil
}

func MustOpen(cfg Config) *DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	return db
}

func (db *DB) Close() error {
	return db.badger.Close()
}
