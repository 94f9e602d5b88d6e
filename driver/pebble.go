package driver

import (
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// OpenPebble opens (or creates) the local key-value store under dir.
func OpenPebble(dir string) (*pebble.DB, error) {
	opts := &pebble.Options{
		MemTableSize:          8 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return db, nil
}
