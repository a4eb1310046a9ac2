package storage

import (
	"errors"
	"time"

	quake "github.com/perpetuallyhorni/quakefilter/internal"
)

// ErrCorruptStore is returned when the persisted hash store exists but cannot be read.
var ErrCorruptStore = errors.New("hash store is corrupt")

// HashRecord represents a single row of the seen-hash table.
type HashRecord struct {
	// Hash is the pixel hash.
	Hash quake.Hash
	// URL is the first image URL that produced the hash.
	URL string
	// Source is the input file the URL was read from.
	Source string
	// SeenAt is when the hash was first recorded.
	SeenAt time.Time
}

// SourceCount is the number of hashes first seen in one input file.
type SourceCount struct {
	Source string
	Count  int
}

// Storer defines the interface for persisting seen hashes.
// This allows for different database backends to be used by the pipeline.
type Storer interface {
	// LoadHashes returns every persisted hash.
	LoadHashes() ([]quake.Hash, error)
	// SaveHashes persists the records atomically. Hashes already present are left untouched.
	SaveHashes(records []HashRecord) error
	// CountHashes returns the number of persisted hashes.
	CountHashes() (int, error)
	// CountBySource returns how many hashes each input file contributed.
	CountBySource() ([]SourceCount, error)
	// Close closes the database connection.
	Close() error
}
