package storage

import (
	"fmt"
	"sync"
	"time"

	quake "github.com/perpetuallyhorni/quakefilter/internal"
)

// HashStore is the in-memory set of seen hashes, backed by a Storer.
// Additions stay pending until Save.
type HashStore struct {
	db Storer

	mu      sync.Mutex
	seen    map[quake.Hash]struct{}
	pending []HashRecord
	source  string
	now     func() time.Time
}

// NewHashStore creates an empty store. A nil db keeps the set in memory only.
func NewHashStore(db Storer) *HashStore {
	return &HashStore{
		db:   db,
		seen: make(map[quake.Hash]struct{}),
		now:  time.Now,
	}
}

// Load replaces the in-memory set with the persisted hashes.
func (s *HashStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[quake.Hash]struct{})
	s.pending = nil
	if s.db == nil {
		return nil
	}
	hashes, err := s.db.LoadHashes()
	if err != nil {
		return fmt.Errorf("failed to load seen hashes: %w", err)
	}
	for _, h := range hashes {
		s.seen[h] = struct{}{}
	}
	return nil
}

// SetSource sets the input file recorded with subsequently added hashes.
func (s *HashStore) SetSource(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
}

// Add records the hash and reports whether it was new.
func (s *HashStore) Add(h quake.Hash, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[h]; ok {
		return false
	}
	s.seen[h] = struct{}{}
	s.pending = append(s.pending, HashRecord{Hash: h, URL: url, Source: s.source, SeenAt: s.now().UTC()})
	return true
}

// Len returns the number of known hashes.
func (s *HashStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Discard forgets the hashes added since the last Save and returns how many there were.
// Their images count as unseen again.
func (s *HashStore) Discard() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	for _, rec := range s.pending {
		delete(s.seen, rec.Hash)
	}
	s.pending = nil
	return n
}

// Save persists the pending hashes and returns how many were written.
// Nothing is written when no hash was added.
func (s *HashStore) Save() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 || s.db == nil {
		n := len(s.pending)
		s.pending = nil
		return n, nil
	}
	if err := s.db.SaveHashes(s.pending); err != nil {
		return 0, fmt.Errorf("failed to save %d seen hashes: %w", len(s.pending), err)
	}
	n := len(s.pending)
	s.pending = nil
	return n, nil
}
