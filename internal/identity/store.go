// Package identity implements the persistent identity registry: an
// in-memory map keyed by key-fingerprint, mirrored to a single JSON
// document on disk that is replaced atomically on every save.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gateway "github.com/altshift/agentgate/internal"
)

// documentVersion is written into the on-disk document. Documents with an
// unknown version load as an empty store, same as a corrupt document.
const documentVersion = 1

const documentName = "identities.json"

// document is the on-disk layout: the whole store as one JSON object.
type document struct {
	Version    int                          `json:"version"`
	Identities map[string]*gateway.Identity `json:"identities"`
}

// Clock supplies the current time; injectable for tests.
type Clock func() time.Time

// Store is the identity registry. Readers take the RWMutex read lock and
// receive deep copies; all mutation goes through Update under the write
// lock so counter increments are never lost. File writes are serialized
// by saveMu and committed with a temp-file rename, so a crash leaves
// either the prior or the new document fully intact.
type Store struct {
	mu         sync.RWMutex
	identities map[string]*gateway.Identity

	path   string
	saveMu sync.Mutex

	now Clock
}

// Open loads the identity document from dir, creating the directory if
// needed. A missing, corrupt, or unknown-version document starts empty;
// corruption is logged, never fatal.
func Open(dir string) (*Store, error) {
	return OpenWithClock(dir, time.Now)
}

// OpenWithClock is Open with an injectable clock.
func OpenWithClock(dir string, now Clock) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{
		identities: make(map[string]*gateway.Identity),
		path:       filepath.Join(dir, documentName),
		now:        now,
	}
	s.load()
	return s, nil
}

// load reads the document from disk into the in-memory map.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("identity document unreadable, starting empty", "path", s.path, "error", err)
		}
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("identity document corrupt, starting empty", "path", s.path, "error", err)
		return
	}
	if doc.Version != documentVersion {
		slog.Warn("identity document has unknown version, starting empty",
			"path", s.path, "version", doc.Version)
		return
	}
	if doc.Identities != nil {
		s.identities = doc.Identities
	}
	slog.Info("identity document loaded", "path", s.path, "identities", len(s.identities))
}

// ResolveOrCreate returns the identity for fp, creating a fresh record on
// first sighting. The returned record is a copy. created reports whether
// a new identity was initialized; new identities are persisted
// immediately so restarts do not forget first contacts.
func (s *Store) ResolveOrCreate(fp string) (*gateway.Identity, bool, error) {
	s.mu.RLock()
	if id, ok := s.identities[fp]; ok {
		cp := id.Clone()
		s.mu.RUnlock()
		return cp, false, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	// Double-check after acquiring the write lock.
	if id, ok := s.identities[fp]; ok {
		cp := id.Clone()
		s.mu.Unlock()
		return cp, false, nil
	}
	id := s.newIdentity(fp)
	s.identities[fp] = id
	cp := id.Clone()
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		return cp, true, err
	}
	return cp, true, nil
}

// newIdentity initializes a record with tier defaults. Callers hold the
// write lock.
func (s *Store) newIdentity(fp string) *gateway.Identity {
	handle := gateway.NewIdentityID()
	return &gateway.Identity{
		ID:          handle,
		Fingerprint: fp,
		DisplayName: "agent-" + handle,
		Tier:        gateway.TierFree,
		CreatedAt:   s.now().UnixMilli(),
		Memory:      []gateway.MemoryEntry{},
		Traits: gateway.Traits{
			Sentiment:  0,
			TrustScore: 0.5,
		},
	}
}

// Load returns a copy of the identity for fp, or gateway.ErrNotFound.
func (s *Store) Load(fp string) (*gateway.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identities[fp]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return id.Clone(), nil
}

// Update applies fn to the identity for fp under the write lock and then
// persists the document. fn sees the live record, so read-modify-write
// sequences (counter increments, memory appends) are linearizable across
// concurrent requests. The in-memory mutation survives a failed save; the
// error then wraps gateway.ErrStorage.
func (s *Store) Update(fp string, fn func(*gateway.Identity)) (*gateway.Identity, error) {
	s.mu.Lock()
	id, ok := s.identities[fp]
	if !ok {
		s.mu.Unlock()
		return nil, gateway.ErrNotFound
	}
	fn(id)
	cp := id.Clone()
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		return cp, err
	}
	return cp, nil
}

// Snapshot returns copies of all identities for admin aggregates.
func (s *Store) Snapshot() []*gateway.Identity {
	s.mu.RLock()
	out := make([]*gateway.Identity, 0, len(s.identities))
	for _, id := range s.identities {
		out = append(out, id.Clone())
	}
	s.mu.RUnlock()
	return out
}

// Count returns the number of registered identities.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}

// Save serializes the whole store and atomically replaces the on-disk
// document (write temp + rename). One save is in flight at a time; a
// crash loses at most the most recent in-flight save.
func (s *Store) Save() error {
	s.mu.RLock()
	doc := document{
		Version:    documentVersion,
		Identities: make(map[string]*gateway.Identity, len(s.identities)),
	}
	for fp, id := range s.identities {
		doc.Identities[fp] = id.Clone()
	}
	s.mu.RUnlock()

	data, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("%w: marshal identity document: %v", gateway.ErrStorage, err)
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), documentName+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp document: %v", gateway.ErrStorage, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp document: %v", gateway.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync temp document: %v", gateway.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp document: %v", gateway.ErrStorage, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace document: %v", gateway.ErrStorage, err)
	}
	return nil
}
