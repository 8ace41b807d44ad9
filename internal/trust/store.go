package trust

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/rdpgo/rdp-core/internal/metrics"
)

// State is the trust state of a (host, port) pair against the store.
type State int

const (
	// Unknown means no record exists for this (host, port).
	Unknown State = iota
	// Known means a record exists and its fingerprint matches the
	// presented certificate.
	Known
	// Changed means a record exists but its fingerprint differs from the
	// presented certificate.
	Changed
)

func (s State) String() string {
	switch s {
	case Known:
		return "known"
	case Changed:
		return "changed"
	default:
		return "unknown"
	}
}

// Store is a persistent record of accepted (host, port) -> Identity
// bindings, backed by a single JSON file under the user's config
// directory. It is process-wide and read-mostly; writes are atomic at
// the file-entry level via a write-temp-then-rename.
type Store struct {
	path   string
	logger hclog.Logger

	mu      sync.RWMutex
	entries map[string]*Identity

	group singleflightGroup
}

func key(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// NewStore opens (or lazily creates) the known-hosts store at path.
func NewStore(path string, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Store{
		path:    path,
		logger:  logger.Named("trust.store"),
		entries: make(map[string]*Identity),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the store file record by record rather than unmarshaling it
// as a single map value: one corrupt record (e.g. hand-edited or written
// by an older incompatible version) should not cost every other record
// in the file. Malformed records are dropped and aggregated into a
// single warning rather than failing the whole load.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("trust: reading known-hosts store: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("trust: parsing known-hosts store: %w", err)
	}

	entries := make(map[string]*Identity, len(raw))
	var malformed *multierror.Error
	for k, v := range raw {
		var id Identity
		if err := json.Unmarshal(v, &id); err != nil {
			malformed = multierror.Append(malformed, fmt.Errorf("record %q: %w", k, err))
			continue
		}
		entries[k] = &id
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	if malformed != nil {
		s.logger.Warn("dropped malformed known-hosts records", "error", malformed)
	}
	return nil
}

// Contains reports the trust State of the given identity relative to
// whatever is on record for its (hostname, port).
func (s *Store) Contains(candidate *Identity) State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.entries[key(candidate.Hostname, candidate.Port)]
	if !ok {
		return Unknown
	}
	if stored.Fingerprint == candidate.Fingerprint && stored.HashAlgo == candidate.HashAlgo {
		return Known
	}
	return Changed
}

// Load returns the stored identity for (host, port), or nil if none
// exists.
func (s *Store) Load(host string, port int) *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key(host, port)]
}

// Save persists identity, overwriting any prior record for the same
// (hostname, port). The write is atomic: a temp file is written in the
// same directory and renamed over the target.
func (s *Store) Save(identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key(identity.Hostname, identity.Port)] = identity

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("trust: encoding known-hosts store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("trust: creating known-hosts directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".known-hosts-*")
	if err != nil {
		return fmt.Errorf("trust: creating temp known-hosts file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("trust: writing temp known-hosts file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("trust: closing temp known-hosts file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("trust: renaming temp known-hosts file: %w", err)
	}

	metrics.Registry.IncrCounter(metrics.CertificateStoreWrites, 1)
	s.logger.Info("persisted certificate identity", "host", identity.Hostname, "port", identity.Port)
	return nil
}

// PromptOnce collapses concurrent first-use or changed-fingerprint
// resolutions for the same (host, port) into a single call to fn; other
// callers racing for the same key block on and receive fn's result
// rather than each popping their own user prompt.
func (s *Store) PromptOnce(host string, port int, fn func() (*Identity, error)) (*Identity, error) {
	v, err, _ := s.group.Do(key(host, port), func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	id, _ := v.(*Identity)
	return id, nil
}
