package trust

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// CertDBEntry is one trusted fingerprint entry from certificates.json's
// certificate-db array.
type CertDBEntry struct {
	Type string `json:"type"`
	Hash string `json:"hash"`
}

// Config mirrors certificates.json: deny/ignore/deny-userconfig flags and
// a list of pre-trusted fingerprints.
type Config struct {
	Deny           bool          `json:"deny,omitempty"`
	Ignore         bool          `json:"ignore,omitempty"`
	DenyUserConfig bool          `json:"deny-userconfig,omitempty"`
	CertificateDB  []CertDBEntry `json:"certificate-db,omitempty"`
}

// LoadConfig reads certificates.json at path. A missing file is not an
// error: it yields the zero-value Config, which defers every decision to
// the store and user callback.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trust: reading %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("trust: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// matchesDB reports whether candidate's fingerprint appears in the
// certificate-db list under the matching hash algorithm name.
func (c *Config) matchesDB(candidate *Identity) bool {
	for _, entry := range c.CertificateDB {
		if !strings.EqualFold(entry.Type, candidate.HashAlgo) {
			continue
		}
		if normalizeHex(entry.Hash) == normalizeHex(candidate.Fingerprint) {
			return true
		}
	}
	return false
}

func normalizeHex(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, ":", ""))
}

// matchesAcceptedFingerprints implements §4.2 step 1: compare in both
// "aa:bb:cc"-separated and unseparated forms.
func matchesAcceptedFingerprints(accepted []string, candidate *Identity) bool {
	want := normalizeHex(candidate.Fingerprint)
	for _, a := range accepted {
		if normalizeHex(a) == want {
			return true
		}
	}
	return false
}
