package trust

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestStoreContainsStates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "known_hosts.json"), hclog.NewNullLogger())
	require.NoError(t, err)

	cert := generateCert(t, "rdp.example.com", nil)
	identity, err := NewIdentity("rdp.example.com", 3389, cert)
	require.NoError(t, err)

	require.Equal(t, Unknown, store.Contains(identity))

	require.NoError(t, store.Save(identity))
	require.Equal(t, Known, store.Contains(identity))

	other := generateCert(t, "rdp.example.com", nil)
	otherIdentity, err := NewIdentity("rdp.example.com", 3389, other)
	require.NoError(t, err)
	require.Equal(t, Changed, store.Contains(otherIdentity))
}

func TestStorePersistsAcrossReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts.json")

	store, err := NewStore(path, hclog.NewNullLogger())
	require.NoError(t, err)

	cert := generateCert(t, "rdp.example.com", nil)
	identity, err := NewIdentity("rdp.example.com", 3389, cert)
	require.NoError(t, err)
	require.NoError(t, store.Save(identity))

	reopened, err := NewStore(path, hclog.NewNullLogger())
	require.NoError(t, err)
	require.Equal(t, Known, reopened.Contains(identity))

	loaded := reopened.Load("rdp.example.com", 3389)
	require.NotNil(t, loaded)
	require.Equal(t, identity.Fingerprint, loaded.Fingerprint)
}

func TestStoreLoadToleratesMalformedRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "known_hosts.json")

	// one well-formed record, two malformed ones (a bare string where an
	// object is expected, and a Port field of the wrong JSON type); the
	// good record must still load and the store must still open. Both
	// malformed records are themselves syntactically valid JSON values,
	// since a syntax error anywhere in the file would invalidate the
	// whole document before per-record decoding ever runs.
	contents := `{
		"good.example.com:3389": {"Hostname":"good.example.com","Port":3389,"Fingerprint":"aa:bb","HashAlgo":"sha256"},
		"bad-string.example.com:3389": "not an object",
		"bad-wrongtype.example.com:3389": {"Hostname":"bad-wrongtype.example.com","Port":"not-a-number"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	store, err := NewStore(path, hclog.NewNullLogger())
	require.NoError(t, err, "malformed records must not fail the whole load")

	good := store.Load("good.example.com", 3389)
	require.NotNil(t, good)
	require.Equal(t, "aa:bb", good.Fingerprint)

	require.Nil(t, store.Load("bad-string.example.com", 3389))
	require.Nil(t, store.Load("bad-wrongtype.example.com", 3389))
}

func TestStoreMissingFileIsNotAnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "does-not-exist.json"), hclog.NewNullLogger())
	require.NoError(t, err)
	require.Equal(t, Unknown, store.Contains(&Identity{Hostname: "x", Port: 1, Fingerprint: "ff"}))
}
