package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func generateCert(t *testing.T, commonName string, sans []string) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		DNSNames:     sans,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestMatchesHostname(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name    string
		pattern string
		host    string
		matches bool
	}{
		{name: "exact", pattern: "rdp.example.com", host: "rdp.example.com", matches: true},
		{name: "exact-case-insensitive", pattern: "RDP.example.com", host: "rdp.example.com", matches: true},
		{name: "exact-mismatch", pattern: "rdp.example.com", host: "other.example.com", matches: false},
		{name: "wildcard-single-label", pattern: "*.example.com", host: "rdp.example.com", matches: true},
		{name: "wildcard-case-insensitive", pattern: "*.EXAMPLE.com", host: "rdp.example.com", matches: true},
		{name: "wildcard-rejects-multi-label", pattern: "*.example.com", host: "a.rdp.example.com", matches: false},
		{name: "wildcard-rejects-bare-domain", pattern: "*.example.com", host: "example.com", matches: false},
		{name: "wildcard-different-domain", pattern: "*.example.com", host: "rdp.example.org", matches: false},
	} {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, test.matches, MatchesHostname(test.pattern, test.host))
		})
	}
}

func TestHostnameMatchesCertificate(t *testing.T) {
	t.Parallel()

	cert := generateCert(t, "rdp.example.com", []string{"*.internal.example.com"})

	require.True(t, HostnameMatchesCertificate("rdp.example.com", cert))
	require.True(t, HostnameMatchesCertificate("gateway.internal.example.com", cert))
	require.False(t, HostnameMatchesCertificate("unrelated.example.com", cert))
}

func TestNewIdentityFingerprintSHA256Signed(t *testing.T) {
	t.Parallel()

	cert := generateCert(t, "rdp.example.com", nil)
	identity, err := NewIdentity("rdp.example.com", 3389, cert)
	require.NoError(t, err)
	require.Equal(t, "sha256", identity.HashAlgo)
	require.Len(t, identity.Fingerprint, 64) // hex-encoded SHA-256
	require.NotEmpty(t, identity.PEM)
}

func TestNewIdentityFingerprintFollowsStrongerSignatureHash(t *testing.T) {
	t.Parallel()

	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:       big.NewInt(1),
		Subject:            pkix.Name{CommonName: "rdp.example.com"},
		NotBefore:          time.Now().Add(-time.Hour),
		NotAfter:           time.Now().Add(time.Hour),
		SignatureAlgorithm: x509.ECDSAWithSHA384,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	require.Equal(t, x509.ECDSAWithSHA384, cert.SignatureAlgorithm)

	identity, err := NewIdentity("rdp.example.com", 3389, cert)
	require.NoError(t, err)
	require.Equal(t, "sha384", identity.HashAlgo, "a SHA-384-signed certificate must not be folded into a SHA-256 fingerprint")
	require.Len(t, identity.Fingerprint, 96) // hex-encoded SHA-384
}

func TestIdentityEquivalentAndSameHost(t *testing.T) {
	t.Parallel()

	cert := generateCert(t, "rdp.example.com", nil)
	a, err := NewIdentity("rdp.example.com", 3389, cert)
	require.NoError(t, err)
	b, err := NewIdentity("rdp.example.com", 3389, cert)
	require.NoError(t, err)

	require.True(t, a.Equivalent(b))
	require.True(t, a.SameHost(b))

	other := generateCert(t, "other.example.com", nil)
	c, err := NewIdentity("rdp.example.com", 3389, other)
	require.NoError(t, err)
	require.False(t, a.Equivalent(c))
	require.True(t, a.SameHost(c))
}
