// Package trust implements the certificate identity model, the
// known-hosts store, and the trust policy decision function described for
// the TLS session's server-certificate handling: given a presented
// certificate, stored data, a hostname, and configuration, decide
// accept/deny/prompt.
package trust

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
)

// Identity is the stored record for one presented certificate: the tuple
// of hostname, port, subject, issuer, hash-derived fingerprint, and the
// canonical PEM encoding used for byte-for-byte comparison.
type Identity struct {
	Hostname    string
	Port        int
	Subject     string
	Issuer      string
	HashAlgo    string // name of the hash algorithm the Fingerprint was computed with
	Fingerprint string // hex, colon-unseparated
	PEM         string
}

// NewIdentity builds an Identity from a parsed certificate and the
// (host, port) it was presented for.
func NewIdentity(host string, port int, cert *x509.Certificate) (*Identity, error) {
	if cert == nil {
		return nil, fmt.Errorf("%w: nil certificate", ErrCertificateMalformed)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	if len(pemBytes) == 0 {
		return nil, fmt.Errorf("%w: could not encode certificate to PEM", ErrCertificateMalformed)
	}

	algo, fingerprint := fingerprint(cert)

	return &Identity{
		Hostname:    host,
		Port:        port,
		Subject:     cert.Subject.String(),
		Issuer:      cert.Issuer.String(),
		HashAlgo:    algo,
		Fingerprint: fingerprint,
		PEM:         string(pemBytes),
	}, nil
}

// fingerprint computes the certificate's channel-binding-grade hash. Per
// RFC 5929, certificates signed with MD5 or SHA-1 are upgraded to
// SHA-256; otherwise the certificate's own signature hash algorithm is
// used, so a SHA-384/SHA-512-signed certificate produces a SHA-384/
// SHA-512 fingerprint rather than being silently folded into SHA-256.
func fingerprint(cert *x509.Certificate) (algo string, hexDigest string) {
	switch cert.SignatureAlgorithm {
	case x509.MD5WithRSA,
		x509.SHA1WithRSA,
		x509.DSAWithSHA1,
		x509.ECDSAWithSHA1:
		sum := sha256.Sum256(cert.Raw)
		return "sha256", hex.EncodeToString(sum[:])
	case x509.SHA384WithRSA, x509.ECDSAWithSHA384, x509.SHA384WithRSAPSS:
		sum := sha512.Sum384(cert.Raw)
		return "sha384", hex.EncodeToString(sum[:])
	case x509.SHA512WithRSA, x509.ECDSAWithSHA512, x509.SHA512WithRSAPSS:
		sum := sha512.Sum512(cert.Raw)
		return "sha512", hex.EncodeToString(sum[:])
	default:
		// SHA256WithRSA, ECDSAWithSHA256, SHA256WithRSAPSS, PureEd25519,
		// and anything this package doesn't otherwise recognize.
		sum := sha256.Sum256(cert.Raw)
		return "sha256", hex.EncodeToString(sum[:])
	}
}

// ChannelBindingHash returns the hash that must back the
// "tls-server-end-point:" channel-binding token for this certificate:
// SHA-256 whenever the original signature was MD5 or SHA-1, and the
// certificate's own signature hash otherwise.
func ChannelBindingHash(cert *x509.Certificate) []byte {
	_, digest := fingerprint(cert)
	raw, err := hex.DecodeString(digest)
	if err != nil {
		// fingerprint always returns valid hex; this is unreachable.
		return nil
	}
	return raw
}

// Equivalent reports whether two identities are byte-for-byte the same
// certificate.
func (i *Identity) Equivalent(other *Identity) bool {
	if i == nil || other == nil {
		return false
	}
	return i.PEM == other.PEM
}

// SameHost reports whether two identities were presented for the same
// (hostname, port).
func (i *Identity) SameHost(other *Identity) bool {
	if i == nil || other == nil {
		return false
	}
	return strings.EqualFold(i.Hostname, other.Hostname) && i.Port == other.Port
}

// MatchesHostname applies the RDP client's wildcard rule: a pattern
// beginning with "*." matches any single-label prefix of the hostname,
// case-insensitively. Non-wildcard patterns require an exact,
// case-insensitive match.
func MatchesHostname(pattern, hostname string) bool {
	pattern = strings.ToLower(pattern)
	hostname = strings.ToLower(hostname)

	if !strings.HasPrefix(pattern, "*.") {
		return pattern == hostname
	}

	suffix := pattern[1:] // ".example.com"
	if !strings.HasSuffix(hostname, suffix) {
		return false
	}
	label := strings.TrimSuffix(hostname, suffix)
	return label != "" && !strings.Contains(label, ".")
}

// HostnameMatchesCertificate checks the hostname against the
// certificate's Common Name and DNS SANs using the wildcard rule above.
func HostnameMatchesCertificate(hostname string, cert *x509.Certificate) bool {
	if MatchesHostname(cert.Subject.CommonName, hostname) {
		return true
	}
	for _, san := range cert.DNSNames {
		if MatchesHostname(san, hostname) {
			return true
		}
	}
	return false
}
