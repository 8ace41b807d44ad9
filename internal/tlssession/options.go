package tlssession

import (
	"crypto/tls"
	"fmt"

	"github.com/rdpgo/rdp-core/internal/common"
)

// Role is the connection role of a Session.
type Role int

const (
	// RoleClient drives Connect/handshake as the TLS client.
	RoleClient Role = iota
	// RoleServer drives Accept/handshake as the TLS server.
	RoleServer
)

// protocolVersions maps the setting names used throughout the RDP client
// ecosystem (see internal/common.SupportedTLSVersions) to the
// crypto/tls version constants.
var protocolVersions = map[string]uint16{
	"":         0, // TLS_AUTO: let crypto/tls pick
	"TLS_AUTO": 0,
	"TLSv1_0":  tls.VersionTLS10,
	"TLSv1_1":  tls.VersionTLS11,
	"TLSv1_2":  tls.VersionTLS12,
	"TLSv1_3":  tls.VersionTLS13,
}

// ResolveProtocolVersion converts a configured version name to the
// crypto/tls constant, returning BadConfiguration-flavored error for an
// unrecognized name.
func ResolveProtocolVersion(name string) (uint16, error) {
	v, ok := protocolVersions[name]
	if !ok {
		return 0, fmt.Errorf("tlssession: unsupported TLS version %q", name)
	}
	return v, nil
}

// cipherSuiteIDs resolves the configured cipher suite names
// (Config.CipherSuites) to IDs crypto/tls accepts. Names rejected by
// common.SupportedTLSCipherSuite, or unknown to crypto/tls, are dropped
// silently.
func cipherSuiteIDs(names []string) []uint16 {
	lookup := make(map[string]uint16, len(tls.CipherSuites())+len(tls.InsecureCipherSuites()))
	for _, c := range tls.CipherSuites() {
		lookup[c.Name] = c.ID
	}
	for _, c := range tls.InsecureCipherSuites() {
		lookup[c.Name] = c.ID
	}

	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		if !common.SupportedTLSCipherSuite(name) {
			continue
		}
		if id, ok := lookup[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Credentials carries the server-side identity installed before a server
// handshake.
type Credentials struct {
	CertificatePEM []byte
	PrivateKeyPEM  []byte
}
