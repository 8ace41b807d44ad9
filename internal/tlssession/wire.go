package tlssession

import (
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/rdpgo/rdp-core/internal/trust"
)

// channelBindingPrefix is prepended to the certificate hash to form the
// "tls-server-end-point" channel-binding token of RFC 5929, used by
// upstream NLA to bind the TLS session to the authentication exchange.
var channelBindingPrefix = []byte("tls-server-end-point:")

// TLS alert level/description values a Session can queue via SendAlert;
// names follow RFC 8446 §6.
const (
	alertLevelWarning uint8 = 1
	alertLevelFatal   uint8 = 2

	alertCloseNotify        uint8 = 0
	alertBadCertificate     uint8 = 42
	alertCertificateExpired uint8 = 45
	alertCertificateUnknown uint8 = 46
	alertUnrecognizedName   uint8 = 112
)

// alertName renders a TLS alert description for logging; it covers the
// descriptions this package actually queues and falls back to the raw
// numeric value for anything else.
func alertName(description uint8) string {
	switch description {
	case alertCloseNotify:
		return "close_notify"
	case alertBadCertificate:
		return "bad_certificate"
	case alertCertificateExpired:
		return "certificate_expired"
	case alertCertificateUnknown:
		return "certificate_unknown"
	case alertUnrecognizedName:
		return "unrecognized_name"
	default:
		return fmt.Sprintf("alert(%d)", description)
	}
}

// errRenegotiationRequested marks a write failure caused by the peer
// requesting renegotiation. crypto/tls.Conn.Write does not surface this
// as a distinct sentinel, so in practice this case is unreachable with
// the stock TLS 1.2/1.3 stack; it is kept so WriteAll's contract matches
// §4.3 even if a future engine swap reintroduces renegotiation.
var errRenegotiationRequested = errors.New("tlssession: renegotiation requested")

// publicKeyBytes marshals the certificate's subject public key in its
// DER SubjectPublicKeyInfo form, the representation §6 specifies for
// exposing the server's public key to callers.
func publicKeyBytes(cert *x509.Certificate) ([]byte, error) {
	return x509.MarshalPKIXPublicKey(cert.PublicKey)
}

// channelBindingToken returns the raw hash portion of the channel-binding
// token (without the "tls-server-end-point:" prefix); see
// trust.ChannelBindingHash for the algorithm-selection rule.
func channelBindingToken(cert *x509.Certificate) []byte {
	return trust.ChannelBindingHash(cert)
}
