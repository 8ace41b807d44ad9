package trust

import "errors"

// Error taxonomy for certificate trust resolution, per the session-level
// error taxonomy: CertificateRejected and CertificateMalformed are fatal
// to the session; CertificatePolicyDenied is a BadConfiguration-adjacent
// fatal raised by certificates.json's "deny" key.
var (
	ErrCertificateMalformed  = errors.New("trust: certificate malformed, no usable key or PEM")
	ErrCertificateRejected   = errors.New("trust: certificate rejected")
	ErrCertificatePolicyDenied = errors.New("trust: certificate denied by configuration policy")
)
