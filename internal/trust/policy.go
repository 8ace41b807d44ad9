package trust

import (
	"crypto/x509"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/rdpgo/rdp-core/internal/metrics"
)

// Decision is the outcome a Prompt callback returns for a new or changed
// identity.
type Decision int

const (
	// DecisionReject refuses the certificate outright.
	DecisionReject Decision = iota
	// DecisionAcceptTemporary admits the certificate for this session
	// only; nothing is written to the store.
	DecisionAcceptTemporary
	// DecisionAcceptPermanent admits the certificate and persists it.
	DecisionAcceptPermanent
)

// PromptEvent carries everything a user callback needs to render a
// trust prompt for a new or changed server identity.
type PromptEvent struct {
	Candidate *Identity
	Previous  *Identity // non-nil, with Changed=true, when the fingerprint differs from what's on record
	Changed   bool
}

// Prompt is invoked when the store and configuration leave the decision
// to the user (§4.2 step 7).
type Prompt func(PromptEvent) (Decision, error)

// ExternalManager is the host-supplied callback used when "external
// management" is enabled (§4.2 step 3): given the PEM text, it returns
// the verdict directly, bypassing the store entirely.
type ExternalManager func(pem string) (Decision, error)

// Options configures one call to Verify. Only the fields relevant to the
// connection at hand need to be set; the zero value defers everything to
// the store and Prompt.
type Options struct {
	// AcceptedFingerprints is compared against the candidate in both
	// colon-separated and bare hex forms (§4.2 step 1).
	AcceptedFingerprints []string

	// AcceptedPEM is an already-accepted PEM for this transport kind
	// (gateway / redirected / direct); an exact byte match accepts
	// without consulting the store (§4.2 step 2).
	AcceptedPEM string

	// ExternalManagement, when non-nil, is step 3: its verdict is
	// returned unconditionally.
	ExternalManagement ExternalManager

	// IgnoreCertificate accepts unconditionally with a loud warning
	// (§4.2 step 4). Discouraged; exists for interoperability testing.
	IgnoreCertificate bool

	// Config is the decoded certificates.json (§4.2 step 6). A nil
	// Config is treated as empty.
	Config *Config

	// Roots is the trust anchor pool used for chain verification in
	// step 5. A nil pool causes step 5 to be skipped (falls through to
	// step 6/7), matching a client with no configured CA bundle.
	Roots *x509.CertPool

	// Intermediates is passed through to x509.Certificate.Verify.
	Intermediates *x509.CertPool

	// Prompt is invoked for step 7 when every automatic rule above
	// defers to the user. May be nil only if AutoAcceptNew/AutoAcceptChanged
	// or AutoDenyNew/AutoDenyChanged make that unreachable.
	Prompt Prompt

	// AutoAcceptNew / AutoDenyNew bypass Prompt for a previously-unseen
	// identity. AutoAcceptChanged / AutoDenyChanged do the same for a
	// fingerprint change. At most one of each pair should be set; if
	// both are set, deny wins, mirroring the deny-over-ignore ordering
	// decided for certificates.json (see DESIGN.md, Open Question 9(a)).
	AutoAcceptNew     bool
	AutoDenyNew       bool
	AutoAcceptChanged bool
	AutoDenyChanged   bool
}

// Verify implements the client-side trust policy of §4.2: given a
// presented certificate, the (host, port) it was presented for, the
// known-hosts store, and Options, return the admitted Identity or an
// error drawn from the taxonomy in §7.
func Verify(store *Store, logger hclog.Logger, host string, port int, cert *x509.Certificate, opts Options) (*Identity, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("trust.policy")

	candidate, err := NewIdentity(host, port, cert)
	if err != nil {
		return nil, err
	}

	record := func(decision string) {
		metrics.Registry.IncrCounter(metrics.CertificateTrustDecisions, 1)
		logger.Debug("trust decision", "host", host, "port", port, "decision", decision)
	}

	// Step 1: accepted fingerprint list.
	if len(opts.AcceptedFingerprints) > 0 && matchesAcceptedFingerprints(opts.AcceptedFingerprints, candidate) {
		record("accepted-fingerprint")
		return candidate, nil
	}

	// Step 2: already-accepted PEM for this transport kind.
	if opts.AcceptedPEM != "" && opts.AcceptedPEM == candidate.PEM {
		record("accepted-pem")
		return candidate, nil
	}

	// Step 3: external management delegates entirely.
	if opts.ExternalManagement != nil {
		decision, err := opts.ExternalManagement(candidate.PEM)
		if err != nil {
			return nil, fmt.Errorf("trust: external management callback: %w", err)
		}
		if decision == DecisionReject {
			record("external-reject")
			return nil, ErrCertificateRejected
		}
		record("external-accept")
		return candidate, nil
	}

	// Step 4: ignore-certificate, discouraged.
	if opts.IgnoreCertificate {
		logger.Warn("certificate verification disabled, accepting unconditionally", "host", host, "port", port)
		record("ignore-certificate")
		return candidate, nil
	}

	// Step 5: chain verification plus hostname match.
	if opts.Roots != nil {
		_, verifyErr := cert.Verify(x509.VerifyOptions{
			Roots:         opts.Roots,
			Intermediates: opts.Intermediates,
		})
		if verifyErr == nil && HostnameMatchesCertificate(host, cert) {
			record("chain-verified")
			return candidate, nil
		}
	}

	// Step 6: certificates.json.
	cfg := opts.Config
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Deny {
		record("config-deny")
		return nil, ErrCertificatePolicyDenied
	}
	if cfg.Ignore {
		record("config-ignore")
		return candidate, nil
	}
	if cfg.matchesDB(candidate) {
		record("config-certificate-db")
		return candidate, nil
	}

	// Step 7: store lookup, user prompt.
	state := store.Contains(candidate)
	switch state {
	case Known:
		record("store-known")
		return candidate, nil

	case Changed:
		previous := store.Load(host, port)
		logger.Warn("certificate fingerprint changed", "host", host, "port", port,
			"previous_fingerprint", previous.Fingerprint, "new_fingerprint", candidate.Fingerprint)

		if cfg.DenyUserConfig || opts.AutoDenyChanged {
			record("changed-auto-deny")
			return nil, ErrCertificateRejected
		}
		if opts.AutoAcceptChanged {
			record("changed-auto-accept")
			return persistIfPermanent(store, candidate, true)
		}
		if opts.Prompt == nil {
			return nil, fmt.Errorf("trust: no prompt configured for changed certificate: %w", ErrCertificateRejected)
		}
		return store.PromptOnce(host, port, func() (*Identity, error) {
			decision, err := opts.Prompt(PromptEvent{Candidate: candidate, Previous: previous, Changed: true})
			if err != nil {
				return nil, fmt.Errorf("trust: prompt for changed certificate: %w", err)
			}
			return finishPrompt(store, candidate, decision, "changed")
		})

	default: // Unknown
		logger.Warn("unknown certificate identity", "host", host, "port", port, "fingerprint", candidate.Fingerprint)

		if cfg.DenyUserConfig || opts.AutoDenyNew {
			record("new-auto-deny")
			return nil, ErrCertificateRejected
		}
		if opts.AutoAcceptNew {
			record("new-auto-accept")
			return persistIfPermanent(store, candidate, true)
		}
		if opts.Prompt == nil {
			return nil, fmt.Errorf("trust: no prompt configured for new certificate: %w", ErrCertificateRejected)
		}
		return store.PromptOnce(host, port, func() (*Identity, error) {
			decision, err := opts.Prompt(PromptEvent{Candidate: candidate, Changed: false})
			if err != nil {
				return nil, fmt.Errorf("trust: prompt for new certificate: %w", err)
			}
			return finishPrompt(store, candidate, decision, "new")
		})
	}
}

func finishPrompt(store *Store, candidate *Identity, decision Decision, kind string) (*Identity, error) {
	switch decision {
	case DecisionAcceptPermanent:
		metrics.Registry.IncrCounter(metrics.CertificateTrustDecisions, 1)
		return persistIfPermanent(store, candidate, true)
	case DecisionAcceptTemporary:
		metrics.Registry.IncrCounter(metrics.CertificateTrustDecisions, 1)
		return persistIfPermanent(store, candidate, false)
	default:
		metrics.Registry.IncrCounter(metrics.CertificateTrustDecisions, 1)
		return nil, fmt.Errorf("trust: %s certificate rejected by user: %w", kind, ErrCertificateRejected)
	}
}

func persistIfPermanent(store *Store, candidate *Identity, permanent bool) (*Identity, error) {
	if !permanent {
		return candidate, nil
	}
	if err := store.Save(candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}
