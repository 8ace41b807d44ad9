// Package tlssession layers TLS over a byte-oriented net.Conn transport,
// drives the handshake state machine, and extracts the public key and
// channel-binding token a session needs for upstream authentication. It
// integrates internal/trust to decide whether a presented server
// certificate is acceptable.
package tlssession

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/rdpgo/rdp-core/internal/metrics"
	"github.com/rdpgo/rdp-core/internal/trust"
)

// State is a Session's lifecycle state, per §3's state machine.
type State int

const (
	Prepared State = iota
	Handshaking
	Established
	ShuttingDown
	Destroyed
)

func (s State) String() string {
	switch s {
	case Prepared:
		return "prepared"
	case Handshaking:
		return "handshaking"
	case Established:
		return "established"
	case ShuttingDown:
		return "shutting-down"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Handshake/PollAndHandshake call.
type Result int

const (
	ResultContinue Result = iota
	ResultSuccess
	ResultError
	ResultVerifyError
)

// writeRetryInterval is the bounded wait between WriteAll retries while
// the transport is write-blocked (§4.3, §5).
const writeRetryInterval = 100 * time.Millisecond

// Config configures a Session's handshake, independent of role.
type Config struct {
	Hostname      string
	Port          int
	MinVersion    string // e.g. "TLSv1_2"; see ResolveProtocolVersion
	MaxVersion    string
	CipherSuites  []string // empty uses the Go TLS stack's defaults
	KeyLogPath    string
	Store         *trust.Store  // required for RoleClient
	TrustOptions  trust.Options // required for RoleClient
	Credentials   *Credentials  // required for RoleServer
}

// Session is the TLS state machine described in §4.3: it owns the
// transport, the TLS engine, the serializing lock, the extracted public
// key and channel-binding token, and the connection role.
type Session struct {
	id     string
	logger hclog.Logger
	role   Role
	cfg    Config

	mu    sync.Mutex // serializes engine reads/writes; see §5
	state State

	transport net.Conn
	conn      *tls.Conn
	keyLog    interface {
		Write([]byte) (int, error)
		Close() error
	}

	abort           chan struct{}
	abortOnce       sync.Once
	handshakeCtx    context.Context
	handshakeCancel context.CancelFunc

	handshakeOnce sync.Once
	handshakeDone chan struct{}
	handshakeErr  error
	verifyErr     error

	peerCertificate *x509.Certificate
	trustedIdentity *trust.Identity
	publicKey       []byte
	channelBinding  []byte

	alertLevel       uint8
	alertDescription uint8
	alertPending     bool
}

// New creates a Session in the Prepared state. No I/O occurs until
// Connect or Accept is called.
func New(logger hclog.Logger, role Role, cfg Config) *Session {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	id := uuid.NewString()
	handshakeCtx, handshakeCancel := context.WithCancel(context.Background())
	return &Session{
		id:              id,
		logger:          logger.Named("tlssession").With("session_id", id),
		role:            role,
		cfg:             cfg,
		state:           Prepared,
		abort:           make(chan struct{}),
		handshakeCtx:    handshakeCtx,
		handshakeCancel: handshakeCancel,
		handshakeDone:   make(chan struct{}),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// Abort signals session cancellation. PollAndHandshake observes it at
// its next suspension point; WriteAll checks it every retry iteration;
// an in-flight HandshakeContext call is unblocked by cancelling
// handshakeCtx, the same mechanism crypto/tls itself uses to force a
// blocked handshake to return early. Abort must never block on s.mu:
// WriteAll holds that lock for its whole retry loop, and it's exactly
// that loop Abort needs to interrupt.
func (s *Session) Abort() {
	s.abortOnce.Do(func() { close(s.abort) })
	s.handshakeCancel()
}

func (s *Session) buildConfig() (*tls.Config, error) {
	minV, err := ResolveProtocolVersion(s.cfg.MinVersion)
	if err != nil {
		return nil, err
	}
	maxV, err := ResolveProtocolVersion(s.cfg.MaxVersion)
	if err != nil {
		return nil, err
	}

	tlsCfg := &tls.Config{
		ServerName:         s.cfg.Hostname,
		MinVersion:         minV,
		MaxVersion:         maxV,
		InsecureSkipVerify: true, // custom verification happens post-handshake via internal/trust
	}
	if ids := cipherSuiteIDs(s.cfg.CipherSuites); len(ids) > 0 {
		tlsCfg.CipherSuites = ids
	}

	if s.cfg.KeyLogPath != "" {
		kl, err := openKeyLog(s.cfg.KeyLogPath)
		if err != nil {
			return nil, fmt.Errorf("tlssession: opening key log: %w", err)
		}
		s.keyLog = kl
		tlsCfg.KeyLogWriter = kl
	}

	if s.role == RoleServer {
		if s.cfg.Credentials == nil {
			return nil, fmt.Errorf("tlssession: server role requires Credentials")
		}
		cert, err := tls.X509KeyPair(s.cfg.Credentials.CertificatePEM, s.cfg.Credentials.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("tlssession: loading server credentials: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

// Connect configures TLS per the interoperability requirements of §4.3
// (SNI set to hostname, version bounds, optional cipher list, optional
// key-logging) and moves the session to Handshaking. The handshake
// itself runs in the background; call Handshake or PollAndHandshake to
// observe its result.
func (s *Session) Connect(transport net.Conn) error {
	if s.role != RoleClient {
		return fmt.Errorf("tlssession: Connect called on a %v-role session", s.role)
	}
	tlsCfg, err := s.buildConfig()
	if err != nil {
		return err
	}

	s.transport = transport
	s.conn = tls.Client(transport, tlsCfg)
	s.setState(Handshaking)
	s.startHandshake()
	return nil
}

// Accept installs the server's credentials and moves the session to
// Handshaking, without invoking the client-side trust policy.
func (s *Session) Accept(transport net.Conn) error {
	if s.role != RoleServer {
		return fmt.Errorf("tlssession: Accept called on a %v-role session", s.role)
	}
	tlsCfg, err := s.buildConfig()
	if err != nil {
		return err
	}

	s.transport = transport
	s.conn = tls.Server(transport, tlsCfg)
	s.setState(Handshaking)
	s.startHandshake()
	return nil
}

func (s *Session) startHandshake() {
	s.handshakeOnce.Do(func() {
		go s.runHandshake()
	})
}

func (s *Session) runHandshake() {
	defer close(s.handshakeDone)
	defer s.handshakeCancel()

	if err := s.conn.HandshakeContext(s.handshakeCtx); err != nil {
		s.handshakeErr = err
		metrics.Registry.IncrCounter(metrics.TLSHandshakeFailures, 1)
		return
	}

	state := s.conn.ConnectionState()
	if len(state.PeerCertificates) > 0 {
		s.peerCertificate = state.PeerCertificates[0]
		s.publicKey, _ = publicKeyBytes(s.peerCertificate)
		s.channelBinding = channelBindingToken(s.peerCertificate)
	}

	if s.role == RoleClient {
		if s.peerCertificate == nil {
			s.verifyErr = fmt.Errorf("tlssession: %w", trust.ErrCertificateMalformed)
			return
		}
		identity, err := trust.Verify(s.cfg.Store, s.logger, s.cfg.Hostname, s.cfg.Port, s.peerCertificate, s.cfg.TrustOptions)
		if err != nil {
			s.verifyErr = err
			s.queueAlert(alertLevelFatal, alertBadCertificate)
			return
		}
		s.trustedIdentity = identity
	}

	metrics.Registry.IncrCounter(metrics.TLSHandshakes, 1)
}

// Handshake returns the current handshake outcome without blocking:
// Continue while the background handshake is still running, Success once
// it completes cleanly, VerifyError if the trust policy rejected the
// peer, or Error for any other fatal TLS failure.
func (s *Session) Handshake() Result {
	select {
	case <-s.handshakeDone:
	default:
		return ResultContinue
	}

	if s.verifyErr != nil {
		s.setState(ShuttingDown)
		return ResultVerifyError
	}
	if s.handshakeErr != nil {
		s.setState(Destroyed)
		return ResultError
	}
	s.setState(Established)
	return ResultSuccess
}

// PollAndHandshake blocks until the handshake finishes, the abort event
// fires, or ctx is done — the two wake sources of §4.3's
// poll_and_handshake. On abort it transitions to Destroyed and returns
// ResultError with ErrAborted; otherwise it returns the same Result
// Handshake would, paired with the handshake or trust-verification
// error that produced it (nil on ResultSuccess/ResultContinue).
func (s *Session) PollAndHandshake(ctx context.Context) (Result, error) {
	select {
	case <-s.handshakeDone:
		// Abort cancels the background handshake, so handshakeDone can be
		// ready at the same time as abort; report the abort itself.
		select {
		case <-s.abort:
			s.setState(Destroyed)
			return ResultError, ErrAborted
		default:
		}
		switch result := s.Handshake(); result {
		case ResultVerifyError:
			return result, s.verifyErr
		case ResultError:
			return result, s.handshakeErr
		default:
			return result, nil
		}
	case <-s.abort:
		s.setState(Destroyed)
		return ResultError, ErrAborted
	case <-ctx.Done():
		s.setState(Destroyed)
		return ResultError, ctx.Err()
	}
}

// WriteAll writes p with back-pressure: when the transport is
// write-blocked it retries after a bounded wait (~100ms) rather than
// spinning; it checks the abort handle on every iteration. A renegotiation
// request from the peer surfaces as ErrMustReadFirst so the caller can
// drain input before retrying.
func (s *Session) WriteAll(ctx context.Context, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Established {
		return fmt.Errorf("tlssession: WriteAll: %w (state=%v)", ErrWrongState, s.state)
	}

	for len(p) > 0 {
		select {
		case <-s.abort:
			return ErrAborted
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_ = s.conn.SetWriteDeadline(time.Now().Add(writeRetryInterval))
		n, err := s.conn.Write(p)
		p = p[n:]
		if err == nil {
			continue
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			continue // write-blocked; retry after the bounded wait
		}
		if errors.Is(err, errRenegotiationRequested) {
			return ErrMustReadFirst
		}
		return fmt.Errorf("tlssession: write: %w", err)
	}
	_ = s.conn.SetWriteDeadline(time.Time{})
	return nil
}

// SendAlert records that level/description should have been sent to the
// peer. crypto/tls exposes no API to transmit an arbitrary alert, so
// nothing actually goes on the wire: Close logs the pending alert and
// folds it into its returned error instead. Close_notify is the one
// exception, since tls.Conn.Close sends it unconditionally on its own.
func (s *Session) SendAlert(level, description uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertLevel = level
	s.alertDescription = description
	s.alertPending = true
}

func (s *Session) queueAlert(level, description uint8) {
	s.alertLevel = level
	s.alertDescription = description
	s.alertPending = true
}

// PublicKey returns the peer's public key bytes, captured at handshake
// completion.
func (s *Session) PublicKey() []byte {
	return s.publicKey
}

// ChannelBindingToken returns "tls-server-end-point:" || hash(cert), per
// §4.3 and §6, for use verbatim in upstream NLA.
func (s *Session) ChannelBindingToken() []byte {
	if s.channelBinding == nil {
		return nil
	}
	token := make([]byte, 0, len(channelBindingPrefix)+len(s.channelBinding))
	token = append(token, channelBindingPrefix...)
	token = append(token, s.channelBinding...)
	return token
}

// TrustedIdentity returns the Identity admitted by the trust policy, once
// the handshake has succeeded on the client side.
func (s *Session) TrustedIdentity() *trust.Identity {
	return s.trustedIdentity
}

// Close logs and reports any pending alert, shuts the TLS engine down,
// and closes the key log, moving the session to Destroyed. The three
// outcomes are independent failure points — an unsent alert, a failed
// engine close, a failed key log flush — so they're aggregated with
// go-multierror rather than the first one masking the rest.
func (s *Session) Close() error {
	s.mu.Lock()
	s.state = ShuttingDown
	pending, level, description := s.alertPending, s.alertLevel, s.alertDescription
	s.alertPending = false
	s.mu.Unlock()

	var result *multierror.Error

	if pending {
		s.logger.Warn("TLS alert not delivered, crypto/tls has no send path", "level", level, "description", alertName(description))
		result = multierror.Append(result, fmt.Errorf("tlssession: alert %s queued but not sent: %w", alertName(description), ErrAlertNotDelivered))
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("tlssession: closing TLS engine: %w", err))
		}
	}

	if s.keyLog != nil {
		if err := s.keyLog.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("tlssession: closing key log: %w", err))
		}
	}

	s.setState(Destroyed)
	return result.ErrorOrNil()
}
