// Package connect implements the "connect" CLI command: it drives a
// TLSSession against a target host:port end to end, exercising the
// certificate store and trust policy exactly as a real client would.
package connect

import (
	"context"
	"crypto/x509"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"golang.org/x/sync/errgroup"

	rdpcli "github.com/rdpgo/rdp-core/internal/cli"
	"github.com/rdpgo/rdp-core/internal/metrics"
	"github.com/rdpgo/rdp-core/internal/profiling"
	"github.com/rdpgo/rdp-core/internal/tlssession"
	"github.com/rdpgo/rdp-core/internal/trust"
)

// Command is the "connect" subcommand.
type Command struct {
	UI     cli.Ui
	output io.Writer
	ctx    context.Context

	flagSet *flag.FlagSet
	once    sync.Once

	target *rdpcli.TargetCLI

	flagMetricsAddr string
	flagPprofAddr   string
}

// New returns a new connect command.
func New(ctx context.Context, ui cli.Ui, logOutput io.Writer) *Command {
	return &Command{UI: ui, output: logOutput, ctx: ctx}
}

func (c *Command) init() {
	c.target = rdpcli.NewTargetCLI(c.ctx, c.Help(), c.Synopsis(), c.UI, c.output, "connect")
	c.flagSet = c.target.Flags
	c.flagSet.StringVar(&c.flagMetricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics on this address for the duration of the connection.")
	c.flagSet.StringVar(&c.flagPprofAddr, "pprof-addr", "", "If set, serve pprof debugging endpoints on this address for the duration of the connection.")
}

// Run parses flags, establishes the TCP transport, drives the TLS
// handshake to completion (or failure) through internal/tlssession, and
// reports the outcome.
func (c *Command) Run(args []string) int {
	c.once.Do(c.init)

	if err := c.flagSet.Parse(args); err != nil {
		return 1
	}

	logger := c.target.Logger("connect")

	if c.target.Hostname() == "" {
		c.UI.Error("-hostname is required")
		return 1
	}

	// The metrics server, the pprof server, and the handshake workflow
	// itself run concurrently under one errgroup: a failure in any of
	// the background servers cancels groupCtx and unwinds the
	// handshake, and the handshake's own completion cancels groupCtx so
	// the background servers shut down instead of outliving it.
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(runCtx)

	if c.flagMetricsAddr != "" {
		group.Go(func() error {
			return metrics.RunServer(groupCtx, logger.Named("metrics"), c.flagMetricsAddr)
		})
	}
	if c.flagPprofAddr != "" {
		group.Go(func() error {
			return profiling.RunServer(groupCtx, logger.Named("pprof"), c.flagPprofAddr)
		})
	}

	var exitCode int
	group.Go(func() error {
		defer cancel()
		exitCode = c.connect(groupCtx, logger)
		return nil
	})

	if err := group.Wait(); err != nil {
		return rdpcli.LogAndDie(logger, "connect", err)
	}
	return exitCode
}

// connect dials the target, drives the TLS handshake to completion or
// failure, and reports the outcome. It is run under the errgroup set up
// by Run, so ctx is cancelled as soon as it returns.
func (c *Command) connect(ctx context.Context, logger hclog.Logger) int {
	store, err := trust.NewStore(c.target.KnownHostsPath(), logger)
	if err != nil {
		return rdpcli.LogAndDie(logger, "opening known-hosts store", err)
	}

	var cfg *trust.Config
	if c.target.CertificatesJSONPath() != "" {
		cfg, err = trust.LoadConfig(c.target.CertificatesJSONPath())
		if err != nil {
			return rdpcli.LogAndDie(logger, "loading certificates.json", err)
		}
	}

	var roots *x509.CertPool
	if c.target.CAFile() != "" {
		pem, err := os.ReadFile(c.target.CAFile())
		if err != nil {
			return rdpcli.LogAndDie(logger, "reading CA file", err)
		}
		roots = x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return rdpcli.LogAndDie(logger, "parsing CA file", fmt.Errorf("no certificates found"))
		}
	}

	addr := fmt.Sprintf("%s:%d", c.target.Hostname(), c.target.Port())
	transport, err := net.DialTimeout("tcp", addr, 15*time.Second)
	if err != nil {
		return rdpcli.LogAndDie(logger, "dialing "+addr, err)
	}
	defer transport.Close()

	session := tlssession.New(logger, tlssession.RoleClient, tlssession.Config{
		Hostname:   c.target.Hostname(),
		Port:       c.target.Port(),
		MinVersion: "TLSv1_2",
		MaxVersion: "TLSv1_3",
		KeyLogPath: c.target.KeyLogFile(),
		Store:      store,
		TrustOptions: trust.Options{
			AcceptedFingerprints: c.target.AcceptedFingerprints(),
			IgnoreCertificate:    c.target.Insecure(),
			Config:               cfg,
			Roots:                roots,
			Prompt:               consolePrompt(c.UI),
		},
	})
	defer session.Close()

	if err := session.Connect(transport); err != nil {
		return rdpcli.LogAndDie(logger, "configuring TLS session", err)
	}

	handshakeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch result, err := session.PollAndHandshake(handshakeCtx); result {
	case tlssession.ResultSuccess:
		identity := session.TrustedIdentity()
		c.UI.Output(fmt.Sprintf("established TLS session with %s (fingerprint %s)", addr, identity.Fingerprint))
		c.UI.Output(fmt.Sprintf("channel-binding token: %x", session.ChannelBindingToken()))
		return 0
	case tlssession.ResultVerifyError:
		return rdpcli.LogAndDie(logger, "trust policy rejected the server certificate", err)
	default:
		return rdpcli.LogAndDie(logger, "TLS handshake", err)
	}
}

// consolePrompt renders a trust prompt to the CLI UI and reads the
// user's decision, the interactive counterpart to the auto-accept/
// auto-deny flags a host embedder would wire instead.
func consolePrompt(ui cli.Ui) trust.Prompt {
	return func(event trust.PromptEvent) (trust.Decision, error) {
		if event.Changed {
			ui.Warn(fmt.Sprintf("WARNING: certificate for %s has changed since it was last seen", event.Candidate.Hostname))
			ui.Warn(fmt.Sprintf("previous fingerprint: %s", event.Previous.Fingerprint))
		}
		ui.Output(fmt.Sprintf("fingerprint: %s", event.Candidate.Fingerprint))
		answer, err := ui.Ask("accept this certificate permanently? [y/N/t(emporary)]")
		if err != nil {
			return trust.DecisionReject, err
		}
		switch answer {
		case "y", "Y":
			return trust.DecisionAcceptPermanent, nil
		case "t", "T":
			return trust.DecisionAcceptTemporary, nil
		default:
			return trust.DecisionReject, nil
		}
	}
}

func (c *Command) Synopsis() string {
	return "Establishes a TLS session against an RDP server and reports the outcome"
}

func (c *Command) Help() string {
	return `
Usage: rdp-core connect -hostname <host> [options]

  Dials the target host, performs the TLS handshake, and runs the
  client-side trust policy against the presented certificate.
`
}
