package cli

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/kr/text"
	"github.com/mitchellh/cli"

	"github.com/rdpgo/rdp-core/internal/common"
)

// DefaultKnownHostsPath returns the default known-hosts store location
// under the user's config directory, falling back to the current
// directory if it cannot be determined.
func DefaultKnownHostsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "rdp-core", "known_hosts.json")
}

type CommonCLI struct {
	UI       cli.Ui
	output   io.Writer
	ctx      context.Context
	help     string
	synopsis string

	// Logging
	flagLogLevel string
	flagLogJSON  bool

	Flags *flag.FlagSet
}

func NewCommonCLI(ctx context.Context, help, synopsis string, ui cli.Ui, logOutput io.Writer, name string) *CommonCLI {
	cli := &CommonCLI{UI: ui, synopsis: synopsis, output: logOutput, ctx: ctx, Flags: flag.NewFlagSet(name, flag.ContinueOnError)}
	cli.init()

	cli.help = FlagUsage(help, cli.Flags)

	return cli
}

func (c *CommonCLI) init() {
	c.Flags.StringVar(&c.flagLogLevel, "log-level", "info",
		`Log verbosity level. Supported values (in order of detail) are "trace", "debug", "info", "warn", and "error".`)
	c.Flags.BoolVar(&c.flagLogJSON, "log-json", false,
		"Enable or disable JSON output format for logging.")

	c.Flags.SetOutput(c.output)
}

func (c *CommonCLI) Context() context.Context {
	return c.ctx
}

func (c *CommonCLI) LogLevel() string {
	return c.flagLogLevel
}

func (c *CommonCLI) Output() io.Writer {
	return c.output
}

func (c *CommonCLI) Logger(name string) hclog.Logger {
	return common.CreateLogger(c.output, c.flagLogLevel, c.flagLogJSON, name)
}

func (c *CommonCLI) Parse(args []string) error {
	return c.Flags.Parse(args)
}

func (c *CommonCLI) Error(message string, err error) int {
	c.UI.Error("There was an error " + message + ":\n\t" + err.Error())
	return 1
}

func (c *CommonCLI) Success(message string) int {
	c.UI.Output(message)
	return 0
}

func (c *CommonCLI) Synopsis() string {
	return c.synopsis
}

func (c *CommonCLI) Help() string {
	return c.help
}

// TargetCLI extends CommonCLI with the flags every command that dials an
// RDP server shares: the target host:port and the trust-policy knobs
// from internal/trust (§6's certificates.json, known-hosts, and
// accepted-fingerprints surfaces).
type TargetCLI struct {
	*CommonCLI

	flagHostname             string
	flagPort                 uint
	flagCAFile               string
	flagKnownHosts           string
	flagCertificatesJSON     string
	flagKeyLogFile           string
	flagInsecure             bool
	flagAcceptedFingerprints common.ArrayFlag
}

func NewTargetCLI(ctx context.Context, help, synopsis string, ui cli.Ui, logOutput io.Writer, name string) *TargetCLI {
	cli := &TargetCLI{
		CommonCLI: NewCommonCLI(ctx, help, synopsis, ui, logOutput, name),
	}
	cli.init()
	cli.help = FlagUsage(help, cli.Flags)

	return cli
}

func (c *TargetCLI) init() {
	c.Flags.StringVar(&c.flagHostname, "hostname", "", "Target RDP server hostname.")
	c.Flags.UintVar(&c.flagPort, "port", 3389, "Target RDP server port.")
	c.Flags.StringVar(&c.flagCAFile, "ca-file", "", "Path to a PEM CA bundle for chain verification.")
	c.Flags.StringVar(&c.flagKnownHosts, "known-hosts", "", "Path to the known-hosts store file.")
	c.Flags.StringVar(&c.flagCertificatesJSON, "certificates-json", "", "Path to a certificates.json trust policy file.")
	c.Flags.StringVar(&c.flagKeyLogFile, "key-log-file", "", "Path to write NSS-format TLS key-log lines.")
	c.Flags.BoolVar(&c.flagInsecure, "insecure", false, "Disable certificate verification entirely (discouraged).")
	c.Flags.Var(&c.flagAcceptedFingerprints, "accepted-fingerprints", "Accepted certificate fingerprint (repeatable).")
}

func (c *TargetCLI) Hostname() string { return c.flagHostname }
func (c *TargetCLI) Port() int        { return int(c.flagPort) }
func (c *TargetCLI) CAFile() string   { return c.flagCAFile }
func (c *TargetCLI) KnownHostsPath() string {
	if c.flagKnownHosts != "" {
		return c.flagKnownHosts
	}
	return DefaultKnownHostsPath()
}
func (c *TargetCLI) CertificatesJSONPath() string { return c.flagCertificatesJSON }
func (c *TargetCLI) KeyLogFile() string           { return c.flagKeyLogFile }
func (c *TargetCLI) Insecure() bool               { return c.flagInsecure }
func (c *TargetCLI) AcceptedFingerprints() []string {
	return []string(c.flagAcceptedFingerprints)
}

func LogAndDie(logger hclog.Logger, message string, err error) int {
	logger.Error("error "+message, "error", err)
	return 1
}

func LogSuccess(logger hclog.Logger, message string) int {
	logger.Info(message)
	return 0
}

func FlagUsage(usage string, flags *flag.FlagSet) string {
	out := new(bytes.Buffer)
	out.WriteString(strings.TrimSpace(usage))
	out.WriteString("\n")
	out.WriteString("\n")

	printTitle(out, "Command Options")
	flags.VisitAll(func(f *flag.Flag) {
		printFlag(out, f)
	})

	return strings.TrimRight(out.String(), "\n")
}

// printTitle prints a consistently-formatted title to the given writer.
func printTitle(w io.Writer, s string) {
	fmt.Fprintf(w, "%s\n\n", s)
}

// printFlag prints a single flag to the given writer.
func printFlag(w io.Writer, f *flag.Flag) {
	example, _ := flag.UnquoteUsage(f)
	if example != "" {
		fmt.Fprintf(w, "  -%s=<%s>\n", f.Name, example)
	} else {
		fmt.Fprintf(w, "  -%s\n", f.Name)
	}

	indented := wrapAtLength(f.Usage, 5)
	fmt.Fprintf(w, "%s\n\n", indented)
}

// contains returns true if the given flag is contained in the given flag
// set or false otherwise.
func contains(fs *flag.FlagSet, f *flag.Flag) bool {
	if fs == nil {
		return false
	}

	var in bool
	fs.VisitAll(func(hf *flag.Flag) {
		in = in || f.Name == hf.Name
	})
	return in
}

// maxLineLength is the maximum width of any line.
const maxLineLength int = 72

// wrapAtLength wraps the given text at the maxLineLength, taking into account
// any provided left padding.
func wrapAtLength(s string, pad int) string {
	wrapped := text.Wrap(s, maxLineLength-pad)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		lines[i] = strings.Repeat(" ", pad) + line
	}
	return strings.Join(lines, "\n")
}
