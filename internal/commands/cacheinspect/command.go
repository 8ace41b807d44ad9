// Package cacheinspect implements the "cache inspect" CLI command: a
// read-only diagnostic that loads a persistent bitmap cache file and
// prints its record headers without decoding pixel data.
package cacheinspect

import (
	"flag"
	"fmt"
	"io"
	"sync"

	"github.com/mitchellh/cli"

	"github.com/rdpgo/rdp-core/internal/bitmapcache"
)

// Command is the "cache inspect" subcommand.
type Command struct {
	UI     cli.Ui
	output io.Writer

	flagSet *flag.FlagSet
	once    sync.Once

	flagPath string
}

// New returns a new cache-inspect command.
func New(ui cli.Ui, logOutput io.Writer) *Command {
	return &Command{UI: ui, output: logOutput}
}

func (c *Command) init() {
	c.flagSet = flag.NewFlagSet("cache inspect", flag.ContinueOnError)
	c.flagSet.SetOutput(c.output)
	c.flagSet.StringVar(&c.flagPath, "file", "", "Path to a persistent bitmap cache file.")
}

func (c *Command) Run(args []string) int {
	c.once.Do(c.init)

	if err := c.flagSet.Parse(args); err != nil {
		return 1
	}
	if c.flagPath == "" {
		c.UI.Error("-file is required")
		return 1
	}

	version, records, err := bitmapcache.InspectFile(c.flagPath)
	if err != nil {
		c.UI.Error("error reading " + c.flagPath + ": " + err.Error())
		return 1
	}

	c.UI.Output(fmt.Sprintf("version: %d, entries: %d", version, len(records)))
	for _, r := range records {
		c.UI.Output(fmt.Sprintf("  key=%d width=%d height=%d size=%d", r.Key64, r.Width, r.Height, r.Size))
	}
	return 0
}

func (c *Command) Synopsis() string {
	return "Prints the record headers of a persistent bitmap cache file"
}

func (c *Command) Help() string {
	return `
Usage: rdp-core cache inspect -file <path>

  Reads a persistent bitmap cache file and prints each record's key,
  dimensions, and size without decoding pixel data.
`
}
