package version

import (
	"fmt"

	"github.com/mitchellh/cli"
)

// Command prints the build version.
type Command struct {
	UI      cli.Ui
	Version string
}

func (c *Command) Help() string {
	return "Usage: rdp-core version\n\n  Prints the current rdp-core version."
}

func (c *Command) Synopsis() string {
	return "Prints the version"
}

func (c *Command) Run(_ []string) int {
	c.UI.Output(fmt.Sprintf("rdp-core %s", c.Version))
	return 0
}
