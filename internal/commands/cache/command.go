// Package cache groups the "cache" subcommands.
package cache

import "github.com/mitchellh/cli"

// New returns the "cache" group placeholder command: it has no action of
// its own and exists only so `rdp-core cache` without a subcommand prints
// help rather than failing.
func New() cli.Command {
	return &Command{}
}

type Command struct{}

func (c *Command) Run(_ []string) int {
	return cli.RunResultHelp
}

func (c *Command) Synopsis() string {
	return "Inspect persistent bitmap cache files"
}

func (c *Command) Help() string {
	return `
Usage: rdp-core cache <subcommand> [options]

  This command has subcommands for inspecting persistent bitmap cache
  files. See "rdp-core cache inspect -h".
`
}
