package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/mitchellh/cli"

	cmdCache "github.com/rdpgo/rdp-core/internal/commands/cache"
	cmdCacheInspect "github.com/rdpgo/rdp-core/internal/commands/cacheinspect"
	cmdConnect "github.com/rdpgo/rdp-core/internal/commands/connect"
	cmdVersion "github.com/rdpgo/rdp-core/internal/commands/version"

	"github.com/rdpgo/rdp-core/internal/version"
)

func main() {
	ui := &cli.BasicUi{Writer: os.Stdout, ErrorWriter: os.Stderr}
	os.Exit(run(os.Args[1:], ui, os.Stdout))
}

func run(args []string, ui cli.Ui, logOutput io.Writer) int {
	c := cli.NewCLI("rdp-core", version.GetHumanVersion())
	c.Args = args
	c.Commands = initializeCommands(ui, logOutput)
	c.HelpFunc = helpFunc(c.Commands)
	c.HelpWriter = logOutput

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}
	return exitStatus
}

func initializeCommands(ui cli.Ui, logOutput io.Writer) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"version": func() (cli.Command, error) {
			return &cmdVersion.Command{UI: ui, Version: version.GetHumanVersion()}, nil
		},
		"connect": func() (cli.Command, error) {
			return cmdConnect.New(context.Background(), ui, logOutput), nil
		},
		"cache": func() (cli.Command, error) {
			return cmdCache.New(), nil
		},
		"cache inspect": func() (cli.Command, error) {
			return cmdCacheInspect.New(ui, logOutput), nil
		},
	}
}

func helpFunc(commands map[string]cli.CommandFactory) cli.HelpFunc {
	var include []string
	for k := range commands {
		include = append(include, k)
	}
	return cli.FilteredHelpFunc(include, cli.BasicHelpFunc("rdp-core"))
}
