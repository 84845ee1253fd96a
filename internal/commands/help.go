package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"punchlist/internal/config"
	"punchlist/internal/exitcode"
	"punchlist/internal/service"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "punchlist help" }
func (c *HelpCmd) NeedsAuth() bool   { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  punchlist                                   List your tasks
  punchlist list [common flags]               List your tasks
  punchlist add [common flags] <title...>     Add a task
  punchlist toggle [common flags] <n>         Toggle a task done/open
  punchlist rm [common flags] <n>             Delete a task
  punchlist ui [common flags]                 Open the interactive task list
  punchlist login [common flags] [--email <email>] [--password <password>]
  punchlist signup [common flags] [--email <email>] [--password <password>]
  punchlist logout [common flags]
  punchlist whoami [common flags]
  punchlist serve [common flags] [--addr <addr>] [--db <path>]
  punchlist help
  punchlist version

Common flags:
  --config <dir>   Override config directory
  --server <url>   Override task server URL
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
