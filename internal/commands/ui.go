package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"punchlist/internal/config"
	"punchlist/internal/exitcode"
	"punchlist/internal/service"
	"punchlist/internal/ui"
)

func init() {
	Register(&UICmd{})
}

// UICmd launches the interactive terminal UI. It does not require a
// live session; the UI shows its own login screen when signed out.
type UICmd struct{}

func (c *UICmd) Name() string      { return "ui" }
func (c *UICmd) Aliases() []string { return []string{"tui"} }
func (c *UICmd) Synopsis() string  { return "Open the interactive task list" }
func (c *UICmd) Usage() string     { return "punchlist ui [common flags]" }
func (c *UICmd) NeedsAuth() bool   { return false }

func (c *UICmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *UICmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if err := ui.Run(ctx, svc, cfg); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
