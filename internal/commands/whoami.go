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
	Register(&WhoamiCmd{})
}

// WhoamiCmd implements the whoami command.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string      { return "whoami" }
func (c *WhoamiCmd) Aliases() []string { return nil }
func (c *WhoamiCmd) Synopsis() string  { return "Print the signed-in account" }
func (c *WhoamiCmd) Usage() string     { return "punchlist whoami [common flags]" }
func (c *WhoamiCmd) NeedsAuth() bool   { return false }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	id, err := svc.CurrentUser(ctx)
	if err != nil {
		return backendCode(err, errOut)
	}
	if id == nil {
		fmt.Fprintln(out, "not logged in")
		return exitcode.Success
	}
	fmt.Fprintln(out, id.Email)
	return exitcode.Success
}
