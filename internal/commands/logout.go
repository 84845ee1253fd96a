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
	Register(&LogoutCmd{})
}

// LogoutCmd implements the logout command. The local session always
// ends; a failed remote revocation is logged, not fatal.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string      { return "logout" }
func (c *LogoutCmd) Aliases() []string { return nil }
func (c *LogoutCmd) Synopsis() string  { return "Sign out" }
func (c *LogoutCmd) Usage() string     { return "punchlist logout [common flags]" }
func (c *LogoutCmd) NeedsAuth() bool   { return false }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	id, err := svc.CurrentUser(ctx)
	if err == nil && id == nil {
		if !cfg.Quiet {
			fmt.Fprintln(out, "not logged in")
		}
		return exitcode.Success
	}

	if err := svc.SignOut(ctx); err != nil {
		cfg.Log().Warn("remote sign-out failed", "err", err)
	}

	// Belt and braces: the gateway clears token.json itself, but the
	// local session must not survive logout under any circumstances.
	if cfg.HasToken() {
		if err := cfg.RemoveToken(); err != nil {
			fmt.Fprintf(errOut, "error: failed to remove token: %v\n", err)
			return exitcode.AuthError
		}
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
