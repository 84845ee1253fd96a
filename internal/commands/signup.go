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
	Register(&SignupCmd{})
}

// SignupCmd implements the signup command.
type SignupCmd struct {
	email    string
	password string
}

// SetCredentials sets the credentials without prompting (for testing
// and scripting).
func (c *SignupCmd) SetCredentials(email, password string) {
	c.email = email
	c.password = password
}

func (c *SignupCmd) Name() string      { return "signup" }
func (c *SignupCmd) Aliases() []string { return []string{"register"} }
func (c *SignupCmd) Synopsis() string  { return "Create an account" }
func (c *SignupCmd) Usage() string     { return "punchlist signup [common flags] [--email <email>]" }
func (c *SignupCmd) NeedsAuth() bool   { return false }

func (c *SignupCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.password, "password", "", "")
}

func (c *SignupCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	email, password, err := promptCredentials(c.email, c.password, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	id, err := svc.SignUp(ctx, email, password)
	if err != nil {
		return backendCode(err, errOut)
	}

	// A nil identity means the account exists but the provider wants
	// email confirmation first; no session is live yet.
	if id == nil {
		fmt.Fprintln(out, "account created, check your email to confirm")
		return exitcode.Success
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "signed in as %s\n", id.Email)
	}
	return exitcode.Success
}
