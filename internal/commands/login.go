package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"punchlist/internal/config"
	"punchlist/internal/exitcode"
	"punchlist/internal/service"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	email    string
	password string
}

// SetCredentials sets the credentials without prompting (for testing
// and scripting).
func (c *LoginCmd) SetCredentials(email, password string) {
	c.email = email
	c.password = password
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Sign in with email and password" }
func (c *LoginCmd) Usage() string     { return "punchlist login [common flags] [--email <email>]" }
func (c *LoginCmd) NeedsAuth() bool   { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
	fs.StringVar(&c.password, "password", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	// Re-running login replaces any existing session.
	email, password, err := promptCredentials(c.email, c.password, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	id, err := svc.SignIn(ctx, email, password)
	if err != nil {
		return backendCode(err, errOut)
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "signed in as %s\n", id.Email)
	}
	return exitcode.Success
}

// promptCredentials fills in whichever of email and password were not
// given as flags. The password is read without echo when stdin is a
// terminal. Prompts go to errOut so stdout stays scriptable.
func promptCredentials(email, password string, errOut io.Writer) (string, string, error) {
	reader := bufio.NewReader(os.Stdin)

	if email == "" {
		fmt.Fprint(errOut, "email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("reading email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return "", "", errors.New("email required")
	}

	if password == "" {
		fmt.Fprint(errOut, "password: ")
		if term.IsTerminal(int(os.Stdin.Fd())) {
			data, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(errOut)
			if err != nil {
				return "", "", fmt.Errorf("reading password: %w", err)
			}
			password = string(data)
		} else {
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", "", fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
	}
	if password == "" {
		return "", "", errors.New("password required")
	}

	return email, password, nil
}
