// Package commands provides the command interface and implementations.
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

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth reports whether the command requires a live session.
	// The dispatcher refuses such commands with a "not logged in"
	// error before Run is called.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, settings, logger).
	// svc is the gateway; it works signed out, remote calls simply
	// fail with an auth error.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int
}

// requireUser resolves the signed-in identity, printing the standard
// errors on failure. The returned code is only meaningful when the
// identity is nil.
func requireUser(ctx context.Context, svc service.Service, errOut io.Writer) (*service.Identity, int) {
	id, err := svc.CurrentUser(ctx)
	if err != nil {
		return nil, backendCode(err, errOut)
	}
	if id == nil {
		fmt.Fprintln(errOut, "error: not logged in (run: punchlist login)")
		return nil, exitcode.AuthError
	}
	return id, exitcode.Success
}

// backendCode prints a gateway error and maps it to an exit code.
func backendCode(err error, errOut io.Writer) int {
	if service.IsAuth(err) {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}
	fmt.Fprintf(errOut, "error: backend error: %v\n", err)
	return exitcode.BackendError
}
