package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"punchlist/internal/config"
	"punchlist/internal/exitcode"
	"punchlist/internal/output"
	"punchlist/internal/service"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `punchlist` (no args) and `punchlist list`.
type ListCmd struct{}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string     { return "punchlist list [common flags]" }
func (c *ListCmd) NeedsAuth() bool   { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	id, code := requireUser(ctx, svc, errOut)
	if id == nil {
		return code
	}

	tasks, err := svc.ListTasks(ctx, id.ID)
	if err != nil {
		return backendCode(err, errOut)
	}

	if len(tasks) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}

	for i, task := range tasks {
		output.FormatTask(out, i+1, task)
	}
	return exitcode.Success
}
