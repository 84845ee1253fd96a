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
	Register(&ToggleCmd{})
}

// ToggleCmd implements the toggle command. "done" is kept as an alias
// for muscle memory; both flip the task's done state.
type ToggleCmd struct{}

func (c *ToggleCmd) Name() string      { return "toggle" }
func (c *ToggleCmd) Aliases() []string { return []string{"done"} }
func (c *ToggleCmd) Synopsis() string  { return "Toggle a task's done state" }
func (c *ToggleCmd) Usage() string     { return "punchlist toggle [common flags] <n>" }
func (c *ToggleCmd) NeedsAuth() bool   { return true }

func (c *ToggleCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ToggleCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	task, code, ok := resolveTask(ctx, svc, args, errOut)
	if !ok {
		return code
	}

	done := !task.Done
	if err := svc.UpdateTask(ctx, task.ID, service.TaskUpdate{Done: &done}); err != nil {
		return backendCode(err, errOut)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
