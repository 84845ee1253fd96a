package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode"

	"punchlist/internal/exitcode"
	"punchlist/internal/service"
)

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ParseTaskRef parses a 1-based task number from args. Tasks are
// referenced by their position in the current list output.
func ParseTaskRef(args []string) (int, error) {
	if len(args) == 0 {
		return 0, ErrTaskRefRequired
	}
	ref := args[0]
	if !isAllDigits(ref) {
		return 0, fmt.Errorf("invalid task reference: %s", ref)
	}
	num, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("invalid task reference: %s", ref)
	}
	return num, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// resolveTask turns a positional reference into the referenced task by
// fetching the caller's current list. Prints the standard errors; the
// code is only meaningful when ok is false.
func resolveTask(ctx context.Context, svc service.Service, args []string, errOut io.Writer) (service.Task, int, bool) {
	num, err := ParseTaskRef(args)
	if err != nil {
		if errors.Is(err, ErrTaskRefRequired) {
			fmt.Fprintln(errOut, "error: task reference required")
		} else {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
		return service.Task{}, exitcode.UserError, false
	}
	if num < 1 {
		fmt.Fprintf(errOut, "error: task number out of range: %d\n", num)
		return service.Task{}, exitcode.UserError, false
	}

	id, code := requireUser(ctx, svc, errOut)
	if id == nil {
		return service.Task{}, code, false
	}

	tasks, err := svc.ListTasks(ctx, id.ID)
	if err != nil {
		return service.Task{}, backendCode(err, errOut), false
	}
	if num > len(tasks) {
		fmt.Fprintf(errOut, "error: task number out of range: %d\n", num)
		return service.Task{}, exitcode.UserError, false
	}
	return tasks[num-1], exitcode.Success, true
}
