package commands_test

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"path/filepath"
	"testing"
	"time"

	"punchlist/internal/commands"
	"punchlist/internal/config"
	"punchlist/internal/exitcode"
	"punchlist/internal/service"
	"punchlist/internal/testutil"
)

// runCommand is a helper to run a command with FakeService.
func runCommand(t *testing.T, cmd commands.Command, svc *testutil.FakeService, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer

	cfg := &config.Config{
		Dir:      t.TempDir(),
		Quiet:    quiet,
		Settings: config.DefaultSettings(),
	}

	ctx := context.Background()
	code = cmd.Run(ctx, cfg, svc, args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// signedInService returns a FakeService with a live session.
func signedInService() *testutil.FakeService {
	svc := testutil.NewFakeService()
	svc.SetIdentity("user-1", "alice@example.com")
	return svc
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	cmd := &commands.VersionCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "punchlist 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	cmd := &commands.HelpCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout == "" {
		t.Error("expected help output, got empty")
	}
	// Check for key elements
	if !bytes.Contains([]byte(stdout), []byte("Usage:")) {
		t.Error("help output should contain 'Usage:'")
	}
}

// Tests for list command
func TestListCommand_WithTasks(t *testing.T) {
	svc := signedInService()
	svc.SeedTask("task-1", "Buy milk", false)
	svc.SeedTask("task-2", "Buy eggs", true)

	cmd := &commands.ListCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}

	// Newest first
	expected := "   1  [x] Buy eggs\n   2  [ ] Buy milk\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_Empty(t *testing.T) {
	svc := signedInService()

	cmd := &commands.ListCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "no tasks found\n" {
		t.Errorf("expected 'no tasks found', got %q", stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	svc := signedInService()

	cmd := &commands.ListCmd{}
	stdout, _, code := runCommand(t, cmd, svc, nil, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no output in quiet mode, got %q", stdout)
	}
}

func TestListCommand_NotLoggedIn(t *testing.T) {
	svc := testutil.NewFakeService()

	cmd := &commands.ListCmd{}
	_, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	expected := "error: not logged in (run: punchlist login)\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestListCommand_BackendError(t *testing.T) {
	svc := signedInService()
	svc.ListTasksErr = &service.DataError{Op: "list tasks", Err: errors.New("boom")}

	cmd := &commands.ListCmd{}
	_, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	expected := "error: backend error: list tasks: boom\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

// Tests for add command
func TestAddCommand(t *testing.T) {
	svc := signedInService()

	cmd := &commands.AddCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"Buy", "milk"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok', got %q", stdout)
	}

	tasks := svc.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	// Multi-word titles are joined with spaces
	if tasks[0].Title != "Buy milk" {
		t.Errorf("expected title 'Buy milk', got %q", tasks[0].Title)
	}
	if tasks[0].Done {
		t.Error("new task should not be done")
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	svc := signedInService()

	cmd := &commands.AddCmd{}
	stdout, _, code := runCommand(t, cmd, svc, []string{"Buy milk"}, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no output in quiet mode, got %q", stdout)
	}
}

func TestAddCommand_MissingTitle(t *testing.T) {
	svc := signedInService()

	cmd := &commands.AddCmd{}
	_, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: title required\n" {
		t.Errorf("expected title required error, got %q", stderr)
	}
	if svc.Calls("CreateTask") != 0 {
		t.Error("CreateTask should not be called without a title")
	}
}

func TestAddCommand_WhitespaceTitle(t *testing.T) {
	svc := signedInService()

	cmd := &commands.AddCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"  ", " "}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: title required\n" {
		t.Errorf("expected title required error, got %q", stderr)
	}
}

// Tests for toggle command
func TestToggleCommand(t *testing.T) {
	svc := signedInService()
	svc.SeedTask("task-1", "Buy milk", false)

	cmd := &commands.ToggleCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"1"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok', got %q", stdout)
	}
	if !svc.Tasks()[0].Done {
		t.Error("task should be done after toggle")
	}
}

func TestToggleCommand_ReopensDoneTask(t *testing.T) {
	svc := signedInService()
	svc.SeedTask("task-1", "Buy milk", true)

	cmd := &commands.ToggleCmd{}
	_, _, code := runCommand(t, cmd, svc, []string{"1"}, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if svc.Tasks()[0].Done {
		t.Error("task should be open after toggling a done task")
	}
}

func TestToggleCommand_MissingRef(t *testing.T) {
	svc := signedInService()

	cmd := &commands.ToggleCmd{}
	_, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task reference required\n" {
		t.Errorf("expected task reference error, got %q", stderr)
	}
}

func TestToggleCommand_InvalidRef(t *testing.T) {
	svc := signedInService()

	cmd := &commands.ToggleCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"abc"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: invalid task reference: abc\n" {
		t.Errorf("expected invalid reference error, got %q", stderr)
	}
}

func TestToggleCommand_OutOfRange(t *testing.T) {
	svc := signedInService()
	svc.SeedTask("task-1", "Buy milk", false)

	cmd := &commands.ToggleCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"5"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task number out of range: 5\n" {
		t.Errorf("expected out of range error, got %q", stderr)
	}
}

// Tests for rm command
func TestRmCommand(t *testing.T) {
	svc := signedInService()
	svc.SeedTask("task-1", "Buy milk", false)
	svc.SeedTask("task-2", "Buy eggs", false)

	cmd := &commands.RmCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"1"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok', got %q", stdout)
	}

	// Task 1 is the newest ("Buy eggs"); "Buy milk" survives.
	tasks := svc.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].Title != "Buy milk" {
		t.Errorf("expected 'Buy milk' to remain, got %q", tasks[0].Title)
	}
}

func TestRmCommand_BackendError(t *testing.T) {
	svc := signedInService()
	svc.SeedTask("task-1", "Buy milk", false)
	svc.DeleteTaskErr = &service.DataError{Op: "delete task", Err: errors.New("boom")}

	cmd := &commands.RmCmd{}
	_, stderr, code := runCommand(t, cmd, svc, []string{"1"}, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	expected := "error: backend error: delete task: boom\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

// Tests for serve command
func TestServeCommand_StopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()

	cmd := &commands.ServeCmd{}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cmd.RegisterFlags(fs)
	args := []string{"--addr", "127.0.0.1:0", "--db", filepath.Join(dir, "punchlist.db")}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	var out, errOut bytes.Buffer
	cfg := &config.Config{Dir: dir, Settings: config.DefaultSettings()}
	code := cmd.Run(ctx, cfg, nil, nil, &out, &errOut)

	// A context-triggered shutdown is a clean exit, not an error.
	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d (stderr: %s)", exitcode.Success, code, errOut.String())
	}
}

// Tests for whoami command
func TestWhoamiCommand_SignedIn(t *testing.T) {
	svc := signedInService()

	cmd := &commands.WhoamiCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "alice@example.com\n" {
		t.Errorf("expected email output, got %q", stdout)
	}
}

func TestWhoamiCommand_SignedOut(t *testing.T) {
	svc := testutil.NewFakeService()

	cmd := &commands.WhoamiCmd{}
	stdout, _, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "not logged in\n" {
		t.Errorf("expected 'not logged in', got %q", stdout)
	}
}
