package commands_test

import (
	"errors"
	"testing"

	"punchlist/internal/commands"
	"punchlist/internal/exitcode"
	"punchlist/internal/service"
	"punchlist/internal/testutil"
)

func TestLoginCommand(t *testing.T) {
	svc := testutil.NewFakeService()

	cmd := &commands.LoginCmd{}
	cmd.SetCredentials("alice@example.com", "hunter22")
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "signed in as alice@example.com\n" {
		t.Errorf("expected sign-in confirmation, got %q", stdout)
	}
	if svc.Calls("SignIn") != 1 {
		t.Errorf("expected 1 SignIn call, got %d", svc.Calls("SignIn"))
	}
}

func TestLoginCommand_Quiet(t *testing.T) {
	svc := testutil.NewFakeService()

	cmd := &commands.LoginCmd{}
	cmd.SetCredentials("alice@example.com", "hunter22")
	stdout, _, code := runCommand(t, cmd, svc, nil, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no output in quiet mode, got %q", stdout)
	}
}

func TestLoginCommand_BadCredentials(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignInErr = &service.AuthError{Op: "sign in", Err: errors.New("invalid email or password")}

	cmd := &commands.LoginCmd{}
	cmd.SetCredentials("alice@example.com", "wrong")
	_, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	expected := "error: sign in: invalid email or password\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestSignupCommand_ImmediateSession(t *testing.T) {
	svc := testutil.NewFakeService()

	cmd := &commands.SignupCmd{}
	cmd.SetCredentials("bob@example.com", "hunter22")
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "signed in as bob@example.com\n" {
		t.Errorf("expected sign-in confirmation, got %q", stdout)
	}
}

func TestSignupCommand_ConfirmationPending(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.ConfirmationRequired = true

	cmd := &commands.SignupCmd{}
	cmd.SetCredentials("bob@example.com", "hunter22")
	stdout, _, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "account created, check your email to confirm\n" {
		t.Errorf("expected confirmation notice, got %q", stdout)
	}
}

func TestSignupCommand_DuplicateEmail(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.SignUpErr = &service.DataError{Op: "sign up", Err: errors.New("email already registered")}

	cmd := &commands.SignupCmd{}
	cmd.SetCredentials("bob@example.com", "hunter22")
	_, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	expected := "error: backend error: sign up: email already registered\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestLogoutCommand(t *testing.T) {
	svc := signedInService()

	cmd := &commands.LogoutCmd{}
	stdout, stderr, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok', got %q", stdout)
	}
	if svc.Calls("SignOut") != 1 {
		t.Errorf("expected 1 SignOut call, got %d", svc.Calls("SignOut"))
	}
}

func TestLogoutCommand_NotLoggedIn(t *testing.T) {
	svc := testutil.NewFakeService()

	cmd := &commands.LogoutCmd{}
	stdout, _, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "not logged in\n" {
		t.Errorf("expected 'not logged in', got %q", stdout)
	}
	if svc.Calls("SignOut") != 0 {
		t.Error("SignOut should not be called without a session")
	}
}

// A failed remote revocation still ends the local session.
func TestLogoutCommand_RemoteFailure(t *testing.T) {
	svc := signedInService()
	svc.SignOutErr = &service.AuthError{Op: "sign out", Err: errors.New("server unreachable")}

	cmd := &commands.LogoutCmd{}
	stdout, _, code := runCommand(t, cmd, svc, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "ok\n" {
		t.Errorf("expected 'ok', got %q", stdout)
	}
}
