package cancellation

import (
	"os/exec"
	"testing"
	"time"
)

func TestFlagLifecycle(t *testing.T) {
	token := New()
	if token.Cancelled() {
		t.Fatal("fresh token should not be cancelled")
	}
	token.Cancel()
	if !token.Cancelled() {
		t.Fatal("token should be cancelled after Cancel")
	}
	// Cancel is idempotent and never clears.
	token.Cancel()
	if !token.Cancelled() {
		t.Fatal("cancellation must be terminal")
	}
	select {
	case <-token.Done():
	default:
		t.Fatal("done channel should be closed after Cancel")
	}
}

func TestNilTokenIsSafe(t *testing.T) {
	var token *Token
	if token.Cancelled() {
		t.Fatal("nil token reports cancelled")
	}
	token.Cancel()
	token.Detach()
	if !token.Attach(nil) {
		t.Fatal("nil token attach should succeed")
	}
}

func TestCancelTerminatesAttachedProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}
	token := New()
	if !token.Attach(cmd.Process) {
		t.Fatal("attach before cancel should succeed")
	}
	token.Cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("process not terminated by Cancel")
	}
}

func TestAttachAfterCancelKillsImmediately(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}
	token := New()
	token.Cancel()
	if token.Attach(cmd.Process) {
		t.Error("attach after cancel should report false")
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("process not terminated by late attach")
	}
}
