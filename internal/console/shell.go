package console

import (
	"context"
	"io"
	"os"
	"os/exec"
)

// Shell is the process-spawning collaborator behind the shell and exec
// commands. It is an interface so tests can stub it out.
type Shell interface {
	// Run executes one host command through the system shell.
	Run(ctx context.Context, command string) error

	// Interactive starts an interactive shell and waits for it.
	Interactive(ctx context.Context) error
}

// systemShell runs commands through /bin/sh, or $SHELL for the
// interactive case.
type systemShell struct {
	in   io.Reader
	out  io.Writer
	errw io.Writer
}

func (s *systemShell) Run(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Stdin = s.in
	cmd.Stdout = s.out
	cmd.Stderr = s.errw
	return cmd.Run()
}

func (s *systemShell) Interactive(ctx context.Context) error {
	name := os.Getenv("SHELL")
	if name == "" {
		name = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, name)
	cmd.Stdin = os.Stdin
	cmd.Stdout = s.out
	cmd.Stderr = s.errw
	return cmd.Run()
}
