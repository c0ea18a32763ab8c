package services

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
)

// ErrCommandTimeout is returned when a privileged command outlives its deadline
var ErrCommandTimeout = errors.New("command timeout")

// RunResult is the captured outcome of one external command
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes host commands. stdin may be empty.
type Runner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) (RunResult, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, stdin string, name string, args ...string) (RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	err := cmd.Run()
	res := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctx.Err() == context.DeadlineExceeded {
		return res, ErrCommandTimeout
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

// runChecked runs a command and turns a non-zero exit into an error carrying stderr
func runChecked(ctx context.Context, r Runner, stdin string, name string, args ...string) (RunResult, error) {
	res, err := r.Run(ctx, stdin, name, args...)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = name + " exited with status " + strconv.Itoa(res.ExitCode)
		}
		return res, &CommandError{Name: name, ExitCode: res.ExitCode, Message: msg}
	}
	return res, nil
}

// CommandError is a privileged command that ran but failed
type CommandError struct {
	Name     string
	ExitCode int
	Message  string
}

func (e *CommandError) Error() string {
	return e.Message
}
