package cmdexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/loopkit/loopkit/internal/logger"
	"github.com/sirupsen/logrus"
)

// Result carries everything a caller may want from a finished command.
// ExitCode is valid whenever the process actually ran, including non-zero
// exits.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes an external command and waits for it to finish. A non-zero
// exit is not an error: it is reported through Result.ExitCode so that
// callers probing host state can inspect diagnostic output from failing
// tools. The returned error is non-nil only when the process could not be
// run at all (executable missing, context cancelled).
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// CommandError is returned by RunChecked when a command runs but exits
// non-zero.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s exited with code %d (%s)", e.Name, strings.Join(e.Args, " "), e.ExitCode, formatCmdError([]byte(e.Stderr)))
}

// RunChecked runs the command and requires a zero exit; a non-zero exit is
// surfaced as *CommandError.
func RunChecked(ctx context.Context, r Runner, name string, args ...string) (Result, error) {
	res, err := r.Run(ctx, name, args...)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, &CommandError{Name: name, Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}

type execRunner struct {
	log *logrus.Entry
}

// NewRunner returns a Runner backed by os/exec.
func NewRunner(log *logrus.Entry) Runner {
	return &execRunner{log: log}
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	r.log.WithFields(logrus.Fields{logger.CommandKey: name, logger.CommandArgsKey: args}).Debug("executing command")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if code := cmdExitCode(err); code >= 0 {
			res.ExitCode = code
			return res, nil
		}
		return res, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return res, nil
}

// cmdExitCode digs the process exit code out of an os/exec error. Returns -1
// if the error does not carry one (the process never ran).
func cmdExitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func formatCmdError(output []byte) string {
	s := strings.TrimSpace(string(output))
	if s == "" {
		return "no output"
	}
	return strings.ReplaceAll(s, "\n", " ")
}
