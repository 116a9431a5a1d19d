// Package runner executes the external command-line tools the setup workflow
// depends on (helm, eksctl, kubectl). Arguments are always passed as a list and
// never go through a shell.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Runner runs a command to completion and returns its trimmed standard output.
// A non-zero exit status is reported as a *CommandError.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// CommandError is the only error kind produced by external commands.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed with exit code %d: %s", e.CommandLine(), e.ExitCode, e.Stderr)
}

func (e *CommandError) CommandLine() string {
	return strings.Join(append([]string{e.Name}, e.Args...), " ")
}

// ExecRunner runs commands as child processes of the current process.
type ExecRunner struct {
	// Env entries are appended to the inherited environment, e.g. "KUBECONFIG=/path"
	Env []string
}

// NewExecRunner returns a runner that hands kubeconfig, when set, to every command
// through KUBECONFIG. eksctl has no kubeconfig flag of its own.
func NewExecRunner(kubeconfig string) *ExecRunner {
	r := &ExecRunner{}
	if kubeconfig != "" {
		r.Env = append(r.Env, "KUBECONFIG="+kubeconfig)
	}
	return r
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	log.Debugf("Running %s %s", name, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return strings.TrimSpace(stdout.String()), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "", &CommandError{
			Name:     name,
			Args:     args,
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	// the binary could not be started at all (not installed, not executable, context cancelled before start)
	return "", fmt.Errorf("unable to run %s: %w", name, err)
}

// IsCommandError reports whether err is, or wraps, a failed external command.
func IsCommandError(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr)
}
