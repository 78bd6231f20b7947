package shell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Runner executes external commands and returns their combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
	RunWithInput(ctx context.Context, input, name string, args ...string) (string, error)
}

// CommandError reports a command that exited non-zero or failed to start.
type CommandError struct {
	Command  string
	Output   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed (exitcode=%d): %s", e.Command, e.ExitCode, e.Output)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// LocalRunner runs commands as child processes on the local host.
type LocalRunner struct {
	logger *zap.Logger
}

var _ Runner = (*LocalRunner)(nil)

func NewLocalRunner(logger *zap.Logger) *LocalRunner {
	return &LocalRunner{logger: logger.Named("shell")}
}

// Run executes a command and returns its trimmed combined output.
func (r *LocalRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	return r.run(ctx, "", name, args)
}

// RunWithInput executes a command with the given string fed to stdin.
func (r *LocalRunner) RunWithInput(ctx context.Context, input, name string, args ...string) (string, error) {
	return r.run(ctx, input, name, args)
}

func (r *LocalRunner) run(ctx context.Context, input, name string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	r.logger.Debug("running command", zap.String("name", name), zap.Strings("args", args))

	// seid writes parts of its output on stderr (keys add prints its JSON
	// there), so both streams are captured together.
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		r.logger.Debug("command failed", zap.String("name", name), zap.Int("exitCode", exitCode))

		return output, &CommandError{
			Command:  strings.Join(append([]string{name}, args...), " "),
			Output:   output,
			ExitCode: exitCode,
			Err:      err,
		}
	}

	r.logger.Debug("command finished", zap.String("name", name), zap.Int("outputLen", len(output)))

	return output, nil
}
