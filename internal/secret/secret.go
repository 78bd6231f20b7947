package secret

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// Source acquires an operator secret. Implementations decide the transport,
// keeping the orchestration logic independent of where the secret comes from.
type Source interface {
	Read(prompt string) (string, error)
}

// TerminalSource prompts on stderr and reads the secret without echo.
type TerminalSource struct{}

func (TerminalSource) Read(prompt string) (string, error) {
	fmt.Fprintln(os.Stderr, prompt)

	bz, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprintln(os.Stderr)

	return string(bz), nil
}

// EnvSource reads the secret from a named environment variable, for
// non-interactive runs.
type EnvSource struct {
	Var string
}

func (s EnvSource) Read(string) (string, error) {
	value := os.Getenv(s.Var)
	if value == "" {
		return "", fmt.Errorf("environment variable %s is not set", s.Var)
	}

	return value, nil
}

// StaticSource returns a fixed value.
type StaticSource string

func (s StaticSource) Read(string) (string, error) {
	return string(s), nil
}
