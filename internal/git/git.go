package git

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sei-protocol/seisetup/internal/shell"
)

// RootDir returns the root of the enclosing git work tree.
func RootDir(ctx context.Context, runner shell.Runner) (string, error) {
	out, err := runner.Run(ctx, "git", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("failed to resolve git root: %w", err)
	}

	return strings.TrimSpace(out), nil
}

// EnterRoot changes the working directory to the git root and returns it.
func EnterRoot(ctx context.Context, runner shell.Runner) (string, error) {
	root, err := RootDir(ctx, runner)
	if err != nil {
		return "", err
	}

	if err := os.Chdir(root); err != nil {
		return "", fmt.Errorf("failed to enter %s: %w", root, err)
	}

	return root, nil
}
