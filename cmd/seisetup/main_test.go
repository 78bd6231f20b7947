package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()

	cmd := newRootCmd(zap.NewNop())
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	return cmd.Execute()
}

func TestRejectsUnknownAction(t *testing.T) {
	err := execute(t, "collect-gentxs")
	require.ErrorContains(t, err, "invalid argument")
}

func TestRejectsMissingAction(t *testing.T) {
	err := execute(t)
	require.ErrorContains(t, err, "accepts 1 arg(s)")
}

func TestRejectsExtraActions(t *testing.T) {
	err := execute(t, "prepare-genesis", "setup-oracle")
	require.ErrorContains(t, err, "accepts 1 arg(s)")
}

func TestRejectsUnknownFlag(t *testing.T) {
	err := execute(t, "prepare-genesis", "--denom", "sei")
	require.ErrorContains(t, err, "unknown flag")
}
