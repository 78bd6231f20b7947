package setup_test

import (
	"context"
	"errors"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sei-protocol/seisetup/internal/account"
	"github.com/sei-protocol/seisetup/internal/secret"
	"github.com/sei-protocol/seisetup/internal/seid"
	"github.com/sei-protocol/seisetup/internal/setup"
	"github.com/sei-protocol/seisetup/internal/state"
)

const (
	testAddress  = "sei14hj2tavq8fpesdwxxcu44rty3hh90vhujrvcmstl4zr3txmfvw9sh9m79m"
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
)

var addKeyJSON = `{"name":"admin","type":"local","address":"` + testAddress + `","mnemonic":"` + testMnemonic + `"}`

type call struct {
	argv  []string
	input string
}

type fakeRunner struct {
	calls   []call
	respond func(argv []string) (string, error)
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	return r.RunWithInput(ctx, "", name, args...)
}

func (r *fakeRunner) RunWithInput(_ context.Context, input, name string, args ...string) (string, error) {
	argv := append([]string{name}, args...)
	r.calls = append(r.calls, call{argv: argv, input: input})

	if r.respond == nil {
		return "", nil
	}

	return r.respond(argv)
}

func (r *fakeRunner) commands() []string {
	cmds := make([]string, len(r.calls))
	for i, c := range r.calls {
		cmds[i] = strings.Join(c.argv, " ")
	}
	return cmds
}

// happyResponder answers every external call the way a healthy run would.
// The git root is the current working directory so EnterRoot's chdir is a
// no-op for the test process.
func happyResponder(t *testing.T) func(argv []string) (string, error) {
	t.Helper()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	return func(argv []string) (string, error) {
		cmd := strings.Join(argv, " ")
		switch {
		case cmd == "git rev-parse --show-toplevel":
			return cwd, nil
		case strings.HasPrefix(cmd, "seid keys add"):
			return addKeyJSON, nil
		case strings.HasPrefix(cmd, "seid version"):
			return `{"name":"sei","version":"3.0.5","commit":"abc123"}`, nil
		default:
			return "", nil
		}
	}
}

func newOrchestrator(fs afero.Fs, runner *fakeRunner, layout state.Layout) *setup.Orchestrator {
	logger := zap.NewNop()
	bin := seid.NewBinary("seid", runner, logger)

	return setup.New(fs, runner, bin, secret.StaticSource("hunter2"), layout, logger)
}

func TestPrepareGenesisMissingChainID(t *testing.T) {
	runner := &fakeRunner{}
	orch := newOrchestrator(afero.NewMemMapFs(), runner, state.NewLayout("/home/op/.sei"))

	err := orch.Run(context.Background(), setup.ActionPrepareGenesis, setup.Params{Moniker: "node0"})
	require.ErrorContains(t, err, "chain id")
	require.Empty(t, runner.calls)
}

func TestPrepareGenesisMissingMoniker(t *testing.T) {
	runner := &fakeRunner{}
	orch := newOrchestrator(afero.NewMemMapFs(), runner, state.NewLayout("/home/op/.sei"))

	err := orch.Run(context.Background(), setup.ActionPrepareGenesis, setup.Params{ChainID: "test-1"})
	require.ErrorContains(t, err, "moniker")
	require.Empty(t, runner.calls)
}

func TestPrepareGenesisBlockedByMarker(t *testing.T) {
	fs := afero.NewMemMapFs()
	layout := state.NewLayout("/home/op/.sei")
	require.NoError(t, afero.WriteFile(fs, layout.MarkerFile, []byte(`moniker = "old-node"`), 0o644))

	runner := &fakeRunner{respond: happyResponder(t)}
	orch := newOrchestrator(fs, runner, layout)

	err := orch.Run(context.Background(), setup.ActionPrepareGenesis, setup.Params{ChainID: "test-1", Moniker: "node0"})

	var initErr *state.AlreadyInitializedError
	require.ErrorAs(t, err, &initErr)
	require.Equal(t, "old-node", initErr.Moniker)

	// Only the git root lookup ran; nothing mutating was reached.
	require.Equal(t, []string{"git rev-parse --show-toplevel"}, runner.commands())

	exists, err := afero.Exists(fs, layout.MarkerFile)
	require.NoError(t, err)
	require.True(t, exists)

	entries, err := afero.ReadDir(fs, "/home/op")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestPrepareGenesisBacksUpExistingState(t *testing.T) {
	fs := afero.NewMemMapFs()
	layout := state.NewLayout("/home/op/.sei")

	// Leftover state without the marker file: backed up, then wiped.
	require.NoError(t, afero.WriteFile(fs, "/home/op/.sei/data/application.db", []byte("db"), 0o644))

	runner := &fakeRunner{respond: happyResponder(t)}
	orch := newOrchestrator(fs, runner, layout)

	err := orch.Run(context.Background(), setup.ActionPrepareGenesis, setup.Params{ChainID: "test-1", Moniker: "node0"})
	require.NoError(t, err)

	entries, err := afero.ReadDir(fs, "/home/op")
	require.NoError(t, err)

	backupPattern := regexp.MustCompile(`^\.sei_backup_\d{8}_\d{6}$`)
	var backups []string
	for _, entry := range entries {
		if backupPattern.MatchString(entry.Name()) {
			backups = append(backups, entry.Name())
		}
	}
	require.Len(t, backups, 1)

	bz, err := afero.ReadFile(fs, "/home/op/"+backups[0]+"/data/application.db")
	require.NoError(t, err)
	require.Equal(t, "db", string(bz))

	// The original data did not survive the wipe.
	exists, err := afero.Exists(fs, "/home/op/.sei/data/application.db")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestPrepareGenesisHappyPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	layout := state.NewLayout("/home/op/.sei")

	runner := &fakeRunner{respond: happyResponder(t)}
	orch := newOrchestrator(fs, runner, layout)

	err := orch.Run(context.Background(), setup.ActionPrepareGenesis, setup.Params{ChainID: "test-1", Moniker: "node0"})
	require.NoError(t, err)

	require.Equal(t, []string{
		"git rev-parse --show-toplevel",
		"make install",
		"seid init node0 --chain-id test-1",
		"seid keys delete admin -y",
		"seid keys add admin --output json",
		"seid add-genesis-account " + testAddress + " 100000000sei",
		"seid gentx admin 10000sei --chain-id=test-1",
	}, runner.commands())

	// The secret travels as a double entry on stdin, never as an argument.
	require.Equal(t, "hunter2\nhunter2\n", runner.calls[3].input)
	require.Equal(t, "hunter2\nhunter2\n", runner.calls[4].input)
	require.Equal(t, "hunter2\nhunter2\n", runner.calls[6].input)

	bz, err := afero.ReadFile(fs, layout.KeyInfoPath("admin"))
	require.NoError(t, err)
	require.Equal(t, addKeyJSON, string(bz))
}

func TestPrepareGenesisVersionEnforced(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	runner := &fakeRunner{respond: func(argv []string) (string, error) {
		cmd := strings.Join(argv, " ")
		switch {
		case cmd == "git rev-parse --show-toplevel":
			return cwd, nil
		case strings.HasPrefix(cmd, "seid version"):
			return `{"name":"sei","version":"3.0.4","commit":"abc123"}`, nil
		default:
			return "", nil
		}
	}}
	orch := newOrchestrator(afero.NewMemMapFs(), runner, state.NewLayout("/home/op/.sei"))

	err = orch.Run(context.Background(), setup.ActionPrepareGenesis, setup.Params{
		ChainID: "test-1",
		Moniker: "node0",
		Version: "3.0.5",
	})
	require.ErrorContains(t, err, "expected version 3.0.5")

	// The sequence stops at the version check; init never runs.
	require.Equal(t, []string{
		"git rev-parse --show-toplevel",
		"make install",
		"seid version --long --output json",
	}, runner.commands())
}

func TestPrepareGenesisVersionSkippedWhenUnset(t *testing.T) {
	runner := &fakeRunner{respond: happyResponder(t)}
	orch := newOrchestrator(afero.NewMemMapFs(), runner, state.NewLayout("/home/op/.sei"))

	err := orch.Run(context.Background(), setup.ActionPrepareGenesis, setup.Params{ChainID: "test-1", Moniker: "node0"})
	require.NoError(t, err)
	require.NotContains(t, runner.commands(), "seid version --long --output json")
}

func TestPrepareGenesisToleratesDeleteKeyFailure(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	runner := &fakeRunner{respond: func(argv []string) (string, error) {
		cmd := strings.Join(argv, " ")
		switch {
		case cmd == "git rev-parse --show-toplevel":
			return cwd, nil
		case strings.HasPrefix(cmd, "seid keys delete"):
			return "", errors.New("key admin not found")
		case strings.HasPrefix(cmd, "seid keys add"):
			return addKeyJSON, nil
		default:
			return "", nil
		}
	}}
	orch := newOrchestrator(afero.NewMemMapFs(), runner, state.NewLayout("/home/op/.sei"))

	err = orch.Run(context.Background(), setup.ActionPrepareGenesis, setup.Params{ChainID: "test-1", Moniker: "node0"})
	require.NoError(t, err)
	require.Contains(t, runner.commands(), "seid gentx admin 10000sei --chain-id=test-1")
}

func TestPrepareGenesisAbortsOnAddKeyFailure(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	runner := &fakeRunner{respond: func(argv []string) (string, error) {
		cmd := strings.Join(argv, " ")
		switch {
		case cmd == "git rev-parse --show-toplevel":
			return cwd, nil
		case strings.HasPrefix(cmd, "seid keys add"):
			return "", errors.New("keyring unavailable")
		default:
			return "", nil
		}
	}}
	fs := afero.NewMemMapFs()
	layout := state.NewLayout("/home/op/.sei")
	orch := newOrchestrator(fs, runner, layout)

	err = orch.Run(context.Background(), setup.ActionPrepareGenesis, setup.Params{ChainID: "test-1", Moniker: "node0"})
	require.ErrorContains(t, err, `failed to add key "admin"`)

	for _, cmd := range runner.commands() {
		require.NotContains(t, cmd, "add-genesis-account")
		require.NotContains(t, cmd, "gentx")
	}

	exists, err := afero.Exists(fs, layout.KeyInfoPath("admin"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestGenerateGenTxUncachedAccount(t *testing.T) {
	runner := &fakeRunner{}
	orch := newOrchestrator(afero.NewMemMapFs(), runner, state.NewLayout("/home/op/.sei"))

	err := orch.GenerateGenTx(context.Background(), account.NewCache(), "admin", "test-1")
	require.ErrorContains(t, err, `account "admin" was not created during this run`)
	require.Empty(t, runner.calls)
}

func TestSetupOracleIsNoOp(t *testing.T) {
	fs := afero.NewMemMapFs()
	runner := &fakeRunner{}
	orch := newOrchestrator(fs, runner, state.NewLayout("/home/op/.sei"))

	err := orch.Run(context.Background(), setup.ActionSetupOracle, setup.Params{})
	require.NoError(t, err)
	require.Empty(t, runner.calls)

	entries, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUnknownAction(t *testing.T) {
	runner := &fakeRunner{}
	orch := newOrchestrator(afero.NewMemMapFs(), runner, state.NewLayout("/home/op/.sei"))

	err := orch.Run(context.Background(), "collect-gentxs", setup.Params{})
	require.ErrorContains(t, err, `unknown action "collect-gentxs"`)
	require.Empty(t, runner.calls)
}
