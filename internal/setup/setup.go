package setup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	sdkmath "cosmossdk.io/math"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/p2p"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sei-protocol/seisetup/internal/account"
	"github.com/sei-protocol/seisetup/internal/git"
	"github.com/sei-protocol/seisetup/internal/secret"
	"github.com/sei-protocol/seisetup/internal/seid"
	"github.com/sei-protocol/seisetup/internal/shell"
	"github.com/sei-protocol/seisetup/internal/state"
)

const (
	ActionPrepareGenesis = "prepare-genesis"
	ActionSetupOracle    = "setup-oracle"

	// DefaultValidatorAccountName is the key name used for the validator's
	// genesis account.
	DefaultValidatorAccountName = "admin"
)

var (
	// StartingBalance is the genesis account's initial funding.
	// TODO(bweng): decrease the starting balance after testnet.
	StartingBalance = sdk.NewCoin("sei", sdkmath.NewInt(100_000_000))

	// StartingDelegation is the validator's genesis self-delegation.
	StartingDelegation = sdk.NewCoin("sei", sdkmath.NewInt(10_000))
)

// Params are the operator-supplied parameters for a run. Each action checks
// the presence of the parameters it needs.
type Params struct {
	ChainID     string
	Moniker     string
	Version     string
	P2PEndpoint string
}

// Orchestrator sequences the external calls that bootstrap a validator's
// genesis state. Every step blocks until its external call finishes; the
// first failure aborts the remainder with no rollback of earlier steps.
type Orchestrator struct {
	fs      afero.Fs
	runner  shell.Runner
	bin     *seid.Binary
	secrets secret.Source
	layout  state.Layout
	logger  *zap.Logger
	now     func() time.Time
}

func New(fs afero.Fs, runner shell.Runner, bin *seid.Binary, secrets secret.Source, layout state.Layout, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		fs:      fs,
		runner:  runner,
		bin:     bin,
		secrets: secrets,
		layout:  layout,
		logger:  logger.Named("setup"),
		now:     time.Now,
	}
}

// Run dispatches the selected action.
func (o *Orchestrator) Run(ctx context.Context, action string, params Params) error {
	switch action {
	case ActionPrepareGenesis:
		return o.prepareGenesis(ctx, params)
	case ActionSetupOracle:
		// Accepted but not implemented yet.
		o.logger.Info("setup-oracle is not implemented yet")
		return nil
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (o *Orchestrator) prepareGenesis(ctx context.Context, params Params) error {
	if params.ChainID == "" {
		return fmt.Errorf("please specify a chain id")
	}

	if params.Moniker == "" {
		return fmt.Errorf("please specify a moniker")
	}

	root, err := git.EnterRoot(ctx, o.runner)
	if err != nil {
		return err
	}
	o.logger.Info("current working directory", zap.String("dir", root))

	if err := o.layout.ValidateClean(o.fs); err != nil {
		return err
	}
	o.logger.Info("validated clean state")

	if err := o.cleanup(); err != nil {
		return err
	}

	if err := o.install(ctx, params.Version); err != nil {
		return err
	}

	if err := o.initChain(ctx, params); err != nil {
		return err
	}

	cache := account.NewCache()

	acc, err := o.createValidatorKey(ctx, cache)
	if err != nil {
		return err
	}

	if err := o.bin.AddGenesisAccount(ctx, acc.Address, StartingBalance); err != nil {
		return err
	}
	o.logger.Info("added genesis account", zap.String("name", acc.Name), zap.String("address", acc.Address))

	return o.GenerateGenTx(ctx, cache, DefaultValidatorAccountName, params.ChainID)
}

// cleanup backs up any existing state directory to a timestamped sibling and
// removes the original.
func (o *Orchestrator) cleanup() error {
	backup, err := o.layout.Backup(o.fs, o.now())
	if err != nil {
		return err
	}

	if backup != "" {
		o.logger.Info("backed up state", zap.String("backup", backup))
	}

	if err := o.layout.Remove(o.fs); err != nil {
		return err
	}
	o.logger.Info("removed state directory", zap.String("dir", o.layout.RootDir))

	return nil
}

// install rebuilds the binary from the current source tree so subsequent
// steps execute the checked-out code, then verifies the reported version
// when one was requested.
func (o *Orchestrator) install(ctx context.Context, version string) error {
	o.logger.Info("updating binary", zap.String("name", o.bin.Name()))

	if _, err := o.runner.Run(ctx, "make", "install"); err != nil {
		return fmt.Errorf("failed to install binary: %w", err)
	}
	o.logger.Info("make install successful")

	if version == "" {
		return nil
	}

	return o.bin.EnsureVersion(ctx, version)
}

func (o *Orchestrator) initChain(ctx context.Context, params Params) error {
	if err := o.bin.Init(ctx, params.Moniker, params.ChainID); err != nil {
		return err
	}
	o.logger.Info("initialized chain", zap.String("chainId", params.ChainID))

	o.logNodeID()

	return nil
}

// logNodeID reports the freshly generated p2p identity. Purely
// informational; init already succeeded.
func (o *Orchestrator) logNodeID() {
	bz, err := afero.ReadFile(o.fs, filepath.Join(o.layout.ConfigDir, "node_key.json"))
	if err != nil {
		o.logger.Warn("could not read node key", zap.Error(err))
		return
	}

	var nodeKey p2p.NodeKey
	if err := cmtjson.Unmarshal(bz, &nodeKey); err != nil {
		o.logger.Warn("could not parse node key", zap.Error(err))
		return
	}

	o.logger.Info("node p2p id", zap.String("id", string(nodeKey.ID())))
}

// createValidatorKey acquires the operator secret, replaces any pre-existing
// key under the default name, caches the new account for the gentx step, and
// dumps the raw creation output for operator recovery.
func (o *Orchestrator) createValidatorKey(ctx context.Context, cache *account.Cache) (account.Account, error) {
	password, err := o.secrets.Read("Please enter a password for the validator key:")
	if err != nil {
		return account.Account{}, fmt.Errorf("failed to read key password: %w", err)
	}

	// Best-effort: absence of an existing key is the common case.
	if err := o.bin.DeleteKey(ctx, DefaultValidatorAccountName, password); err != nil {
		o.logger.Info("no existing key found", zap.String("name", DefaultValidatorAccountName))
	} else {
		o.logger.Info("deleted existing key", zap.String("name", DefaultValidatorAccountName))
	}

	out, raw, err := o.bin.AddKey(ctx, DefaultValidatorAccountName, password)
	if err != nil {
		return account.Account{}, err
	}

	acc := account.Account{
		Name:     DefaultValidatorAccountName,
		Address:  out.Address,
		Mnemonic: out.Mnemonic,
		Password: password,
	}
	cache.Put(acc)

	path, err := o.layout.WriteKeyInfo(o.fs, acc.Name, raw)
	if err != nil {
		return account.Account{}, err
	}
	o.logger.Info("saved key info", zap.String("path", path))

	return acc, nil
}

// GenerateGenTx produces the genesis transaction for an account created
// earlier in the run. An account name that was never cached is an error.
func (o *Orchestrator) GenerateGenTx(ctx context.Context, cache *account.Cache, name, chainID string) error {
	acc, ok := cache.Get(name)
	if !ok {
		return fmt.Errorf("account %q was not created during this run", name)
	}

	out, err := o.bin.GenTx(ctx, acc.Name, StartingDelegation, chainID, acc.Password)
	if err != nil {
		return err
	}
	o.logger.Info("generated genesis transaction", zap.String("output", out))

	return nil
}
