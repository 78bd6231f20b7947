package seid

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	bip39 "github.com/cosmos/go-bip39"
	"go.uber.org/zap"

	"github.com/sei-protocol/seisetup/internal/shell"
)

// Binary drives the node binary through its command-line surface. The
// binary's internals (key derivation, genesis schema, signing) stay opaque;
// only its argv contract and output formats are encoded here.
type Binary struct {
	name   string
	runner shell.Runner
	logger *zap.Logger
}

func NewBinary(name string, runner shell.Runner, logger *zap.Logger) *Binary {
	return &Binary{
		name:   name,
		runner: runner,
		logger: logger.Named("seid"),
	}
}

// Name returns the binary's executable name.
func (b *Binary) Name() string {
	return b.name
}

// doubleEntry renders a secret the way the binary's interactive keyring
// prompts expect it: the value followed by its confirmation.
func doubleEntry(secret string) string {
	return secret + "\n" + secret + "\n"
}

func coinString(coin sdk.Coin) string {
	return fmt.Sprintf("%s%s", coin.Amount.String(), coin.Denom)
}

// Init creates a fresh home directory and default genesis file.
func (b *Binary) Init(ctx context.Context, moniker, chainID string) error {
	b.logger.Info("initializing chain", zap.String("moniker", moniker), zap.String("chainId", chainID))

	out, err := b.runner.Run(ctx, b.name, "init", moniker, "--chain-id", chainID)
	b.logger.Debug("init", zap.String("output", out))

	if err != nil {
		return fmt.Errorf("failed to initialize chain: %w", err)
	}

	return nil
}

// KeyOutput is the parsed form of `keys add --output json`.
type KeyOutput struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Mnemonic string `json:"mnemonic"`
}

// AddKey creates a new key under the given name, supplying the password
// twice for the keyring's confirmation prompt. It returns the parsed output
// plus the raw command output for the operator recovery dump. The address
// and mnemonic are validated before being returned; a binary that prints
// garbage fails here rather than poisoning later steps.
func (b *Binary) AddKey(ctx context.Context, name, password string) (KeyOutput, string, error) {
	b.logger.Info("adding key", zap.String("name", name))

	raw, err := b.runner.RunWithInput(ctx, doubleEntry(password), b.name, "keys", "add", name, "--output", "json")
	if err != nil {
		return KeyOutput{}, "", fmt.Errorf("failed to add key %q: %w", name, err)
	}

	var out KeyOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return KeyOutput{}, "", fmt.Errorf("failed to parse keys add output for %q: %w", name, err)
	}

	if _, _, err := bech32.DecodeAndConvert(out.Address); err != nil {
		return KeyOutput{}, "", fmt.Errorf("keys add returned a malformed address %q: %w", out.Address, err)
	}

	if !bip39.IsMnemonicValid(out.Mnemonic) {
		return KeyOutput{}, "", fmt.Errorf("keys add returned an invalid mnemonic for %q", name)
	}

	return out, raw, nil
}

// DeleteKey removes an existing key under the given name. Absence of the key
// is the common case; callers decide whether the failure matters.
func (b *Binary) DeleteKey(ctx context.Context, name, password string) error {
	out, err := b.runner.RunWithInput(ctx, doubleEntry(password), b.name, "keys", "delete", name, "-y")
	b.logger.Debug("keys delete", zap.String("name", name), zap.String("output", out))

	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", name, err)
	}

	return nil
}

// AddGenesisAccount funds an address in the local genesis file.
func (b *Binary) AddGenesisAccount(ctx context.Context, address string, balance sdk.Coin) error {
	b.logger.Info("adding genesis account", zap.String("address", address), zap.String("balance", coinString(balance)))

	out, err := b.runner.Run(ctx, b.name, "add-genesis-account", address, coinString(balance))
	b.logger.Debug("add-genesis-account", zap.String("output", out))

	if err != nil {
		return fmt.Errorf("failed to add genesis account: %w", err)
	}

	return nil
}

// GenTx generates the validator's genesis transaction with the given
// self-delegation, unlocking the key with the same double-entry password
// pattern used at creation. The raw output is returned for logging.
func (b *Binary) GenTx(ctx context.Context, name string, delegation sdk.Coin, chainID, password string) (string, error) {
	b.logger.Info("generating genesis transaction", zap.String("name", name), zap.String("delegation", coinString(delegation)))

	out, err := b.runner.RunWithInput(ctx, doubleEntry(password), b.name, "gentx", name, coinString(delegation), "--chain-id="+chainID)
	if err != nil {
		return "", fmt.Errorf("failed to generate genesis transaction: %w", err)
	}

	return out, nil
}
