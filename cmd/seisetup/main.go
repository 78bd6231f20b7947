package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sei-protocol/seisetup/internal/logging"
	"github.com/sei-protocol/seisetup/internal/secret"
	"github.com/sei-protocol/seisetup/internal/seid"
	"github.com/sei-protocol/seisetup/internal/setup"
	"github.com/sei-protocol/seisetup/internal/shell"
	"github.com/sei-protocol/seisetup/internal/state"
)

const (
	binaryName     = "seid"
	passwordEnvVar = "SEISETUP_KEY_PASSWORD"
)

// errActionFailed marks failures that were already logged at the action
// boundary, so main only has to set the exit code.
var errActionFailed = errors.New("action failed")

func main() {
	_ = godotenv.Load()

	logger, err := logging.DefaultLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	defer logging.Close()
	defer logger.Sync()

	if err := newRootCmd(logger).Execute(); err != nil {
		if !errors.Is(err, errActionFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	var params setup.Params

	cmd := &cobra.Command{
		Use:       "seisetup <action>",
		Short:     "One-shot genesis bootstrap for a Sei validator node",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{setup.ActionPrepareGenesis, setup.ActionSetupOracle},

		SilenceUsage:  true,
		SilenceErrors: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			action := args[0]

			logger.Info("starting setup",
				zap.String("chainId", params.ChainID),
				zap.String("version", params.Version),
				zap.String("moniker", params.Moniker))

			layout, err := state.DefaultLayout()
			if err != nil {
				return err
			}

			runner := shell.NewLocalRunner(logger)
			bin := seid.NewBinary(binaryName, runner, logger)

			var secrets secret.Source = secret.TerminalSource{}
			if os.Getenv(passwordEnvVar) != "" {
				secrets = secret.EnvSource{Var: passwordEnvVar}
			}

			orch := setup.New(afero.NewOsFs(), runner, bin, secrets, layout, logger)

			if err := orch.Run(cmd.Context(), action, params); err != nil {
				logger.Error("unable to run action", zap.String("action", action), zap.Error(err))
				return errActionFailed
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&params.ChainID, "chain-id", "", "ID of the blockchain network")
	cmd.Flags().StringVar(&params.Moniker, "moniker", "", "Moniker of the validator node")
	cmd.Flags().StringVar(&params.Version, "version", "", "Expected version of the blockchain software")
	cmd.Flags().StringVar(&params.P2PEndpoint, "p2p-endpoint", "", "P2P endpoint of the validator node (reserved for setup-oracle)")

	return cmd
}
