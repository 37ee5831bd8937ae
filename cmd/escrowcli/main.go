package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tendermint/tendermint/libs/log"
)

// envPrefix is used to look up flag values in the environment. The key flag
// for example can be set with ESCROWCLI_KEY.
const envPrefix = "ESCROWCLI"

const flagLogLevel = "log-level"

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:   "escrowcli",
		Short: "Offline client for the escrow programs",
		Long: `escrowcli prepares escrow releases without talking to the ledger.

Commands read their input from stdin and write to stdout so that they can be
combined with a unix pipe. A release approved by two parties is prepared with:

  $ escrowcli plan --unique-id order-1 --pay <recipient>=1.5 --decimals 9 \
      | escrowcli sign --key buyer.key \
      | escrowcli sign --key seller.key \
      | escrowcli packet --escrow <escrow> --initiator <seller> --buyer <buyer>

Every flag can also be set with an environment variable prefixed with
ESCROWCLI_, for example ESCROWCLI_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, v)
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().String(flagLogLevel, "info", "Log level of messages written to stderr: debug, info, error or none.")

	root.AddCommand(
		keygenCmd(v),
		keyaddrCmd(v),
		addressCmd(v),
		planCmd(v),
		signCmd(v),
		viewCmd(v),
		packetCmd(v),
		versionCmd(),
	)
	return root
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	_, err := logger(cmd, v)
	return err
}

// logger returns a logger writing to the error output of the command,
// filtered by the configured level.
func logger(cmd *cobra.Command, v *viper.Viper) (log.Logger, error) {
	opt, err := log.AllowLevel(v.GetString(flagLogLevel))
	if err != nil {
		return nil, err
	}
	return log.NewFilter(log.NewTMLogger(log.NewSyncWriter(cmd.ErrOrStderr())), opt), nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), gitHash)
			return err
		},
	}
}

// gitHash is set during the compilation time.
var gitHash string = "dev"
