package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const flagKey = "key"

func addKeyFlag(cmd *cobra.Command) {
	home, _ := os.UserHomeDir()
	cmd.Flags().String(flagKey, filepath.Join(home, ".escrowcli.key"),
		"Path to the private key file. You can use ESCROWCLI_KEY environment variable to set it.")
}

func keygenCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new private key",
		Long: `Generate a new private key.

When successful a new file containing the base58 encoded private key is
created and the public key is printed. This command fails if the private key
file already exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString(flagKey)
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				// Never overwrite a key. It must be removed manually.
				return fmt.Errorf("private key file %q already exists, delete this file and try again", path)
			}

			key, err := solana.NewRandomPrivateKey()
			if err != nil {
				return fmt.Errorf("cannot generate ed25519 key: %s", err)
			}
			fd, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
			if err != nil {
				return fmt.Errorf("cannot create private key file: %s", err)
			}
			defer fd.Close()

			if _, err := fmt.Fprintln(fd, key.String()); err != nil {
				return fmt.Errorf("cannot write private key: %s", err)
			}
			if err := fd.Close(); err != nil {
				return fmt.Errorf("cannot close private key file: %s", err)
			}

			if log, err := logger(cmd, v); err == nil {
				log.Info("private key created", "path", path)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key.PublicKey())
			return err
		},
	}
	addKeyFlag(cmd)
	return cmd
}

func keyaddrCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyaddr",
		Short: "Print the public key of your private key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(v.GetString(flagKey))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key.PublicKey())
			return err
		},
	}
	addKeyFlag(cmd)
	return cmd
}

func loadKey(path string) (solana.PrivateKey, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read private key file: %s", err)
	}
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("invalid private key file %q: %s", path, err)
	}
	return key, nil
}
