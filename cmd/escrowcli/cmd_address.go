package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/x/escrow"
	"github.com/iov-one/custody/x/pool"
	"github.com/iov-one/custody/x/registry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagBuyer     = "buyer"
	flagSeller    = "seller"
	flagModerator = "moderator"
	flagUniqueID  = "unique-id"
	flagMint      = "mint"
	flagEscrow    = "escrow"
)

func addressCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print program derived addresses",
		Long: `Print program derived addresses.

Each subcommand prints the address and the bump seed separated by a tab.`,
	}

	escrowCmd := &cobra.Command{
		Use:   "escrow",
		Short: "Address of the escrow account defined by its terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			buyer, seller, hasModerator, uid, err := termsFlags(v)
			if err != nil {
				return err
			}
			return printAddress(cmd)(escrow.FindAddress(buyer, seller, hasModerator, uid))
		},
	}
	addTermsFlags(escrowCmd)

	vaultCmd := &cobra.Command{
		Use:   "escrow-vault",
		Short: "Address of the token account of a token escrow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := addressFlag(v, flagEscrow)
			if err != nil {
				return err
			}
			return printAddress(cmd)(escrow.FindTokenAccountAddress(e))
		},
	}
	vaultCmd.Flags().String(flagEscrow, "", "Escrow account address.")

	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Address of the pool of an asset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asset := escrow.NativeAsset()
			if v.GetString(flagMint) != "" {
				mint, err := addressFlag(v, flagMint)
				if err != nil {
					return err
				}
				asset = escrow.TokenAsset(mint)
			}
			return printAddress(cmd)(pool.FindPoolAddress(asset))
		},
	}
	poolCmd.Flags().String(flagMint, "", "Token mint of the pool. Native pool if not set.")

	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Address of the pool record defined by its terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			buyer, seller, hasModerator, uid, err := termsFlags(v)
			if err != nil {
				return err
			}
			return printAddress(cmd)(pool.FindRecordAddress(buyer, seller, hasModerator, uid))
		},
	}
	addTermsFlags(recordCmd)

	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Address of the contract registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printAddress(cmd)(registry.FindAddress())
		},
	}

	cmd.AddCommand(escrowCmd, vaultCmd, poolCmd, recordCmd, registryCmd)
	return cmd
}

func addTermsFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagBuyer, "", "Buyer public key.")
	cmd.Flags().String(flagSeller, "", "Seller public key.")
	cmd.Flags().Bool(flagModerator, false, "Set if the escrow has a moderator.")
	cmd.Flags().String(flagUniqueID, "", "Unique identifier of the escrow, up to 20 bytes.")
}

func termsFlags(v *viper.Viper) (buyer, seller custody.Address, hasModerator bool, uid [escrow.UniqueIDLen]byte, err error) {
	if buyer, err = addressFlag(v, flagBuyer); err != nil {
		return
	}
	if seller, err = addressFlag(v, flagSeller); err != nil {
		return
	}
	if uid, err = parseUniqueID(v.GetString(flagUniqueID)); err != nil {
		return
	}
	hasModerator = v.GetBool(flagModerator)
	return
}

func addressFlag(v *viper.Viper, name string) (custody.Address, error) {
	raw := v.GetString(name)
	if raw == "" {
		return custody.Address{}, fmt.Errorf("%s is required", name)
	}
	a, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return custody.Address{}, fmt.Errorf("invalid %s %q: %s", name, raw, err)
	}
	return a, nil
}

// parseUniqueID returns the identifier padded with zeros.
func parseUniqueID(raw string) ([escrow.UniqueIDLen]byte, error) {
	var uid [escrow.UniqueIDLen]byte
	if raw == "" {
		return uid, fmt.Errorf("%s is required", flagUniqueID)
	}
	if len(raw) > escrow.UniqueIDLen {
		return uid, fmt.Errorf("%s longer than %d bytes", flagUniqueID, escrow.UniqueIDLen)
	}
	copy(uid[:], raw)
	return uid, nil
}

func printAddress(cmd *cobra.Command) func(custody.Address, uint8, error) error {
	return func(a custody.Address, bump uint8, err error) error {
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", a, bump)
		return err
	}
}
