package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/x/escrow"
	"github.com/iov-one/custody/x/sigverify"
	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagPay         = "pay"
	flagDecimals    = "decimals"
	flagInitiator   = "initiator"
	flagBuyerTokens = "buyer-tokens"
	flagRestrict    = "restrict"
	flagRecord      = "record"
)

func planCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Create a release plan",
		Long: `Create a release plan.

The plan lists the payments of a release. It is written to stdout so that it
can be passed to the sign command. When --record is given, the plan releases
that pool record instead of an escrow.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := parseUniqueID(v.GetString(flagUniqueID))
			if err != nil {
				return err
			}
			decimals := v.GetInt32(flagDecimals)
			if decimals < 0 || decimals > 18 {
				return fmt.Errorf("%s must be between 0 and 18", flagDecimals)
			}

			var targets []escrow.PaymentTarget
			for _, pay := range v.GetStringSlice(flagPay) {
				chunks := strings.SplitN(pay, "=", 2)
				if len(chunks) != 2 {
					return fmt.Errorf("invalid payment %q, want <recipient>=<amount>", pay)
				}
				recipient, err := solana.PublicKeyFromBase58(chunks[0])
				if err != nil {
					return fmt.Errorf("invalid recipient %q: %s", chunks[0], err)
				}
				amount, err := parseAmount(chunks[1], decimals)
				if err != nil {
					return err
				}
				targets = append(targets, escrow.PaymentTarget{Recipient: recipient, Amount: amount})
			}
			if _, err := escrow.ValidatePayments(targets, ^uint64(0), false); err != nil {
				return err
			}
			plan := newPlan(uid, decimals, targets)
			if v.GetString(flagRecord) != "" {
				record, err := addressFlag(v, flagRecord)
				if err != nil {
					return err
				}
				plan.Record = record.String()
			}
			return writePlan(cmd.OutOrStdout(), plan)
		},
	}
	cmd.Flags().String(flagUniqueID, "", "Unique identifier of the escrow, up to 20 bytes.")
	cmd.Flags().StringArray(flagPay, nil, "Payment in the <recipient>=<amount> format. Can be repeated.")
	cmd.Flags().Int32(flagDecimals, 0, "Number of decimal places of the amounts.")
	cmd.Flags().String(flagRecord, "", "Pool record address.")
	return cmd
}

func signCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a release plan read from stdin",
		Long: `Sign a release plan read from stdin.

The plan with the signature added is written to stdout. Signing again with
the same key replaces the previous signature.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(v.GetString(flagKey))
			if err != nil {
				return err
			}
			plan, err := readPlan(cmd.InOrStdin())
			if err != nil {
				return err
			}
			message, err := plan.message()
			if err != nil {
				return err
			}
			entry, err := sigverify.Sign(key, message)
			if err != nil {
				return err
			}
			plan.addSignature(entry)

			if log, err := logger(cmd, v); err == nil {
				log.Debug("release plan signed", "signer", entry.PublicKey, "signatures", len(plan.Signatures))
			}
			return writePlan(cmd.OutOrStdout(), plan)
		},
	}
	addKeyFlag(cmd)
	return cmd
}

func viewCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Print a human readable form of a release plan read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := readPlan(cmd.InOrStdin())
			if err != nil {
				return err
			}
			message, err := plan.message()
			if err != nil {
				return err
			}
			entries, err := plan.entries()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "unique id\t%s\n", plan.UniqueID)
			fmt.Fprintf(w, "message\t%s\n", base58.Encode(message))
			var total uint64
			for _, t := range plan.Targets {
				fmt.Fprintf(w, "pay\t%s\t%s\n", t.Recipient, formatAmount(t.Amount, plan.Decimals))
				total += t.Amount
			}
			fmt.Fprintf(w, "total\t\t%s\n", formatAmount(total, plan.Decimals))
			for _, e := range entries {
				status := "valid"
				if !e.Signature.Verify(e.PublicKey, e.Message) {
					status = "INVALID"
				}
				fmt.Fprintf(w, "signed\t%s\t%s\n", e.PublicKey, status)
			}
			return w.Flush()
		},
	}
}

func packetCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packet",
		Short: "Build the instructions releasing an escrow from a signed plan",
		Long: `Build the instructions releasing an escrow from a signed plan read from
stdin.

The signature verification instruction is always written. When the escrow is
given, it is followed by the release instruction that must be placed right
after it in the same transaction. Instructions are written as a JSON list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := readPlan(cmd.InOrStdin())
			if err != nil {
				return err
			}
			entries, err := plan.entries()
			if err != nil {
				return err
			}
			verify, err := sigverify.NewInstruction(entries...)
			if err != nil {
				return err
			}
			instructions := []custody.Instruction{verify}

			if v.GetString(flagEscrow) != "" {
				if plan.Record != "" {
					return fmt.Errorf("plan releases pool record %s", plan.Record)
				}
				release, err := releaseInstruction(v, plan, entries)
				if err != nil {
					return err
				}
				instructions = append(instructions, release)
			}

			out := make([]instructionJSON, 0, len(instructions))
			for _, ix := range instructions {
				out = append(out, toJSON(ix))
			}
			raw, err := json.MarshalIndent(out, "", "\t")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", raw)
			return err
		},
	}
	cmd.Flags().String(flagEscrow, "", "Escrow account address.")
	cmd.Flags().String(flagInitiator, "", "Public key of the party submitting the release.")
	cmd.Flags().String(flagBuyer, "", "Buyer public key.")
	cmd.Flags().String(flagBuyerTokens, "", "Buyer token account. Required to release a token escrow.")
	cmd.Flags().Bool(flagRestrict, false, "Accept only the signatures of the plan.")
	return cmd
}

func releaseInstruction(v *viper.Viper, plan *releasePlan, entries []sigverify.Entry) (custody.Instruction, error) {
	var ix custody.Instruction
	escrowAddr, err := addressFlag(v, flagEscrow)
	if err != nil {
		return ix, err
	}
	initiator, err := addressFlag(v, flagInitiator)
	if err != nil {
		return ix, err
	}
	buyer, err := addressFlag(v, flagBuyer)
	if err != nil {
		return ix, err
	}
	targets, err := plan.targets()
	if err != nil {
		return ix, err
	}
	msg := &escrow.ReleaseMsg{Targets: targets}
	if v.GetBool(flagRestrict) {
		for _, e := range entries {
			msg.Signatures = append(msg.Signatures, e.Signature)
		}
	}
	if err := msg.Validate(); err != nil {
		return ix, err
	}

	if v.GetString(flagBuyerTokens) == "" {
		return escrow.NewReleaseInstruction(initiator, escrowAddr, buyer, msg), nil
	}
	buyerTokens, err := addressFlag(v, flagBuyerTokens)
	if err != nil {
		return ix, err
	}
	return escrow.NewTokenReleaseInstruction(initiator, escrowAddr, buyer, buyerTokens, msg)
}
