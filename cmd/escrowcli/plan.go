package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/x/escrow"
	"github.com/iov-one/custody/x/pool"
	"github.com/iov-one/custody/x/sigverify"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// releasePlan is the document passed between the commands of a release
// pipeline. Amounts are in base units.
type releasePlan struct {
	UniqueID   string          `json:"unique_id"`
	Record     string          `json:"record,omitempty"`
	Decimals   int32           `json:"decimals"`
	Targets    []planTarget    `json:"targets"`
	Signatures []planSignature `json:"signatures,omitempty"`
}

type planTarget struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

type planSignature struct {
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

func newPlan(uid [escrow.UniqueIDLen]byte, decimals int32, targets []escrow.PaymentTarget) *releasePlan {
	p := &releasePlan{
		UniqueID: base58.Encode(uid[:]),
		Decimals: decimals,
	}
	for _, t := range targets {
		p.Targets = append(p.Targets, planTarget{Recipient: t.Recipient.String(), Amount: t.Amount})
	}
	return p
}

func readPlan(r io.Reader) (*releasePlan, error) {
	var p releasePlan
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("cannot decode release plan: %s", err)
	}
	return &p, nil
}

func writePlan(w io.Writer, p *releasePlan) error {
	raw, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", raw)
	return err
}

func (p *releasePlan) uniqueID() ([escrow.UniqueIDLen]byte, error) {
	var uid [escrow.UniqueIDLen]byte
	raw, err := base58.Decode(p.UniqueID)
	if err != nil {
		return uid, fmt.Errorf("invalid unique id: %s", err)
	}
	if len(raw) != escrow.UniqueIDLen {
		return uid, fmt.Errorf("unique id of %d bytes", len(raw))
	}
	copy(uid[:], raw)
	return uid, nil
}

func (p *releasePlan) targets() ([]escrow.PaymentTarget, error) {
	targets := make([]escrow.PaymentTarget, 0, len(p.Targets))
	for i, t := range p.Targets {
		recipient, err := solana.PublicKeyFromBase58(t.Recipient)
		if err != nil {
			return nil, fmt.Errorf("target %d: invalid recipient: %s", i, err)
		}
		targets = append(targets, escrow.PaymentTarget{Recipient: recipient, Amount: t.Amount})
	}
	return targets, nil
}

// message returns the bytes the parties sign to approve the release.
func (p *releasePlan) message() ([]byte, error) {
	uid, err := p.uniqueID()
	if err != nil {
		return nil, err
	}
	targets, err := p.targets()
	if err != nil {
		return nil, err
	}
	if p.Record == "" {
		return escrow.ReleaseMessage(uid, targets)
	}
	record, err := solana.PublicKeyFromBase58(p.Record)
	if err != nil {
		return nil, fmt.Errorf("invalid record: %s", err)
	}
	return pool.ReleaseMessage(record, uid, targets)
}

// entries returns the signatures collected so far as signature packet
// entries.
func (p *releasePlan) entries() ([]sigverify.Entry, error) {
	message, err := p.message()
	if err != nil {
		return nil, err
	}
	entries := make([]sigverify.Entry, 0, len(p.Signatures))
	for i, s := range p.Signatures {
		pub, err := solana.PublicKeyFromBase58(s.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("signature %d: invalid public key: %s", i, err)
		}
		sig, err := solana.SignatureFromBase58(s.Signature)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %s", i, err)
		}
		entries = append(entries, sigverify.Entry{PublicKey: pub, Signature: sig, Message: message})
	}
	return entries, nil
}

// addSignature stores the entry, replacing an earlier signature of the same
// key.
func (p *releasePlan) addSignature(e sigverify.Entry) {
	s := planSignature{PublicKey: e.PublicKey.String(), Signature: e.Signature.String()}
	for i := range p.Signatures {
		if p.Signatures[i].PublicKey == s.PublicKey {
			p.Signatures[i] = s
			return
		}
	}
	p.Signatures = append(p.Signatures, s)
}

// parseAmount converts a decimal amount into base units.
func parseAmount(raw string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %s", raw, err)
	}
	d = d.Shift(decimals)
	if !d.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", raw, decimals)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount %q must be positive", raw)
	}
	n := d.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("amount %q is too big", raw)
	}
	return n.Uint64(), nil
}

// formatAmount renders base units with given number of decimal places.
func formatAmount(amount uint64, decimals int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals).StringFixed(decimals)
}

type instructionJSON struct {
	ProgramID string        `json:"program_id"`
	Accounts  []accountJSON `json:"accounts"`
	Data      string        `json:"data"`
}

type accountJSON struct {
	Address  string `json:"address"`
	Signer   bool   `json:"signer,omitempty"`
	Writable bool   `json:"writable,omitempty"`
}

func toJSON(ix custody.Instruction) instructionJSON {
	out := instructionJSON{
		ProgramID: ix.ProgramID.String(),
		Accounts:  []accountJSON{},
		Data:      base58.Encode(ix.Data),
	}
	for _, m := range ix.Accounts {
		out.Accounts = append(out.Accounts, accountJSON{
			Address:  m.Address.String(),
			Signer:   m.IsSigner,
			Writable: m.IsWritable,
		})
	}
	return out
}
