package token

import (
	bin "github.com/gagliardetto/binary"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

// Instruction variants.
const (
	TagInitializeMint uint8 = iota
	TagInitializeAccount
	TagMintTo
	TagTransfer
	TagCloseAccount
)

// MaxDecimals limits the precision of a token.
const MaxDecimals = 18

// InitializeMintMsg sets up a mint account previously allocated with
// MintLen bytes and assigned to the token program.
//
// Accounts:
//  0. [writable] mint
type InitializeMintMsg struct {
	Decimals  uint8
	Authority custody.Address
}

func (m *InitializeMintMsg) Validate() error {
	if m.Decimals > MaxDecimals {
		return errors.Field("Decimals", errors.ErrInput, "must not exceed %d", MaxDecimals)
	}
	if m.Authority.IsZero() {
		return errors.Field("Authority", errors.ErrEmpty, "required")
	}
	return nil
}

func (m *InitializeMintMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint8(m.Decimals); err != nil {
		return err
	}
	return custody.WriteAddress(enc, m.Authority)
}

func (m *InitializeMintMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if m.Decimals, err = dec.ReadUint8(); err != nil {
		return err
	}
	m.Authority, err = custody.ReadAddress(dec)
	return err
}

// InitializeAccountMsg sets up a token account previously allocated with
// AccountLen bytes and assigned to the token program.
//
// Accounts:
//  0. [writable] token account
//  1. [] mint
//  2. [] owner
type InitializeAccountMsg struct{}

func (InitializeAccountMsg) Validate() error                          { return nil }
func (InitializeAccountMsg) MarshalWithEncoder(*bin.Encoder) error    { return nil }
func (*InitializeAccountMsg) UnmarshalWithDecoder(*bin.Decoder) error { return nil }

// MintToMsg issues new tokens.
//
// Accounts:
//  0. [writable] mint
//  1. [writable] destination token account
//  2. [signer] mint authority
type MintToMsg struct {
	Amount uint64
}

func (m *MintToMsg) Validate() error {
	if m.Amount == 0 {
		return errors.Field("Amount", errors.ErrInvalidAmount, "must be positive")
	}
	return nil
}

func (m *MintToMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	return enc.WriteUint64(m.Amount, bin.LE)
}

func (m *MintToMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	m.Amount, err = dec.ReadUint64(bin.LE)
	return err
}

// TransferMsg moves tokens between two accounts of the same mint.
//
// Accounts:
//  0. [writable] source token account
//  1. [writable] destination token account
//  2. [signer] source owner
type TransferMsg struct {
	Amount uint64
}

func (m *TransferMsg) Validate() error {
	if m.Amount == 0 {
		return errors.Field("Amount", errors.ErrInvalidAmount, "must be positive")
	}
	return nil
}

func (m *TransferMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	return enc.WriteUint64(m.Amount, bin.LE)
}

func (m *TransferMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	m.Amount, err = dec.ReadUint64(bin.LE)
	return err
}

// CloseAccountMsg removes an empty token account and returns its lamports.
//
// Accounts:
//  0. [writable] token account
//  1. [writable] lamports destination
//  2. [signer] owner
type CloseAccountMsg struct{}

func (CloseAccountMsg) Validate() error                          { return nil }
func (CloseAccountMsg) MarshalWithEncoder(*bin.Encoder) error    { return nil }
func (*CloseAccountMsg) UnmarshalWithDecoder(*bin.Decoder) error { return nil }

func mustInstruction(tag uint8, m custody.Marshaler) []byte {
	data, err := custody.MarshalInstruction(tag, m)
	if err != nil {
		panic(err)
	}
	return data
}

// NewInitializeMintInstruction returns an instruction that initializes the
// mint.
func NewInitializeMintInstruction(mint, authority custody.Address, decimals uint8) custody.Instruction {
	data := mustInstruction(TagInitializeMint, &InitializeMintMsg{Decimals: decimals, Authority: authority})
	return custody.NewBuilder(custody.TokenProgramID, data).
		Writable(mint).
		Build()
}

// NewInitializeAccountInstruction returns an instruction that initializes a
// token account of the mint held by owner.
func NewInitializeAccountInstruction(account, mint, owner custody.Address) custody.Instruction {
	data := mustInstruction(TagInitializeAccount, InitializeAccountMsg{})
	return custody.NewBuilder(custody.TokenProgramID, data).
		Writable(account).
		ReadOnly(mint).
		ReadOnly(owner).
		Build()
}

// NewMintToInstruction returns an instruction issuing amount tokens to the
// destination.
func NewMintToInstruction(mint, dest, authority custody.Address, amount uint64) custody.Instruction {
	data := mustInstruction(TagMintTo, &MintToMsg{Amount: amount})
	return custody.NewBuilder(custody.TokenProgramID, data).
		Writable(mint).
		Writable(dest).
		Signer(authority, false).
		Build()
}

// NewTransferInstruction returns an instruction moving amount tokens.
func NewTransferInstruction(source, dest, owner custody.Address, amount uint64) custody.Instruction {
	data := mustInstruction(TagTransfer, &TransferMsg{Amount: amount})
	return custody.NewBuilder(custody.TokenProgramID, data).
		Writable(source).
		Writable(dest).
		Signer(owner, false).
		Build()
}

// NewCloseAccountInstruction returns an instruction closing the token
// account.
func NewCloseAccountInstruction(account, dest, owner custody.Address) custody.Instruction {
	data := mustInstruction(TagCloseAccount, CloseAccountMsg{})
	return custody.NewBuilder(custody.TokenProgramID, data).
		Writable(account).
		Writable(dest).
		Signer(owner, false).
		Build()
}
