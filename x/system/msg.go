package system

import (
	bin "github.com/gagliardetto/binary"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

// Instruction variants.
const (
	TagCreateAccount uint8 = iota
	TagTransfer
)

// MaxSpace limits the data size of a single account.
const MaxSpace = 10 * 1024 * 1024

// CreateAccountMsg funds a new account, allocates its data and assigns it to
// the owner program.
//
// Accounts:
//  0. [signer, writable] funding account
//  1. [signer, writable] new account
type CreateAccountMsg struct {
	Lamports uint64
	Space    uint64
	Owner    custody.Address
}

var _ custody.Msg = (*CreateAccountMsg)(nil)

func (m *CreateAccountMsg) Validate() error {
	if m.Space > MaxSpace {
		return errors.Field("Space", errors.ErrInput, "exceeds %d bytes", MaxSpace)
	}
	if m.Owner.IsZero() {
		return errors.Field("Owner", errors.ErrEmpty, "required")
	}
	return nil
}

func (m *CreateAccountMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint64(m.Lamports, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint64(m.Space, bin.LE); err != nil {
		return err
	}
	return custody.WriteAddress(enc, m.Owner)
}

func (m *CreateAccountMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if m.Lamports, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if m.Space, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	m.Owner, err = custody.ReadAddress(dec)
	return err
}

// TransferMsg moves lamports out of an account owned by this program.
//
// Accounts:
//  0. [signer, writable] source
//  1. [writable] destination
type TransferMsg struct {
	Lamports uint64
}

var _ custody.Msg = (*TransferMsg)(nil)

func (m *TransferMsg) Validate() error {
	return nil
}

func (m *TransferMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	return enc.WriteUint64(m.Lamports, bin.LE)
}

func (m *TransferMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	m.Lamports, err = dec.ReadUint64(bin.LE)
	return err
}

// NewCreateAccountInstruction returns an instruction creating the account
// to, funded by from.
func NewCreateAccountInstruction(from, to custody.Address, lamports, space uint64, owner custody.Address) custody.Instruction {
	data, err := custody.MarshalInstruction(TagCreateAccount, &CreateAccountMsg{
		Lamports: lamports,
		Space:    space,
		Owner:    owner,
	})
	if err != nil {
		panic(err)
	}
	return custody.NewBuilder(custody.SystemProgramID, data).
		Signer(from, true).
		Signer(to, true).
		Build()
}

// NewTransferInstruction returns an instruction moving lamports.
func NewTransferInstruction(from, to custody.Address, lamports uint64) custody.Instruction {
	data, err := custody.MarshalInstruction(TagTransfer, &TransferMsg{Lamports: lamports})
	if err != nil {
		panic(err)
	}
	return custody.NewBuilder(custody.SystemProgramID, data).
		Signer(from, true).
		Writable(to).
		Build()
}
