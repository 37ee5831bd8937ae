package pool

import (
	bin "github.com/gagliardetto/binary"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/x/escrow"
)

// Instruction variants.
const (
	TagInitializePool uint8 = iota
	TagInitializeRecord
	TagReleaseRecord
	TagSetPoolActive
)

// InitializePoolMsg creates the pool of an asset.
//
// Accounts:
//  0. [signer, writable] authority, pays for the account
//  1. [writable] pool account
//  2. [] mint, token pools only
//  3. [writable] pool token account, token pools only
type InitializePoolMsg struct {
	Asset escrow.Asset
}

var _ custody.Msg = (*InitializePoolMsg)(nil)

func (m *InitializePoolMsg) Validate() error {
	return errors.Wrap(m.Asset.Validate(), "asset")
}

func (m *InitializePoolMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	return m.Asset.MarshalWithEncoder(enc)
}

func (m *InitializePoolMsg) UnmarshalWithDecoder(dec *bin.Decoder) error {
	return m.Asset.UnmarshalWithDecoder(dec)
}

// InitializeRecordMsg creates a record and moves its amount into the pool.
//
// Accounts:
//  0. [signer, writable] buyer
//  1. [] seller
//  2. [writable] pool account
//  3. [writable] record account
//  4. [writable] buyer token account, token pools only
//  5. [writable] pool token account, token pools only
type InitializeRecordMsg struct {
	Moderator          *custody.Address
	UniqueID           [escrow.UniqueIDLen]byte
	RequiredSignatures uint8
	UnlockHours        uint64
	Amount             uint64
}

var _ custody.Msg = (*InitializeRecordMsg)(nil)

func (m *InitializeRecordMsg) Validate() error {
	if m.Moderator != nil && m.Moderator.IsZero() {
		return errors.Field("Moderator", errors.ErrEmpty, "must not be zero when set")
	}
	if m.RequiredSignatures == 0 {
		return errors.Field("RequiredSignatures", escrow.ErrInvalidRequiredSignatures, "required")
	}
	if m.UnlockHours > escrow.MaxUnlockHours {
		return errors.Field("UnlockHours", errors.ErrInput, "too far in the future")
	}
	if m.Amount == 0 {
		return errors.Field("Amount", escrow.ErrZeroAmount, "must be positive")
	}
	return nil
}

func (m *InitializeRecordMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := custody.WriteOptionalAddress(enc, m.Moderator); err != nil {
		return err
	}
	if err := enc.WriteBytes(m.UniqueID[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint8(m.RequiredSignatures); err != nil {
		return err
	}
	if err := enc.WriteUint64(m.UnlockHours, bin.LE); err != nil {
		return err
	}
	return enc.WriteUint64(m.Amount, bin.LE)
}

func (m *InitializeRecordMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if m.Moderator, err = custody.ReadOptionalAddress(dec); err != nil {
		return err
	}
	uid, err := dec.ReadNBytes(escrow.UniqueIDLen)
	if err != nil {
		return err
	}
	copy(m.UniqueID[:], uid)
	if m.RequiredSignatures, err = dec.ReadUint8(); err != nil {
		return err
	}
	if m.UnlockHours, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	m.Amount, err = dec.ReadUint64(bin.LE)
	return err
}

// SetPoolActiveMsg pauses or resumes a pool.
//
// Accounts:
//  0. [signer] authority
//  1. [writable] pool account
type SetPoolActiveMsg struct {
	Active bool
}

var _ custody.Msg = (*SetPoolActiveMsg)(nil)

func (SetPoolActiveMsg) Validate() error { return nil }

func (m *SetPoolActiveMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	return enc.WriteBool(m.Active)
}

func (m *SetPoolActiveMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	m.Active, err = dec.ReadBool()
	return err
}

func mustInstruction(tag uint8, m custody.Marshaler) []byte {
	data, err := custody.MarshalInstruction(tag, m)
	if err != nil {
		panic(err)
	}
	return data
}

// NewInitializePoolInstruction returns an instruction creating the pool of
// the asset. The address of the pool is returned as well.
func NewInitializePoolInstruction(authority custody.Address, asset escrow.Asset) (custody.Instruction, custody.Address, error) {
	pool, _, err := FindPoolAddress(asset)
	if err != nil {
		return custody.Instruction{}, custody.Address{}, err
	}
	b := custody.NewBuilder(ProgramID, mustInstruction(TagInitializePool, &InitializePoolMsg{Asset: asset})).
		Signer(authority, true).
		Writable(pool)
	if asset.IsToken() {
		vault, _, err := FindPoolTokenAddress(pool)
		if err != nil {
			return custody.Instruction{}, custody.Address{}, err
		}
		b.ReadOnly(asset.Mint).Writable(vault)
	}
	return b.Build(), pool, nil
}

// NewInitializeRecordInstruction returns an instruction creating a record in
// the native pool. The address of the record is returned as well.
func NewInitializeRecordInstruction(buyer, seller custody.Address, msg *InitializeRecordMsg) (custody.Instruction, custody.Address, error) {
	return newInitializeRecord(buyer, seller, escrow.NativeAsset(), custody.Address{}, msg)
}

// NewTokenRecordInstruction returns an instruction creating a record in the
// pool of the mint, paid from the buyer token account.
func NewTokenRecordInstruction(buyer, seller, mint, buyerTokens custody.Address, msg *InitializeRecordMsg) (custody.Instruction, custody.Address, error) {
	return newInitializeRecord(buyer, seller, escrow.TokenAsset(mint), buyerTokens, msg)
}

func newInitializeRecord(buyer, seller custody.Address, asset escrow.Asset, buyerTokens custody.Address, msg *InitializeRecordMsg) (custody.Instruction, custody.Address, error) {
	pool, _, err := FindPoolAddress(asset)
	if err != nil {
		return custody.Instruction{}, custody.Address{}, err
	}
	record, _, err := FindRecordAddress(buyer, seller, msg.Moderator != nil, msg.UniqueID)
	if err != nil {
		return custody.Instruction{}, custody.Address{}, err
	}
	b := custody.NewBuilder(ProgramID, mustInstruction(TagInitializeRecord, msg)).
		Signer(buyer, true).
		ReadOnly(seller).
		Writable(pool).
		Writable(record)
	if asset.IsToken() {
		vault, _, err := FindPoolTokenAddress(pool)
		if err != nil {
			return custody.Instruction{}, custody.Address{}, err
		}
		b.Writable(buyerTokens).Writable(vault)
	}
	return b.Build(), record, nil
}

// NewReleaseRecordInstruction returns an instruction releasing a record of
// the native pool.
//
// Accounts:
//  0. [signer] initiator, one of the parties
//  1. [writable] pool account
//  2. [writable] record account
//  3. [writable] buyer, receives any remainder
//  4. [writable] pool token account, token pools only
//  5. [writable] buyer token account, token pools only
//     then one writable account per target, in order.
func NewReleaseRecordInstruction(initiator, record, buyer custody.Address, msg *escrow.ReleaseMsg) (custody.Instruction, error) {
	return newReleaseRecord(initiator, record, buyer, escrow.NativeAsset(), custody.Address{}, msg)
}

// NewTokenReleaseRecordInstruction returns an instruction releasing a record
// of the pool of the mint. Target recipients are token accounts.
func NewTokenReleaseRecordInstruction(initiator, record, buyer, mint, buyerTokens custody.Address, msg *escrow.ReleaseMsg) (custody.Instruction, error) {
	return newReleaseRecord(initiator, record, buyer, escrow.TokenAsset(mint), buyerTokens, msg)
}

func newReleaseRecord(initiator, record, buyer custody.Address, asset escrow.Asset, buyerTokens custody.Address, msg *escrow.ReleaseMsg) (custody.Instruction, error) {
	pool, _, err := FindPoolAddress(asset)
	if err != nil {
		return custody.Instruction{}, err
	}
	b := custody.NewBuilder(ProgramID, mustInstruction(TagReleaseRecord, msg)).
		Signer(initiator, false).
		Writable(pool).
		Writable(record).
		Writable(buyer)
	if asset.IsToken() {
		vault, _, err := FindPoolTokenAddress(pool)
		if err != nil {
			return custody.Instruction{}, err
		}
		b.Writable(vault).Writable(buyerTokens)
	}
	for _, t := range msg.Targets {
		b.Writable(t.Recipient)
	}
	return b.Build(), nil
}

// NewSetPoolActiveInstruction returns an instruction pausing or resuming the
// pool.
func NewSetPoolActiveInstruction(authority, pool custody.Address, active bool) custody.Instruction {
	return custody.NewBuilder(ProgramID, mustInstruction(TagSetPoolActive, &SetPoolActiveMsg{Active: active})).
		Signer(authority, false).
		Writable(pool).
		Build()
}
