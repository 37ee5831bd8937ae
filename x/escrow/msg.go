package escrow

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

// Instruction variants.
const (
	TagInitialize uint8 = iota
	TagDeposit
	TagRelease
)

// MaxReleaseSignatures limits how many signatures a release may reference.
const MaxReleaseSignatures = 8

// MaxUnlockHours keeps the unlock time representable.
const MaxUnlockHours = 1 << 40

// InitializeMsg creates an escrow.
//
// Accounts:
//  0. [signer, writable] buyer, pays for the account
//  1. [writable] escrow account, derived from the parameters
//  2. [] seller
//  3. [] mint, token escrows only
//  4. [writable] escrow token account, token escrows only
type InitializeMsg struct {
	Moderator          *custody.Address
	UniqueID           [UniqueIDLen]byte
	RequiredSignatures uint8
	// UnlockHours after which the seller alone may release. Zero disables
	// the timelock.
	UnlockHours uint64
	Asset       Asset
}

var _ custody.Msg = (*InitializeMsg)(nil)

func (m *InitializeMsg) Validate() error {
	if m.Moderator != nil && m.Moderator.IsZero() {
		return errors.Field("Moderator", errors.ErrEmpty, "must not be zero when set")
	}
	if m.RequiredSignatures > 3 {
		return errors.Field("RequiredSignatures", ErrInvalidRequiredSignatures, "at most 3 parties")
	}
	if m.UnlockHours > MaxUnlockHours {
		return errors.Field("UnlockHours", errors.ErrInput, "too far in the future")
	}
	if err := m.Asset.Validate(); err != nil {
		return errors.Wrap(err, "asset")
	}
	return nil
}

func (m *InitializeMsg) MarshalWithEncoder(enc *bin.Encoder) error {
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
	return m.Asset.MarshalWithEncoder(enc)
}

func (m *InitializeMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if m.Moderator, err = custody.ReadOptionalAddress(dec); err != nil {
		return err
	}
	uid, err := dec.ReadNBytes(UniqueIDLen)
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
	return m.Asset.UnmarshalWithDecoder(dec)
}

// DepositMsg adds funds to an active escrow.
//
// Accounts:
//  0. [signer, writable] depositor, one of the parties
//  1. [writable] escrow account
//  2. [writable] depositor token account, token escrows only
//  3. [writable] escrow token account, token escrows only
type DepositMsg struct {
	Amount uint64
}

var _ custody.Msg = (*DepositMsg)(nil)

func (m *DepositMsg) Validate() error {
	if m.Amount == 0 {
		return errors.Field("Amount", ErrZeroAmount, "must be positive")
	}
	return nil
}

func (m *DepositMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	return enc.WriteUint64(m.Amount, bin.LE)
}

func (m *DepositMsg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	m.Amount, err = dec.ReadUint64(bin.LE)
	return err
}

// ReleaseMsg pays out the escrow. It must be preceded by a signature
// verification instruction covering the release message of the targets.
//
// Accounts:
//  0. [signer] initiator, one of the parties
//  1. [writable] escrow account
//  2. [writable] buyer, receives the rent and any remainder
//  3. [writable] escrow token account, token escrows only
//  4. [writable] buyer token account, token escrows only
//     then one writable account per target, in order: the recipient for
//     native escrows, the recipient token account for token escrows.
type ReleaseMsg struct {
	Targets []PaymentTarget
	// Signatures optionally restricts which packet entries are accepted.
	Signatures []solana.Signature
}

var _ custody.Msg = (*ReleaseMsg)(nil)

func (m *ReleaseMsg) Validate() error {
	if err := validateTargets(m.Targets); err != nil {
		return err
	}
	if len(m.Signatures) > MaxReleaseSignatures {
		return errors.Field("Signatures", errors.ErrInput, "at most %d", MaxReleaseSignatures)
	}
	return nil
}

func (m *ReleaseMsg) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint32(uint32(len(m.Targets)), bin.LE); err != nil {
		return err
	}
	for i := range m.Targets {
		if err := m.Targets[i].MarshalWithEncoder(enc); err != nil {
			return err
		}
	}
	if err := enc.WriteUint32(uint32(len(m.Signatures)), bin.LE); err != nil {
		return err
	}
	for _, s := range m.Signatures {
		if err := enc.WriteBytes(s[:], false); err != nil {
			return err
		}
	}
	return nil
}

func (m *ReleaseMsg) UnmarshalWithDecoder(dec *bin.Decoder) error {
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	if n > MaxPaymentTargets {
		return errors.Wrapf(ErrTooManyRecipients, "%d targets", n)
	}
	m.Targets = make([]PaymentTarget, n)
	for i := range m.Targets {
		if err := m.Targets[i].UnmarshalWithDecoder(dec); err != nil {
			return err
		}
	}
	if n, err = dec.ReadUint32(bin.LE); err != nil {
		return err
	}
	if n > MaxReleaseSignatures {
		return errors.Wrapf(errors.ErrInput, "%d signatures", n)
	}
	m.Signatures = make([]solana.Signature, n)
	for i := range m.Signatures {
		raw, err := dec.ReadNBytes(len(m.Signatures[i]))
		if err != nil {
			return err
		}
		copy(m.Signatures[i][:], raw)
	}
	return nil
}

func mustInstruction(tag uint8, m custody.Marshaler) []byte {
	data, err := custody.MarshalInstruction(tag, m)
	if err != nil {
		panic(err)
	}
	return data
}

// NewInitializeInstruction returns an instruction creating the escrow
// described by msg. The address of the escrow is returned as well.
func NewInitializeInstruction(buyer, seller custody.Address, msg *InitializeMsg) (custody.Instruction, custody.Address, error) {
	escrow, _, err := FindAddress(buyer, seller, msg.Moderator != nil, msg.UniqueID)
	if err != nil {
		return custody.Instruction{}, custody.Address{}, err
	}
	b := custody.NewBuilder(ProgramID, mustInstruction(TagInitialize, msg)).
		Signer(buyer, true).
		Writable(escrow).
		ReadOnly(seller)
	if msg.Asset.IsToken() {
		vault, _, err := FindTokenAccountAddress(escrow)
		if err != nil {
			return custody.Instruction{}, custody.Address{}, err
		}
		b.ReadOnly(msg.Asset.Mint).Writable(vault)
	}
	return b.Build(), escrow, nil
}

// NewDepositInstruction returns an instruction depositing lamports into a
// native escrow.
func NewDepositInstruction(depositor, escrow custody.Address, amount uint64) custody.Instruction {
	return custody.NewBuilder(ProgramID, mustInstruction(TagDeposit, &DepositMsg{Amount: amount})).
		Signer(depositor, true).
		Writable(escrow).
		Build()
}

// NewTokenDepositInstruction returns an instruction depositing tokens held
// in the source token account into a token escrow.
func NewTokenDepositInstruction(depositor, escrow, source custody.Address, amount uint64) (custody.Instruction, error) {
	vault, _, err := FindTokenAccountAddress(escrow)
	if err != nil {
		return custody.Instruction{}, err
	}
	return custody.NewBuilder(ProgramID, mustInstruction(TagDeposit, &DepositMsg{Amount: amount})).
		Signer(depositor, true).
		Writable(escrow).
		Writable(source).
		Writable(vault).
		Build(), nil
}

// NewReleaseInstruction returns an instruction releasing a native escrow.
func NewReleaseInstruction(initiator, escrow, buyer custody.Address, msg *ReleaseMsg) custody.Instruction {
	b := custody.NewBuilder(ProgramID, mustInstruction(TagRelease, msg)).
		Signer(initiator, false).
		Writable(escrow).
		Writable(buyer)
	for _, t := range msg.Targets {
		b.Writable(t.Recipient)
	}
	return b.Build()
}

// NewTokenReleaseInstruction returns an instruction releasing a token
// escrow. Target recipients are token accounts; any remainder goes to the
// buyer token account.
func NewTokenReleaseInstruction(initiator, escrow, buyer, buyerTokens custody.Address, msg *ReleaseMsg) (custody.Instruction, error) {
	vault, _, err := FindTokenAccountAddress(escrow)
	if err != nil {
		return custody.Instruction{}, err
	}
	b := custody.NewBuilder(ProgramID, mustInstruction(TagRelease, msg)).
		Signer(initiator, false).
		Writable(escrow).
		Writable(buyer).
		Writable(vault).
		Writable(buyerTokens)
	for _, t := range msg.Targets {
		b.Writable(t.Recipient)
	}
	return b.Build(), nil
}

// releaseAccounts returns the number of accounts a release lists before the
// targets.
func releaseAccounts(asset Asset) int {
	if asset.IsToken() {
		return 5
	}
	return 3
}
