package escrow

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

// ProgramID is the identifier of the escrow program.
var ProgramID = custody.ProgramAddress("escrow")

// AccountLen is the data size of an escrow account. Optional fields always
// take their full width, so the offset of every field is fixed.
const AccountLen = 8 + // discriminator
	1 + // state
	32 + // buyer
	32 + // seller
	33 + // moderator
	33 + // asset
	8 + // amount
	8 + // unlock time
	1 + // required signatures
	UniqueIDLen +
	1 // bump

// Discriminator prefixes the data of every escrow account.
var Discriminator = custody.AccountDiscriminator("Escrow")

// State of an escrow.
type State uint8

const (
	StateUninitialized State = iota
	StateActive
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// AssetKind tells which asset an escrow holds.
type AssetKind uint8

const (
	AssetNative AssetKind = iota
	AssetToken
)

// Asset is either the native coin or a token of the given mint.
type Asset struct {
	Kind AssetKind
	Mint custody.Address
}

// NativeAsset returns the native coin asset.
func NativeAsset() Asset {
	return Asset{Kind: AssetNative}
}

// TokenAsset returns the asset of given token mint.
func TokenAsset(mint custody.Address) Asset {
	return Asset{Kind: AssetToken, Mint: mint}
}

// IsToken returns true for token assets.
func (a Asset) IsToken() bool {
	return a.Kind == AssetToken
}

func (a Asset) Validate() error {
	switch a.Kind {
	case AssetNative:
		if !a.Mint.IsZero() {
			return errors.Field("Mint", errors.ErrInput, "native asset has no mint")
		}
	case AssetToken:
		if a.Mint.IsZero() {
			return errors.Field("Mint", errors.ErrEmpty, "required")
		}
	default:
		return errors.Field("Kind", errors.ErrInput, "unknown asset kind %d", a.Kind)
	}
	return nil
}

func (a Asset) String() string {
	if a.IsToken() {
		return "token:" + a.Mint.String()
	}
	return "native"
}

// MarshalWithEncoder writes the asset as a tagged union. The mint is always
// written, zeroed for the native asset.
func (a *Asset) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint8(uint8(a.Kind)); err != nil {
		return err
	}
	return custody.WriteAddress(enc, a.Mint)
}

func (a *Asset) UnmarshalWithDecoder(dec *bin.Decoder) error {
	kind, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	a.Kind = AssetKind(kind)
	a.Mint, err = custody.ReadAddress(dec)
	return err
}

// Escrow is the state of an escrow account.
type Escrow struct {
	State State
	Terms
	Asset Asset
	Bump  uint8
}

var _ Agreement = (*Escrow)(nil)

func (e *Escrow) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBytes(Discriminator[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint8(uint8(e.State)); err != nil {
		return err
	}
	if err := custody.WriteAddress(enc, e.Buyer); err != nil {
		return err
	}
	if err := custody.WriteAddress(enc, e.Seller); err != nil {
		return err
	}
	if err := custody.WriteFixedOptionalAddress(enc, e.Moderator); err != nil {
		return err
	}
	if err := e.Asset.MarshalWithEncoder(enc); err != nil {
		return err
	}
	if err := enc.WriteUint64(e.Amount, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteInt64(int64(e.UnlockTime), bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint8(e.RequiredSignatures); err != nil {
		return err
	}
	if err := enc.WriteBytes(e.UniqueID[:], false); err != nil {
		return err
	}
	return enc.WriteUint8(e.Bump)
}

func (e *Escrow) UnmarshalWithDecoder(dec *bin.Decoder) error {
	d, err := dec.ReadNBytes(len(Discriminator))
	if err != nil {
		return err
	}
	if !bytes.Equal(d, Discriminator[:]) {
		return errors.Wrap(ErrInvalidAccount, "discriminator mismatch")
	}
	state, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	e.State = State(state)
	if e.Buyer, err = custody.ReadAddress(dec); err != nil {
		return err
	}
	if e.Seller, err = custody.ReadAddress(dec); err != nil {
		return err
	}
	if e.Moderator, err = custody.ReadFixedOptionalAddress(dec); err != nil {
		return err
	}
	if err := e.Asset.UnmarshalWithDecoder(dec); err != nil {
		return err
	}
	if e.Amount, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	unlock, err := dec.ReadInt64(bin.LE)
	if err != nil {
		return err
	}
	e.UnlockTime = custody.UnixTime(unlock)
	if e.RequiredSignatures, err = dec.ReadUint8(); err != nil {
		return err
	}
	uid, err := dec.ReadNBytes(UniqueIDLen)
	if err != nil {
		return err
	}
	copy(e.UniqueID[:], uid)
	e.Bump, err = dec.ReadUint8()
	return err
}

// LoadEscrow decodes the escrow held by the account.
func LoadEscrow(info *custody.AccountInfo) (*Escrow, error) {
	if info.Owner != ProgramID {
		if info.IsEmpty() {
			return nil, errors.Wrapf(ErrNotInitialized, "account %s", info.Key)
		}
		return nil, errors.Wrapf(ErrInvalidAccount, "account %s is owned by %s", info.Key, info.Owner)
	}
	if len(info.Data) != AccountLen {
		return nil, errors.Wrapf(ErrInvalidAccount, "data size %d", len(info.Data))
	}
	var e Escrow
	if err := e.UnmarshalWithDecoder(bin.NewBorshDecoder(info.Data)); err != nil {
		if ErrInvalidAccount.Is(err) && bytes.Equal(info.Data[:len(Discriminator)], make([]byte, len(Discriminator))) {
			return nil, errors.Wrapf(ErrNotInitialized, "account %s", info.Key)
		}
		return nil, errors.Wrap(ErrInvalidAccount, err.Error())
	}
	return &e, nil
}

// SaveEscrow writes the escrow into the account data.
func SaveEscrow(info *custody.AccountInfo, e *Escrow) error {
	raw, err := custody.Marshal(e)
	if err != nil {
		return err
	}
	if len(raw) != len(info.Data) {
		return errors.Wrapf(errors.ErrHuman, "escrow of %d bytes in account of %d", len(raw), len(info.Data))
	}
	copy(info.Data, raw)
	return nil
}

var (
	escrowSeedPrefix = []byte("escrow")
	tokenSeedPrefix  = []byte("escrow_token")
)

// Seeds returns the seeds the escrow address is derived from.
func Seeds(buyer, seller custody.Address, hasModerator bool, uniqueID [UniqueIDLen]byte) [][]byte {
	flag := []byte{0}
	if hasModerator {
		flag[0] = 1
	}
	return [][]byte{escrowSeedPrefix, buyer[:], seller[:], flag, uniqueID[:]}
}

// FindAddress returns the address of the escrow defined by given parameters
// together with its bump seed.
func FindAddress(buyer, seller custody.Address, hasModerator bool, uniqueID [UniqueIDLen]byte) (custody.Address, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(Seeds(buyer, seller, hasModerator, uniqueID), ProgramID)
	if err != nil {
		return custody.Address{}, 0, errors.Wrap(errors.ErrInput, err.Error())
	}
	return addr, bump, nil
}

// SignerSeeds returns the seeds the program signs for the escrow account
// with.
func (e *Escrow) SignerSeeds() [][]byte {
	return append(Seeds(e.Buyer, e.Seller, e.HasModerator(), e.UniqueID), []byte{e.Bump})
}

func tokenAccountSeeds(escrow custody.Address) [][]byte {
	return [][]byte{tokenSeedPrefix, escrow[:]}
}

// FindTokenAccountAddress returns the address of the token account that
// holds the tokens of a token escrow.
func FindTokenAccountAddress(escrow custody.Address) (custody.Address, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(tokenAccountSeeds(escrow), ProgramID)
	if err != nil {
		return custody.Address{}, 0, errors.Wrap(errors.ErrInput, err.Error())
	}
	return addr, bump, nil
}
