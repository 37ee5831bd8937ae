package token

import (
	bin "github.com/gagliardetto/binary"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

const (
	// MintLen is the data size of a mint account.
	MintLen = 32 + 8 + 1 + 1
	// AccountLen is the data size of a token account.
	AccountLen = 32 + 32 + 8 + 1
)

// Mint describes a token.
type Mint struct {
	Authority   custody.Address
	Supply      uint64
	Decimals    uint8
	Initialized bool
}

func (m *Mint) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := custody.WriteAddress(enc, m.Authority); err != nil {
		return err
	}
	if err := enc.WriteUint64(m.Supply, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint8(m.Decimals); err != nil {
		return err
	}
	return enc.WriteBool(m.Initialized)
}

func (m *Mint) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if m.Authority, err = custody.ReadAddress(dec); err != nil {
		return err
	}
	if m.Supply, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if m.Decimals, err = dec.ReadUint8(); err != nil {
		return err
	}
	m.Initialized, err = dec.ReadBool()
	return err
}

// Account state values.
const (
	StateUninitialized uint8 = iota
	StateInitialized
)

// Account is a balance of a single mint.
type Account struct {
	Mint   custody.Address
	Owner  custody.Address
	Amount uint64
	State  uint8
}

func (a *Account) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := custody.WriteAddress(enc, a.Mint); err != nil {
		return err
	}
	if err := custody.WriteAddress(enc, a.Owner); err != nil {
		return err
	}
	if err := enc.WriteUint64(a.Amount, bin.LE); err != nil {
		return err
	}
	return enc.WriteUint8(a.State)
}

func (a *Account) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if a.Mint, err = custody.ReadAddress(dec); err != nil {
		return err
	}
	if a.Owner, err = custody.ReadAddress(dec); err != nil {
		return err
	}
	if a.Amount, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	a.State, err = dec.ReadUint8()
	return err
}

// IsInitialized returns true if the account can hold a balance.
func (a *Account) IsInitialized() bool {
	return a.State == StateInitialized
}

// LoadMint decodes the mint held by the account. The account must be owned
// by the token program.
func LoadMint(info *custody.AccountInfo) (*Mint, error) {
	if err := custody.RequireOwner(info, custody.TokenProgramID, "mint"); err != nil {
		return nil, err
	}
	if len(info.Data) != MintLen {
		return nil, errors.Wrapf(errors.ErrModel, "mint %s data size %d", info.Key, len(info.Data))
	}
	var m Mint
	if err := custody.Unmarshal(info.Data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadAccount decodes the token account. The account must be owned by the
// token program.
func LoadAccount(info *custody.AccountInfo) (*Account, error) {
	if err := custody.RequireOwner(info, custody.TokenProgramID, "token account"); err != nil {
		return nil, err
	}
	if len(info.Data) != AccountLen {
		return nil, errors.Wrapf(errors.ErrModel, "token account %s data size %d", info.Key, len(info.Data))
	}
	var a Account
	if err := custody.Unmarshal(info.Data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// LoadInitializedAccount is LoadAccount that also requires the account to be
// initialized.
func LoadInitializedAccount(info *custody.AccountInfo) (*Account, error) {
	a, err := LoadAccount(info)
	if err != nil {
		return nil, err
	}
	if !a.IsInitialized() {
		return nil, errors.Wrapf(ErrUninitialized, "account %s", info.Key)
	}
	return a, nil
}

// save writes the model into the account data in place.
func save(info *custody.AccountInfo, m custody.Marshaler) error {
	raw, err := custody.Marshal(m)
	if err != nil {
		return err
	}
	if len(raw) != len(info.Data) {
		return errors.Wrapf(errors.ErrHuman, "%d bytes do not fit account %s of %d", len(raw), info.Key, len(info.Data))
	}
	copy(info.Data, raw)
	return nil
}

// NewMintAccount returns a ledger account holding the mint. It is used to set
// up state outside of program execution, for example in genesis.
func NewMintAccount(m *Mint, lamports uint64) (*custody.Account, error) {
	raw, err := custody.Marshal(m)
	if err != nil {
		return nil, err
	}
	return &custody.Account{Lamports: lamports, Owner: custody.TokenProgramID, Data: raw}, nil
}

// NewTokenAccount returns a ledger account holding the token balance.
func NewTokenAccount(a *Account, lamports uint64) (*custody.Account, error) {
	raw, err := custody.Marshal(a)
	if err != nil {
		return nil, err
	}
	return &custody.Account{Lamports: lamports, Owner: custody.TokenProgramID, Data: raw}, nil
}
