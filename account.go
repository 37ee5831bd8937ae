package custody

import (
	"bytes"
	"crypto/sha256"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody/errors"
)

// Address identifies an account or a program.
type Address = solana.PublicKey

// Account is the state the ledger keeps for every address.
type Account struct {
	Lamports uint64
	Owner    Address
	Data     []byte
}

// NewAccount returns the implicit value of an address that has never been
// written: no lamports, no data, owned by the system program.
func NewAccount() *Account {
	return &Account{Owner: SystemProgramID}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}

// IsEmpty returns true if the account does not hold any value or data.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0
}

// Equal returns true if both accounts hold exactly the same state.
func (a *Account) Equal(b *Account) bool {
	return a.Lamports == b.Lamports && a.Owner == b.Owner && bytes.Equal(a.Data, b.Data)
}

// Debit removes lamports from the account.
func (a *Account) Debit(amount uint64) error {
	if a.Lamports < amount {
		return errors.Wrapf(errors.ErrAmount, "balance %d, requested %d", a.Lamports, amount)
	}
	a.Lamports -= amount
	return nil
}

// Credit adds lamports to the account.
func (a *Account) Credit(amount uint64) error {
	if a.Lamports > ^uint64(0)-amount {
		return errors.Wrap(errors.ErrOverflow, "lamports")
	}
	a.Lamports += amount
	return nil
}

func (a *Account) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint64(a.Lamports, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteBytes(a.Owner[:], false); err != nil {
		return err
	}
	if err := enc.WriteUint32(uint32(len(a.Data)), bin.LE); err != nil {
		return err
	}
	return enc.WriteBytes(a.Data, false)
}

func (a *Account) UnmarshalWithDecoder(dec *bin.Decoder) error {
	var err error
	if a.Lamports, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if a.Owner, err = ReadAddress(dec); err != nil {
		return err
	}
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	if n == 0 {
		a.Data = nil
		return nil
	}
	data, err := dec.ReadNBytes(int(n))
	if err != nil {
		return err
	}
	a.Data = append([]byte(nil), data...)
	return nil
}

// Marshal serializes the account for persistence.
func (a *Account) Marshal() ([]byte, error) {
	return Marshal(a)
}

// Unmarshal loads the account from its persisted form.
func (a *Account) Unmarshal(raw []byte) error {
	return Unmarshal(raw, a)
}

// AccountInfo is an account as seen by a program during a single
// invocation. The same underlying Account is shared between all invocations
// that reference the address, while the privileges are local.
type AccountInfo struct {
	*Account
	Key        Address
	IsSigner   bool
	IsWritable bool
}

// ReadAddress decodes a 32 byte address.
func ReadAddress(dec *bin.Decoder) (Address, error) {
	raw, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return Address{}, err
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// WriteAddress encodes a 32 byte address.
func WriteAddress(enc *bin.Encoder, a Address) error {
	return enc.WriteBytes(a[:], false)
}

var accountPrefix = []byte("acct:")

// AccountKey returns the store key under which the account of given address
// is persisted.
func AccountKey(a Address) []byte {
	return append(append([]byte(nil), accountPrefix...), a[:]...)
}

// LoadAccount returns the account stored under given address or the implicit
// empty account if nothing was stored yet.
func LoadAccount(db ReadOnlyKVStore, a Address) (*Account, error) {
	raw, err := db.Get(AccountKey(a))
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	if raw == nil {
		return NewAccount(), nil
	}
	var acc Account
	if err := acc.Unmarshal(raw); err != nil {
		return nil, errors.Wrapf(err, "account %s", a)
	}
	return &acc, nil
}

// StoreAccount persists the account. Accounts without lamports are removed.
func StoreAccount(db KVStore, a Address, acc *Account) error {
	if acc.Lamports == 0 {
		return db.Delete(AccountKey(a))
	}
	raw, err := acc.Marshal()
	if err != nil {
		return err
	}
	return db.Set(AccountKey(a), raw)
}

// AccountDiscriminator returns the tag that prefixes the data of accounts of
// given type.
func AccountDiscriminator(name string) [8]byte {
	var d [8]byte
	h := sha256.Sum256([]byte("account:" + name))
	copy(d[:], h[:8])
	return d
}
