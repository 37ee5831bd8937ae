package token

import (
	"fmt"

	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/gconf"
)

const optKey = "token"

// GenesisMint is a mint created at genesis.
type GenesisMint struct {
	Address   custody.Address `json:"address"`
	Authority custody.Address `json:"authority"`
	Decimals  uint8           `json:"decimals"`
}

// GenesisAccount is a token account created at genesis. Its amount is added
// to the supply of the mint.
type GenesisAccount struct {
	Address custody.Address `json:"address"`
	Mint    custody.Address `json:"mint"`
	Owner   custody.Address `json:"owner"`
	Amount  uint64          `json:"amount"`
}

type genesis struct {
	Mints    []GenesisMint    `json:"mints"`
	Accounts []GenesisAccount `json:"accounts"`
}

// Initializer fulfils the Initializer interface to load data from
// the genesis file. It must run after the system initializer, because
// created accounts are funded with the rent exemption minimum.
type Initializer struct{}

var _ custody.Initializer = Initializer{}

// FromGenesis creates all mints and token accounts.
func (Initializer) FromGenesis(opts custody.Options, db custody.KVStore) error {
	var gen genesis
	if err := opts.ReadOptions(optKey, &gen); err != nil {
		return errors.Wrap(errors.ErrInput, err.Error())
	}
	if len(gen.Mints) == 0 && len(gen.Accounts) == 0 {
		return nil
	}
	var rent custody.Rent
	if err := gconf.Load(db, "rent", &rent); err != nil {
		return errors.Wrap(err, "rent configuration")
	}

	mints := make(map[custody.Address]*Mint, len(gen.Mints))
	for i, m := range gen.Mints {
		if m.Authority.IsZero() {
			return errors.Field(fmt.Sprintf("mints.%d.Authority", i), errors.ErrEmpty, "required")
		}
		if m.Decimals > MaxDecimals {
			return errors.Field(fmt.Sprintf("mints.%d.Decimals", i), errors.ErrInput, "must not exceed %d", MaxDecimals)
		}
		if _, ok := mints[m.Address]; ok {
			return errors.Wrapf(errors.ErrDuplicate, "mint %s", m.Address)
		}
		mints[m.Address] = &Mint{Authority: m.Authority, Decimals: m.Decimals, Initialized: true}
	}

	for i, a := range gen.Accounts {
		mint, ok := mints[a.Mint]
		if !ok {
			return errors.Field(fmt.Sprintf("accounts.%d.Mint", i), errors.ErrNotFound, "unknown mint %s", a.Mint)
		}
		if a.Owner.IsZero() {
			return errors.Field(fmt.Sprintf("accounts.%d.Owner", i), errors.ErrEmpty, "required")
		}
		if mint.Supply > ^uint64(0)-a.Amount {
			return errors.Wrapf(errors.ErrOverflow, "supply of %s", a.Mint)
		}
		mint.Supply += a.Amount
		acc, err := NewTokenAccount(&Account{
			Mint:   a.Mint,
			Owner:  a.Owner,
			Amount: a.Amount,
			State:  StateInitialized,
		}, rent.MinimumBalance(AccountLen))
		if err != nil {
			return err
		}
		if err := create(db, a.Address, acc); err != nil {
			return err
		}
	}

	for _, m := range gen.Mints {
		acc, err := NewMintAccount(mints[m.Address], rent.MinimumBalance(MintLen))
		if err != nil {
			return err
		}
		if err := create(db, m.Address, acc); err != nil {
			return err
		}
	}
	return nil
}

func create(db custody.KVStore, a custody.Address, acc *custody.Account) error {
	existing, err := custody.LoadAccount(db, a)
	if err != nil {
		return err
	}
	if !existing.IsEmpty() {
		return errors.Wrapf(errors.ErrDuplicate, "account %s", a)
	}
	return custody.StoreAccount(db, a, acc)
}
