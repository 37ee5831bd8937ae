package system

import (
	"fmt"

	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/gconf"
)

const optKey = "accounts"

// GenesisAccount is used to parse the json from genesis file. Addresses are
// base58 encoded.
type GenesisAccount struct {
	Address  custody.Address `json:"address"`
	Lamports uint64          `json:"lamports"`
}

// Initializer fulfils the Initializer interface to load data from
// the genesis file
type Initializer struct{}

var _ custody.Initializer = Initializer{}

// FromGenesis stores the rent configuration and funds the genesis accounts.
func (Initializer) FromGenesis(opts custody.Options, db custody.KVStore) error {
	if err := gconf.InitConfig(db, opts, "rent", &custody.Rent{}); err != nil {
		return errors.Wrap(err, "init config")
	}

	var accts []GenesisAccount
	if err := opts.ReadOptions(optKey, &accts); err != nil {
		return errors.Wrap(errors.ErrInput, err.Error())
	}
	for i, a := range accts {
		if a.Address.IsZero() {
			return errors.Field(fmt.Sprintf("%s.%d.Address", optKey, i), errors.ErrEmpty, "required")
		}
		acc, err := custody.LoadAccount(db, a.Address)
		if err != nil {
			return err
		}
		if !acc.IsEmpty() {
			return errors.Wrapf(errors.ErrDuplicate, "genesis account %s", a.Address)
		}
		acc.Lamports = a.Lamports
		if err := custody.StoreAccount(db, a.Address, acc); err != nil {
			return err
		}
	}
	return nil
}
