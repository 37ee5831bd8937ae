package escrow

import (
	bin "github.com/gagliardetto/binary"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/gconf"
)

const confPkg = "escrow"

// Configuration of the escrow program. The zero value is used when nothing
// was configured.
type Configuration struct {
	// ExactTotal requires a release to pay out the whole escrowed amount.
	ExactTotal bool `json:"exact_total"`
	// AllowTimelockOnly accepts escrows that require no signature quorum.
	// Such escrows can only be released by the seller once unlocked.
	AllowTimelockOnly bool `json:"allow_timelock_only"`
}

func (c *Configuration) Validate() error {
	return nil
}

func (c *Configuration) Marshal() ([]byte, error) {
	return bin.MarshalBorsh(c)
}

func (c *Configuration) Unmarshal(raw []byte) error {
	return bin.UnmarshalBorsh(c, raw)
}

// loadConfiguration returns the configuration of the executing ledger.
func loadConfiguration(ctx custody.Context) (Configuration, error) {
	var conf Configuration
	db, ok := custody.ConfigStore(ctx)
	if !ok {
		return conf, nil
	}
	switch err := gconf.Load(db, confPkg, &conf); {
	case err == nil, errors.ErrNotFound.Is(err):
		return conf, nil
	default:
		return conf, errors.Wrap(err, "escrow configuration")
	}
}
