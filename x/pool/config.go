package pool

import (
	bin "github.com/gagliardetto/binary"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/gconf"
)

const confPkg = "pool"

// Configuration of the pool program.
type Configuration struct {
	// ExactTotal requires a release to pay out the whole record amount.
	ExactTotal bool `json:"exact_total"`
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
		return conf, errors.Wrap(err, "pool configuration")
	}
}
