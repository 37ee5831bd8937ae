package custody

import (
	bin "github.com/gagliardetto/binary"
	"github.com/iov-one/custody/errors"
)

// AccountStorageOverhead is the number of bytes every account occupies in
// addition to its data.
const AccountStorageOverhead = 128

// Rent defines how many lamports an account must hold to be exempt from rent
// collection. The ledger refuses to create accounts below that minimum.
type Rent struct {
	LamportsPerByteYear uint64 `json:"lamports_per_byte_year"`
	ExemptionYears      uint64 `json:"exemption_years"`
}

// DefaultRent mirrors the usual cluster parameters.
var DefaultRent = Rent{LamportsPerByteYear: 3480, ExemptionYears: 2}

// MinimumBalance returns the lamports an account of given data size must
// hold.
func (r Rent) MinimumBalance(size int) uint64 {
	return (AccountStorageOverhead + uint64(size)) * r.LamportsPerByteYear * r.ExemptionYears
}

func (r *Rent) Validate() error {
	if r.ExemptionYears == 0 {
		return errors.Field("ExemptionYears", errors.ErrInput, "must be positive")
	}
	if r.LamportsPerByteYear > 1<<32 {
		return errors.Field("LamportsPerByteYear", errors.ErrInput, "unreasonably high")
	}
	return nil
}

func (r *Rent) Marshal() ([]byte, error) {
	return bin.MarshalBorsh(r)
}

func (r *Rent) Unmarshal(raw []byte) error {
	return bin.UnmarshalBorsh(r, raw)
}
