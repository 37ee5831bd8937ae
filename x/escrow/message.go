package escrow

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

// PaymentTarget is a single transfer of a release.
type PaymentTarget struct {
	Recipient custody.Address
	Amount    uint64
}

func (p *PaymentTarget) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := custody.WriteAddress(enc, p.Recipient); err != nil {
		return err
	}
	return enc.WriteUint64(p.Amount, bin.LE)
}

func (p *PaymentTarget) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if p.Recipient, err = custody.ReadAddress(dec); err != nil {
		return err
	}
	p.Amount, err = dec.ReadUint64(bin.LE)
	return err
}

// ReleaseMessage returns the message the parties sign to authorize paying
// out the targets. The unique id binds the message to a single escrow.
func ReleaseMessage(uniqueID [UniqueIDLen]byte, targets []PaymentTarget) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(UniqueIDLen + len(targets)*(32+8))
	enc := bin.NewBorshEncoder(&buf)
	if err := enc.WriteBytes(uniqueID[:], false); err != nil {
		return nil, errors.Wrap(errors.ErrHuman, err.Error())
	}
	for i := range targets {
		if err := targets[i].MarshalWithEncoder(enc); err != nil {
			return nil, errors.Wrap(errors.ErrHuman, err.Error())
		}
	}
	return buf.Bytes(), nil
}
