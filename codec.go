package custody

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/iov-one/custody/errors"
)

// Marshaler is implemented by types that serialize themselves with the
// borsh encoding.
type Marshaler interface {
	MarshalWithEncoder(enc *bin.Encoder) error
}

// Unmarshaler is implemented by types that deserialize themselves from the
// borsh encoding.
type Unmarshaler interface {
	UnmarshalWithDecoder(dec *bin.Decoder) error
}

// Marshal serializes given value.
func Marshal(m Marshaler) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.MarshalWithEncoder(bin.NewBorshEncoder(&buf)); err != nil {
		return nil, errors.Wrap(errors.ErrModel, err.Error())
	}
	return buf.Bytes(), nil
}

// Unmarshal deserializes given value. Trailing bytes are ignored so that
// fixed size account buffers can be decoded.
func Unmarshal(raw []byte, u Unmarshaler) error {
	if err := u.UnmarshalWithDecoder(bin.NewBorshDecoder(raw)); err != nil {
		return errors.Wrap(errors.ErrModel, err.Error())
	}
	return nil
}

// MarshalInstruction returns instruction data made of a single byte variant
// tag followed by the serialized arguments.
func MarshalInstruction(tag uint8, m Marshaler) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	if err := enc.WriteUint8(tag); err != nil {
		return nil, errors.Wrap(errors.ErrMsg, err.Error())
	}
	if err := m.MarshalWithEncoder(enc); err != nil {
		return nil, errors.Wrap(errors.ErrMsg, err.Error())
	}
	return buf.Bytes(), nil
}

// SplitInstruction returns the variant tag and the arguments of instruction
// data.
func SplitInstruction(data []byte) (uint8, []byte, error) {
	if len(data) == 0 {
		return 0, nil, errors.Wrap(errors.ErrMsg, "empty instruction data")
	}
	return data[0], data[1:], nil
}

// UnmarshalMsg decodes instruction arguments and validates them.
func UnmarshalMsg(raw []byte, msg interface {
	Unmarshaler
	Msg
}) error {
	if err := msg.UnmarshalWithDecoder(bin.NewBorshDecoder(raw)); err != nil {
		// Decoders reject oversized lists with their own codes.
		if errors.HasCode(err) {
			return errors.Wrap(err, "decode")
		}
		return errors.Wrap(errors.ErrMsg, err.Error())
	}
	return msg.Validate()
}

// WriteOptionalAddress encodes an Option<Address>.
func WriteOptionalAddress(enc *bin.Encoder, a *Address) error {
	if a == nil {
		return enc.WriteBool(false)
	}
	if err := enc.WriteBool(true); err != nil {
		return err
	}
	return WriteAddress(enc, *a)
}

// ReadOptionalAddress decodes an Option<Address>.
func ReadOptionalAddress(dec *bin.Decoder) (*Address, error) {
	some, err := dec.ReadBool()
	if err != nil {
		return nil, err
	}
	if !some {
		return nil, nil
	}
	a, err := ReadAddress(dec)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// WriteString encodes a length prefixed string.
func WriteString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), bin.LE); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

// ReadString decodes a length prefixed string. Strings longer than max are
// rejected.
func ReadString(dec *bin.Decoder, max int) (string, error) {
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return "", err
	}
	if int(n) > max {
		return "", errors.Wrapf(errors.ErrInput, "string of %d bytes exceeds %d", n, max)
	}
	raw, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Builder is a helper to list instruction accounts.
type Builder struct {
	ix Instruction
}

// NewBuilder starts an instruction for given program.
func NewBuilder(programID Address, data []byte) *Builder {
	return &Builder{ix: Instruction{ProgramID: programID, Data: data}}
}

// Signer appends a signing account.
func (b *Builder) Signer(a Address, writable bool) *Builder {
	b.ix.Accounts = append(b.ix.Accounts, Meta(a, true, writable))
	return b
}

// Writable appends a writable account.
func (b *Builder) Writable(a Address) *Builder {
	b.ix.Accounts = append(b.ix.Accounts, Meta(a, false, true))
	return b
}

// ReadOnly appends a read only account.
func (b *Builder) ReadOnly(a Address) *Builder {
	b.ix.Accounts = append(b.ix.Accounts, Meta(a, false, false))
	return b
}

// Build returns the instruction.
func (b *Builder) Build() Instruction {
	return b.ix
}

// WriteFixedOptionalAddress encodes an Option<Address> that always takes its
// full width, so that the offsets of the following fields do not depend on
// its presence.
func WriteFixedOptionalAddress(enc *bin.Encoder, a *Address) error {
	var value Address
	if a != nil {
		value = *a
	}
	if err := enc.WriteBool(a != nil); err != nil {
		return err
	}
	return WriteAddress(enc, value)
}

// ReadFixedOptionalAddress decodes a value written by
// WriteFixedOptionalAddress.
func ReadFixedOptionalAddress(dec *bin.Decoder) (*Address, error) {
	some, err := dec.ReadBool()
	if err != nil {
		return nil, err
	}
	value, err := ReadAddress(dec)
	if err != nil || !some {
		return nil, err
	}
	return &value, nil
}
