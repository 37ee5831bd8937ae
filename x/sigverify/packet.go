package sigverify

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

const (
	// OffsetsStart is the position of the first offsets entry.
	OffsetsStart = 2
	// OffsetsSize is the size of a single offsets entry.
	OffsetsSize = 14
	// CurrentInstruction is the instruction index referring to the packet
	// itself.
	CurrentInstruction = 0xFFFF

	publicKeySize = solana.PublicKeyLength
	signatureSize = len(solana.Signature{})
	maxEntries    = 255
)

// Entry is a single signature check.
type Entry struct {
	PublicKey custody.Address
	Signature solana.Signature
	Message   []byte
}

// Offsets is an entry of the packet offset table.
type Offsets struct {
	SignatureOffset           uint16
	SignatureInstructionIndex uint16
	PublicKeyOffset           uint16
	PublicKeyInstructionIndex uint16
	MessageOffset             uint16
	MessageSize               uint16
	MessageInstructionIndex   uint16
}

func readOffsets(b []byte) (Offsets, error) {
	var o Offsets
	if err := bin.UnmarshalBorsh(&o, b[:OffsetsSize]); err != nil {
		return o, errors.Wrap(ErrInvalidPacket, err.Error())
	}
	return o, nil
}

// NewPacket serializes the entries into a packet carrying all the data
// inline. For each entry the payload holds the public key, the signature and
// the message.
func NewPacket(entries ...Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, errors.Wrap(ErrInvalidPacket, "no entries")
	}
	if len(entries) > maxEntries {
		return nil, errors.Wrapf(ErrInvalidPacket, "%d entries", len(entries))
	}
	size := OffsetsStart + OffsetsSize*len(entries)
	for _, e := range entries {
		size += publicKeySize + signatureSize + len(e.Message)
	}
	if size > 0xFFFF {
		return nil, errors.Wrapf(ErrInvalidPacket, "packet of %d bytes", size)
	}

	packet := make([]byte, size)
	packet[0] = uint8(len(entries))
	pos := OffsetsStart + OffsetsSize*len(entries)
	for i, e := range entries {
		o := Offsets{
			PublicKeyOffset:           uint16(pos),
			PublicKeyInstructionIndex: CurrentInstruction,
			SignatureOffset:           uint16(pos + publicKeySize),
			SignatureInstructionIndex: CurrentInstruction,
			MessageOffset:             uint16(pos + publicKeySize + signatureSize),
			MessageSize:               uint16(len(e.Message)),
			MessageInstructionIndex:   CurrentInstruction,
		}
		raw, err := bin.MarshalBorsh(&o)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidPacket, err.Error())
		}
		copy(packet[OffsetsStart+i*OffsetsSize:], raw)
		pos += copy(packet[pos:], e.PublicKey[:])
		pos += copy(packet[pos:], e.Signature[:])
		pos += copy(packet[pos:], e.Message)
	}
	return packet, nil
}

// Parse decodes all entries of the packet. Entries must carry their data
// inline. Truncated packets, references to other instructions and offsets
// pointing outside of the packet are rejected.
func Parse(packet []byte) ([]Entry, error) {
	if len(packet) < OffsetsStart {
		return nil, errors.Wrap(ErrInvalidPacket, "missing header")
	}
	count := int(packet[0])
	if count == 0 {
		return nil, errors.Wrap(ErrInvalidPacket, "no signatures")
	}
	if len(packet) < OffsetsStart+count*OffsetsSize {
		return nil, errors.Wrapf(ErrInvalidPacket, "offsets of %d entries truncated", count)
	}

	entries := make([]Entry, count)
	for i := range entries {
		o, err := readOffsets(packet[OffsetsStart+i*OffsetsSize:])
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d offsets", i)
		}

		sig, err := slice(packet, o.SignatureInstructionIndex, o.SignatureOffset, signatureSize)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d signature", i)
		}
		pub, err := slice(packet, o.PublicKeyInstructionIndex, o.PublicKeyOffset, publicKeySize)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d public key", i)
		}
		msg, err := slice(packet, o.MessageInstructionIndex, o.MessageOffset, int(o.MessageSize))
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d message", i)
		}

		entries[i].PublicKey = solana.PublicKeyFromBytes(pub)
		copy(entries[i].Signature[:], sig)
		entries[i].Message = msg
	}
	return entries, nil
}

func slice(packet []byte, index, offset uint16, size int) ([]byte, error) {
	if index != CurrentInstruction {
		return nil, errors.Wrapf(ErrInvalidPacket, "instruction index %d not supported", index)
	}
	end := int(offset) + size
	if end > len(packet) {
		return nil, errors.Wrapf(ErrInvalidPacket, "%d bytes at %d out of %d", size, offset, len(packet))
	}
	return packet[offset:end], nil
}
