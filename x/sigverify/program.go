package sigverify

import (
	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
	"golang.org/x/crypto/ed25519"
)

// RegisterRoutes registers the precompile.
func RegisterRoutes(r custody.Registry) {
	r.Register(custody.Ed25519ProgramID, Program{})
}

// Program verifies every signature of the packet it is given.
type Program struct{}

var _ custody.Program = Program{}

func (Program) Process(ctx custody.Context, inv custody.Invocation) error {
	entries, err := Parse(inv.Data())
	if err != nil {
		return err
	}
	for i, e := range entries {
		if !ed25519.Verify(ed25519.PublicKey(e.PublicKey[:]), e.Message, e.Signature[:]) {
			return errors.Wrapf(ErrInvalidSignature, "entry %d of %s", i, e.PublicKey)
		}
	}
	custody.GetLogger(ctx).Debug("signatures verified", "count", len(entries))
	return nil
}

// NewInstruction returns a precompile instruction verifying all entries.
func NewInstruction(entries ...Entry) (custody.Instruction, error) {
	data, err := NewPacket(entries...)
	if err != nil {
		return custody.Instruction{}, err
	}
	return custody.Instruction{ProgramID: custody.Ed25519ProgramID, Data: data}, nil
}

// Signer is implemented by private keys able to produce ed25519
// signatures.
type Signer interface {
	Sign(payload []byte) (solana.Signature, error)
	PublicKey() custody.Address
}

// Sign returns an entry of the message signed by the key.
func Sign(key Signer, message []byte) (Entry, error) {
	sig, err := key.Sign(message)
	if err != nil {
		return Entry{}, errors.Wrap(errors.ErrSignature, err.Error())
	}
	return Entry{PublicKey: key.PublicKey(), Signature: sig, Message: message}, nil
}
