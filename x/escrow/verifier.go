package escrow

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/x/sigverify"
)

// VerifySignatures returns the public keys that signed the message in the
// signature packet of the instruction preceding the current one.
//
// Packet entries over a different message are ignored. When expected is not
// empty, only entries carrying one of the expected signatures count. Each
// key is returned once. The precompile already failed the transaction if any
// signature was invalid, so no cryptographic check is done here.
func VerifySignatures(ctx custody.Context, message []byte, expected []solana.Signature) ([]custody.Address, error) {
	current, ok := custody.CurrentInstructionIndex(ctx)
	if !ok || current == 0 {
		return nil, errors.Wrap(ErrMalformedSignaturePacket, "no preceding instruction")
	}
	prev, ok := custody.InstructionAt(ctx, current-1)
	if !ok {
		return nil, errors.Wrap(ErrMalformedSignaturePacket, "no preceding instruction")
	}
	if prev.ProgramID != custody.Ed25519ProgramID {
		return nil, errors.Wrapf(ErrMalformedSignaturePacket, "preceding instruction addressed to %s", prev.ProgramID)
	}

	entries, err := sigverify.Parse(prev.Data)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInstructionFormat, err.Error())
	}

	var signers []custody.Address
	for _, e := range entries {
		if !bytes.Equal(e.Message, message) {
			continue
		}
		if len(expected) > 0 && !containsSignature(expected, e.Signature) {
			continue
		}
		if !contains(signers, e.PublicKey) {
			signers = append(signers, e.PublicKey)
		}
	}
	return signers, nil
}

func containsSignature(list []solana.Signature, s solana.Signature) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
