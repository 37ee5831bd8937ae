package custody

import (
	"bytes"
	"crypto/sha256"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody/errors"
)

// AccountMeta references an account an instruction operates on together with
// the privileges the instruction requests for it.
type AccountMeta struct {
	Address    Address
	IsSigner   bool
	IsWritable bool
}

// Meta is a shortcut to build an AccountMeta.
func Meta(a Address, signer, writable bool) AccountMeta {
	return AccountMeta{Address: a, IsSigner: signer, IsWritable: writable}
}

// Instruction is a single call of a program.
type Instruction struct {
	ProgramID Address
	Accounts  []AccountMeta
	Data      []byte
}

func (ix *Instruction) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := WriteAddress(enc, ix.ProgramID); err != nil {
		return err
	}
	if err := enc.WriteUint32(uint32(len(ix.Accounts)), bin.LE); err != nil {
		return err
	}
	for _, m := range ix.Accounts {
		if err := WriteAddress(enc, m.Address); err != nil {
			return err
		}
		if err := enc.WriteBool(m.IsSigner); err != nil {
			return err
		}
		if err := enc.WriteBool(m.IsWritable); err != nil {
			return err
		}
	}
	if err := enc.WriteUint32(uint32(len(ix.Data)), bin.LE); err != nil {
		return err
	}
	return enc.WriteBytes(ix.Data, false)
}

// Signature is a transaction signature created by the owner of the public
// key.
type Signature struct {
	PublicKey Address
	Signature solana.Signature
}

// Transaction is an ordered list of instructions executed atomically.
type Transaction struct {
	Instructions []Instruction
	// Nonce distinguishes otherwise identical transactions.
	Nonce      uint64
	Signatures []Signature
}

// SignBytes returns the serialized form of the transaction that each signer
// must sign. The chain id is included to prevent cross chain replays.
func (tx *Transaction) SignBytes(chainID string) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	if err := enc.WriteUint32(uint32(len(chainID)), bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes([]byte(chainID), false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(tx.Nonce, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(uint32(len(tx.Instructions)), bin.LE); err != nil {
		return nil, err
	}
	for i := range tx.Instructions {
		if err := tx.Instructions[i].MarshalWithEncoder(enc); err != nil {
			return nil, errors.Wrapf(errors.ErrMsg, "instruction %d: %s", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Hash returns the transaction identifier. Signatures are not part of it.
func (tx *Transaction) Hash(chainID string) ([]byte, error) {
	raw, err := tx.SignBytes(chainID)
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(raw)
	return h[:], nil
}

// Sign appends a signature of every given key.
func (tx *Transaction) Sign(chainID string, keys ...solana.PrivateKey) error {
	raw, err := tx.SignBytes(chainID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		sig, err := k.Sign(raw)
		if err != nil {
			return errors.Wrap(errors.ErrSignature, err.Error())
		}
		tx.Signatures = append(tx.Signatures, Signature{PublicKey: k.PublicKey(), Signature: sig})
	}
	return nil
}

// Signers verifies all signatures and returns the set of signing addresses.
func (tx *Transaction) Signers(chainID string) (map[Address]bool, error) {
	raw, err := tx.SignBytes(chainID)
	if err != nil {
		return nil, err
	}
	signers := make(map[Address]bool, len(tx.Signatures))
	for i, s := range tx.Signatures {
		if !s.Signature.Verify(s.PublicKey, raw) {
			return nil, errors.Wrapf(errors.ErrSignature, "signature %d of %s", i, s.PublicKey)
		}
		signers[s.PublicKey] = true
	}
	return signers, nil
}

// Validate performs a static check of the transaction.
func (tx *Transaction) Validate() error {
	if len(tx.Instructions) == 0 {
		return errors.Wrap(errors.ErrEmpty, "instructions")
	}
	if len(tx.Signatures) == 0 {
		return errors.Wrap(errors.ErrUnauthorized, "no signatures")
	}
	return nil
}
