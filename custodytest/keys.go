package custodytest

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"golang.org/x/crypto/ed25519"
)

// Key returns a private key derived from the name. The same name always
// returns the same key.
func Key(name string) solana.PrivateKey {
	seed := sha256.Sum256([]byte(name))
	return solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:]))
}

// Addr returns the public key of Key(name).
func Addr(name string) custody.Address {
	return Key(name).PublicKey()
}

// NewKey returns a random private key.
func NewKey() solana.PrivateKey {
	k, err := solana.NewRandomPrivateKey()
	if err != nil {
		panic(err)
	}
	return k
}
