package custody

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody/errors"
)

var (
	// SystemProgramID owns every account that no other program claimed.
	SystemProgramID = solana.SystemProgramID

	// TokenProgramID owns mints and token accounts.
	TokenProgramID = solana.TokenProgramID

	// Ed25519ProgramID is the signature verification precompile.
	Ed25519ProgramID = solana.MustPublicKeyFromBase58("Ed25519SigVerify111111111111111111111111111")
)

// ProgramAddress returns a deterministic program identifier for the given
// name.
func ProgramAddress(name string) Address {
	h := sha256.Sum256([]byte("custody/program/" + name))
	return solana.PublicKeyFromBytes(h[:])
}

// Program is a core engine that processes instructions addressed to its
// identifier.
type Program interface {
	Process(ctx Context, inv Invocation) error
}

// Invocation gives a program access to the instruction it processes.
type Invocation interface {
	// ProgramID returns the identifier of the executing program.
	ProgramID() Address

	// Data returns the instruction data.
	Data() []byte

	// Accounts returns the accounts referenced by the instruction, in the
	// order they were listed. Duplicated addresses share the same state.
	Accounts() []*AccountInfo

	// Invoke calls another program. Each seeds entry is a list of seeds the
	// executing program signs for: the address derived from them under the
	// executing program identifier gains the signer privilege.
	Invoke(ctx Context, ix Instruction, signerSeeds ...[][]byte) error
}

// Msg is a decoded instruction.
type Msg interface {
	// Validate performs a sanity check of the instruction arguments.
	Validate() error
}

// Registry is an interface to register your program,
// the setup side of a Router
type Registry interface {
	Register(id Address, p Program)
}

// Options are the app options
// Each extension can look up it's key and parse the json as desired
type Options map[string]json.RawMessage

// ReadOptions reads the values stored under a given key,
// and parses the json into the given obj.
// Returns an error if it cannot parse.
// Noop and no error if key is missing
func (o Options) ReadOptions(key string, obj interface{}) error {
	msg := o[key]
	if len(msg) == 0 {
		return nil
	}
	return json.Unmarshal(msg, obj)
}

// Initializer implementations are used to initialize
// extensions from genesis file contents
type Initializer interface {
	FromGenesis(Options, KVStore) error
}

// RequireAccounts returns the accounts of the invocation, failing if fewer
// than n were provided.
func RequireAccounts(inv Invocation, n int) ([]*AccountInfo, error) {
	accounts := inv.Accounts()
	if len(accounts) < n {
		return nil, errors.Wrapf(errors.ErrMsg, "want at least %d accounts, got %d", n, len(accounts))
	}
	return accounts, nil
}

// RequireSigner fails if the account did not sign the instruction.
func RequireSigner(info *AccountInfo, name string) error {
	if !info.IsSigner {
		return errors.Wrapf(errors.ErrUnauthorized, "%s %s must sign", name, info.Key)
	}
	return nil
}

// RequireOwner fails if the account is not owned by given program.
func RequireOwner(info *AccountInfo, owner Address, name string) error {
	if info.Owner != owner {
		return errors.Wrapf(errors.ErrUnauthorized, "%s %s is owned by %s", name, info.Key, info.Owner)
	}
	return nil
}
