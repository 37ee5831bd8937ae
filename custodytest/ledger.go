package custodytest

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/app"
	"github.com/iov-one/custody/gconf"
	"github.com/iov-one/custody/store"
	"github.com/tendermint/tendermint/libs/log"
)

// ChainID is used by all test ledgers.
const ChainID = "custody-test"

// GenesisTime is the clock value a test ledger starts with.
var GenesisTime = custody.AsUnixTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

// Ledger is an in memory ledger with a clock controlled by the test.
type Ledger struct {
	*app.Ledger
	DB     custody.CacheableKVStore
	Router *app.Router
	Now    custody.UnixTime

	nonce uint64
}

// NewLedger returns a ledger with the default rent configuration and all
// given programs registered.
func NewLedger(t testing.TB, routes ...func(custody.Registry)) *Ledger {
	t.Helper()

	db := store.MemStore()
	if err := gconf.Save(db, "rent", &custody.DefaultRent); err != nil {
		t.Fatalf("cannot save rent configuration: %s", err)
	}
	router := app.NewRouter()
	for _, r := range routes {
		r(router)
	}
	l := app.NewLedger(ChainID, db, router).WithLogger(log.TestingLogger())
	return &Ledger{
		Ledger: l,
		DB:     db,
		Router: router,
		Now:    GenesisTime,
	}
}

// Fund sets the lamport balance of a system owned account.
func (l *Ledger) Fund(t testing.TB, a custody.Address, lamports uint64) {
	t.Helper()
	acc, err := custody.LoadAccount(l.DB, a)
	if err != nil {
		t.Fatalf("cannot load %s: %s", a, err)
	}
	acc.Lamports = lamports
	l.Put(t, a, acc)
}

// Put stores the account as is.
func (l *Ledger) Put(t testing.TB, a custody.Address, acc *custody.Account) {
	t.Helper()
	if err := custody.StoreAccount(l.DB, a, acc); err != nil {
		t.Fatalf("cannot store %s: %s", a, err)
	}
}

// Get returns the current state of an account.
func (l *Ledger) Get(t testing.TB, a custody.Address) *custody.Account {
	t.Helper()
	acc, err := l.Account(a)
	if err != nil {
		t.Fatalf("cannot load %s: %s", a, err)
	}
	return acc
}

// Balance returns the lamports of an account.
func (l *Ledger) Balance(t testing.TB, a custody.Address) uint64 {
	t.Helper()
	return l.Get(t, a).Lamports
}

// Advance moves the clock forward.
func (l *Ledger) Advance(d time.Duration) {
	l.Now = l.Now.Add(d)
}

// Context returns an execution context at the current clock value.
func (l *Ledger) Context() custody.Context {
	return custody.WithBlockTime(context.Background(), l.Now)
}

// Exec signs a transaction made of given instructions and executes it.
func (l *Ledger) Exec(t testing.TB, signers []solana.PrivateKey, ixs ...custody.Instruction) error {
	t.Helper()
	l.nonce++
	tx := &custody.Transaction{Instructions: ixs, Nonce: l.nonce}
	if err := tx.Sign(ChainID, signers...); err != nil {
		t.Fatalf("cannot sign: %s", err)
	}
	_, err := l.Execute(l.Context(), tx)
	return err
}

// Signers is a shortcut to list keys.
func Signers(keys ...solana.PrivateKey) []solana.PrivateKey {
	return keys
}
