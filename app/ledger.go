package app

import (
	"fmt"
	"sync"

	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/gconf"
	"github.com/tendermint/tendermint/libs/log"
)

// Ledger executes transactions against the account state kept in a store.
//
// Transactions are executed one at a time. Each is all or nothing: when any
// of its instructions fails, no change is persisted.
type Ledger struct {
	mu      sync.Mutex
	chainID string
	db      custody.CacheableKVStore
	router  *Router
	logger  log.Logger
	debug   bool
}

// NewLedger returns a ledger operating on given store. It panics if the
// chain id is not valid.
func NewLedger(chainID string, db custody.CacheableKVStore, router *Router) *Ledger {
	if !custody.IsValidChainID(chainID) {
		panic(fmt.Sprintf("invalid chain id: %q", chainID))
	}
	return &Ledger{
		chainID: chainID,
		db:      db,
		router:  router,
		logger:  log.NewNopLogger(),
	}
}

// WithLogger sets the logger used for all executions.
func (l *Ledger) WithLogger(logger log.Logger) *Ledger {
	l.logger = logger
	return l
}

// WithDebug controls if failure details of internal errors are logged.
func (l *Ledger) WithDebug(debug bool) *Ledger {
	l.debug = debug
	return l
}

// ChainID returns the identifier of the chain this ledger runs.
func (l *Ledger) ChainID() string {
	return l.chainID
}

// InitChain loads the genesis state. Changes are persisted only if all
// initializers succeed.
func (l *Ledger) InitChain(opts custody.Options, init custody.Initializer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cache := l.db.CacheWrap()
	if err := init.FromGenesis(opts, cache); err != nil {
		cache.Discard()
		return errors.Wrap(err, "genesis")
	}
	return cache.Write()
}

// Account returns the current state of the account stored under given
// address.
func (l *Ledger) Account(a custody.Address) (*custody.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return custody.LoadAccount(l.db, a)
}

var txPrefix = []byte("tx:")

// Execute runs all instructions of the transaction. The context must carry
// the block time. The hash of the transaction is returned. A transaction can
// be executed only once.
func (l *Ledger) Execute(ctx custody.Context, tx *custody.Transaction) (hash []byte, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !custody.HasBlockTime(ctx) {
		return nil, errors.Wrap(errors.ErrState, "block time not set")
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	signers, err := tx.Signers(l.chainID)
	if err != nil {
		return nil, err
	}
	hash, err = tx.Hash(l.chainID)
	if err != nil {
		return nil, err
	}

	logger := l.logger.With("tx", fmt.Sprintf("%X", hash[:8]))
	cache := l.db.CacheWrap()
	if err := l.execute(ctx, cache, tx, hash, signers, logger); err != nil {
		cache.Discard()
		code, msg := errors.Info(err, l.debug)
		logger.Info("transaction failed", "code", code, "log", msg)
		return hash, err
	}
	if err := cache.Write(); err != nil {
		return hash, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	logger.Debug("transaction executed", "instructions", len(tx.Instructions))
	return hash, nil
}

func (l *Ledger) execute(
	ctx custody.Context,
	db custody.KVStore,
	tx *custody.Transaction,
	hash []byte,
	signers map[custody.Address]bool,
	logger log.Logger,
) (err error) {
	defer errors.Recover(&err)

	txKey := append(append([]byte(nil), txPrefix...), hash...)
	switch seen, err := db.Has(txKey); {
	case err != nil:
		return errors.Wrap(errors.ErrDatabase, err.Error())
	case seen:
		return errors.Wrap(errors.ErrDuplicate, "transaction already executed")
	}

	var rent custody.Rent
	if err := gconf.Load(db, "rent", &rent); err != nil {
		return errors.Wrap(err, "rent configuration")
	}

	ctx = custody.WithChainID(ctx, l.chainID)
	ctx = custody.WithRent(ctx, rent)
	ctx = custody.WithLogger(ctx, logger)
	ctx = custody.WithConfigStore(ctx, db)

	for i, ix := range tx.Instructions {
		ictx := custody.WithInstructions(ctx, tx.Instructions, i)
		if err := l.executeInstruction(ictx, db, ix, signers); err != nil {
			return errors.Wrapf(err, "instruction %d", i)
		}
	}
	return db.Set(txKey, []byte{1})
}

// executeInstruction runs a single top level instruction and persists the
// accounts it modified.
func (l *Ledger) executeInstruction(
	ctx custody.Context,
	db custody.KVStore,
	ix custody.Instruction,
	signers map[custody.Address]bool,
) error {
	loaded := make(map[custody.Address]*custody.Account)
	writable := make(map[custody.Address]bool)
	accounts := make([]*custody.AccountInfo, len(ix.Accounts))
	for i, m := range ix.Accounts {
		if m.IsSigner && !signers[m.Address] {
			return errors.Wrapf(errors.ErrUnauthorized, "missing signature of %s", m.Address)
		}
		acc, ok := loaded[m.Address]
		if !ok {
			var err error
			if acc, err = custody.LoadAccount(db, m.Address); err != nil {
				return err
			}
			loaded[m.Address] = acc
		}
		writable[m.Address] = writable[m.Address] || m.IsWritable
		accounts[i] = &custody.AccountInfo{
			Account:    acc,
			Key:        m.Address,
			IsSigner:   m.IsSigner,
			IsWritable: m.IsWritable,
		}
	}

	begin := takeSnapshot(accounts)
	exec := &executor{router: l.router}
	f := &frame{
		exec:     exec,
		program:  ix.ProgramID,
		data:     ix.Data,
		accounts: accounts,
	}
	if err := exec.call(ctx, f); err != nil {
		return err
	}

	before, err := begin.lamports()
	if err != nil {
		return err
	}
	after, err := takeSnapshot(accounts).lamports()
	if err != nil {
		return err
	}
	if before != after {
		return errors.Wrapf(errors.ErrState, "lamports not balanced: %d before, %d after", before, after)
	}

	for addr, acc := range loaded {
		if !writable[addr] || acc.Equal(begin[addr]) {
			continue
		}
		if err := custody.StoreAccount(db, addr, acc); err != nil {
			return errors.Wrap(errors.ErrDatabase, err.Error())
		}
	}
	return nil
}
