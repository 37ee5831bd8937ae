package custody

import (
	"context"
	"regexp"

	"github.com/tendermint/tendermint/libs/log"
)

// Context is the execution context passed between the ledger, programs and
// the helpers they use.
type Context = context.Context

type contextKey int // local to the custody module

const (
	contextKeyBlockTime contextKey = iota
	contextKeyChainID
	contextKeyLogger
	contextKeyRent
	contextKeyInstructions
	contextKeyConfig
)

var (
	// DefaultLogger is used for all context that have not
	// set anything themselves
	DefaultLogger = log.NewNopLogger()

	// IsValidChainID is the RegExp to ensure valid chain IDs
	IsValidChainID = regexp.MustCompile(`^[a-zA-Z0-9_\-]{6,20}$`).MatchString
)

// WithBlockTime sets the clock the programs read "now" from. Programs never
// use the wall clock.
func WithBlockTime(ctx Context, t UnixTime) Context {
	return context.WithValue(ctx, contextKeyBlockTime, t)
}

// BlockTime returns the current time as set for the execution. It panics if
// the time was not set, as no program can safely run without a clock.
func BlockTime(ctx Context) UnixTime {
	t, ok := ctx.Value(contextKeyBlockTime).(UnixTime)
	if !ok {
		panic("block time is not present in the context")
	}
	return t
}

// HasBlockTime returns true if the clock was set for the execution.
func HasBlockTime(ctx Context) bool {
	_, ok := ctx.Value(contextKeyBlockTime).(UnixTime)
	return ok
}

// WithChainID sets the chain id for the Context.
// panics if called with chain id already set
func WithChainID(ctx Context, chainID string) Context {
	if ctx.Value(contextKeyChainID) != nil {
		panic("Tried to change chain id")
	}
	if !IsValidChainID(chainID) {
		panic("Invalid chain id")
	}
	return context.WithValue(ctx, contextKeyChainID, chainID)
}

// GetChainID returns the current chain id
// panics if chain id not already set (should never happen)
func GetChainID(ctx Context) string {
	if x := ctx.Value(contextKeyChainID); x == nil {
		panic("Must have chain id in the context")
	}
	return ctx.Value(contextKeyChainID).(string)
}

// WithLogger sets the logger for this Context
func WithLogger(ctx Context, logger log.Logger) Context {
	return context.WithValue(ctx, contextKeyLogger, logger)
}

// WithLogInfo accepts keyvalue pairs, and returns another
// context like this, after passing all the keyvals to the
// Logger
func WithLogInfo(ctx Context, keyvals ...interface{}) Context {
	logger := GetLogger(ctx).With(keyvals...)
	return WithLogger(ctx, logger)
}

// GetLogger returns the currently set logger, or
// DefaultLogger if none was set
func GetLogger(ctx Context) log.Logger {
	val, ok := ctx.Value(contextKeyLogger).(log.Logger)
	if !ok {
		return DefaultLogger
	}
	return val
}

// WithRent sets the rent parameters used to compute the minimum balance of
// newly created accounts.
func WithRent(ctx Context, r Rent) Context {
	return context.WithValue(ctx, contextKeyRent, r)
}

// GetRent returns the rent parameters of the current execution.
func GetRent(ctx Context) (Rent, bool) {
	r, ok := ctx.Value(contextKeyRent).(Rent)
	return r, ok
}

type instructionList struct {
	all     []Instruction
	current int
}

// WithInstructions exposes the full instruction list of the executed
// transaction together with the index of the top level instruction being
// processed. Programs use it to inspect companion instructions.
func WithInstructions(ctx Context, all []Instruction, current int) Context {
	return context.WithValue(ctx, contextKeyInstructions, instructionList{all: all, current: current})
}

// CurrentInstructionIndex returns the position of the top level instruction
// being processed.
func CurrentInstructionIndex(ctx Context) (int, bool) {
	l, ok := ctx.Value(contextKeyInstructions).(instructionList)
	if !ok {
		return 0, false
	}
	return l.current, true
}

// InstructionAt returns the top level instruction of the executed transaction
// at given position.
func InstructionAt(ctx Context, index int) (Instruction, bool) {
	l, ok := ctx.Value(contextKeyInstructions).(instructionList)
	if !ok || index < 0 || index >= len(l.all) {
		return Instruction{}, false
	}
	return l.all[index], true
}

// WithConfigStore exposes the store configuration singletons are read from.
// Programs must treat it as read only.
func WithConfigStore(ctx Context, db ReadOnlyKVStore) Context {
	return context.WithValue(ctx, contextKeyConfig, db)
}

// ConfigStore returns the store holding configuration singletons.
func ConfigStore(ctx Context) (ReadOnlyKVStore, bool) {
	db, ok := ctx.Value(contextKeyConfig).(ReadOnlyKVStore)
	return db, ok
}
