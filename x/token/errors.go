package token

import (
	"github.com/iov-one/custody/errors"
)

// ABCI Response Codes
// token reserves 1090 ~ 1099.
var (
	ErrMintMismatch       = errors.Register(1090, "token mint mismatch")
	ErrOwnerMismatch      = errors.Register(1091, "token owner mismatch")
	ErrInsufficientFunds  = errors.Register(1092, "insufficient token funds")
	ErrNonZeroBalance     = errors.Register(1093, "token account not empty")
	ErrAlreadyInitialized = errors.Register(1094, "token account already initialized")
	ErrUninitialized      = errors.Register(1095, "token account not initialized")
)
