package escrow

import (
	"github.com/iov-one/custody/errors"
)

// ABCI Response Codes
// escrow takes 1010-1039
var (
	ErrMalformedSignaturePacket   = errors.Register(1010, "malformed signature packet")
	ErrInvalidInstructionFormat   = errors.Register(1011, "invalid instruction format")
	ErrInsufficientSignatures     = errors.Register(1012, "insufficient signatures")
	ErrPaymentAmountExceedsEscrow = errors.Register(1013, "payment amount exceeds escrow")
	ErrPaymentAmountMismatch      = errors.Register(1014, "payment amount mismatch")
	ErrAmountOverflow             = errors.Register(1015, "amount overflow")
	ErrZeroAmount                 = errors.Register(1016, "zero amount")
	ErrTooManyRecipients          = errors.Register(1017, "too many recipients")
	ErrEmptyPaymentTargets        = errors.Register(1018, "empty payment targets")
	ErrInvalidRequiredSignatures  = errors.Register(1019, "invalid required signatures")
	ErrAlreadyCompleted           = errors.Register(1020, "escrow already completed")
	ErrNotInitialized             = errors.Register(1021, "escrow not initialized")
	ErrInvalidRecipient           = errors.Register(1022, "invalid recipient")
	ErrTokenMintMismatch          = errors.Register(1023, "token mint mismatch")
	ErrInvalidSigner              = errors.Register(1024, "signer is not a party")
	ErrInsufficientFunds          = errors.Register(1025, "insufficient funds in escrow")
	ErrInvalidParties             = errors.Register(1026, "invalid parties")
	ErrInvalidAccount             = errors.Register(1027, "invalid escrow account")
)
