package sigverify

import (
	"github.com/iov-one/custody/errors"
)

// ABCI Response Codes
// sigverify reserves 1080 ~ 1089.
var (
	ErrInvalidPacket    = errors.Register(1080, "invalid signature packet")
	ErrInvalidSignature = errors.Register(1081, "invalid ed25519 signature")
)
