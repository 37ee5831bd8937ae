package pool

import (
	"github.com/iov-one/custody/errors"
)

// ABCI Response Codes
// pool takes 1040-1059
var (
	ErrPoolInactive            = errors.Register(1040, "pool is inactive")
	ErrInsufficientPoolBalance = errors.Register(1041, "insufficient pool balance")
	ErrInvalidRecordStatus     = errors.Register(1042, "invalid record status")
	ErrInvalidAccount          = errors.Register(1043, "invalid pool account")
)
