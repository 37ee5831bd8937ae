package registry

import (
	"github.com/iov-one/custody/errors"
)

// ABCI Response Codes
// registry takes 1060-1079
var (
	ErrEmptyName        = errors.Register(1060, "empty name")
	ErrVersionExists    = errors.Register(1061, "version already exists")
	ErrContractNotFound = errors.Register(1062, "contract not found")
	ErrVersionNotFound  = errors.Register(1063, "version not found")
	ErrNoRecommended    = errors.Register(1064, "no recommended version")
	ErrInvalidProgramID = errors.Register(1065, "invalid program id")
	ErrRegistryFull     = errors.Register(1066, "registry account is full")
	ErrNotInitialized   = errors.Register(1067, "registry not initialized")
	ErrInvalidAccount   = errors.Register(1068, "invalid registry account")
)
