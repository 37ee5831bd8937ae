package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/custodytest"
	"github.com/iov-one/custody/custodytest/assert"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/x/system"
	"github.com/stretchr/testify/require"
)

type env struct {
	*custodytest.Ledger
	authority solana.PrivateKey
	registry  custody.Address
}

func newEnv(t testing.TB) *env {
	t.Helper()
	l := custodytest.NewLedger(t, system.RegisterRoutes, RegisterRoutes)
	e := &env{Ledger: l, authority: custodytest.Key("authority")}
	l.Fund(t, e.authority.PublicKey(), 1e9)

	ix, addr, err := NewInitializeInstruction(e.authority.PublicKey())
	require.NoError(t, err)
	require.NoError(t, l.Exec(t, custodytest.Signers(e.authority), ix))
	e.registry = addr
	return e
}

func (e *env) exec(t testing.TB, ix custody.Instruction, err error) error {
	t.Helper()
	require.NoError(t, err)
	return e.Exec(t, custodytest.Signers(e.authority), ix)
}

func (e *env) load(t testing.TB) *Registry {
	t.Helper()
	r, err := Load(&custody.AccountInfo{Account: e.Get(t, e.registry), Key: e.registry})
	require.NoError(t, err)
	return r
}

func (e *env) addVersion(t testing.TB, contract, version string, status Status) error {
	t.Helper()
	ix, err := NewAddVersionInstruction(e.authority.PublicKey(), &AddVersionMsg{
		Contract:  contract,
		Version:   version,
		Status:    status,
		ProgramID: custodytest.Addr(contract + "/" + version),
	})
	return e.exec(t, ix, err)
}

func TestRegistryLifecycle(t *testing.T) {
	e := newEnv(t)

	r := e.load(t)
	require.Equal(t, e.authority.PublicKey(), r.Authority)
	require.Empty(t, r.Contracts)
	require.Equal(t, custody.DefaultRent.MinimumBalance(RegistryLen), e.Balance(t, e.registry))

	require.NoError(t, e.addVersion(t, "escrow", "v1", StatusProduction))
	e.Advance(time.Hour)
	require.NoError(t, e.addVersion(t, "escrow", "v2", StatusBeta))
	require.NoError(t, e.addVersion(t, "pool", "v1", StatusReleaseCandidate))

	err := e.addVersion(t, "escrow", "v1", StatusBeta)
	assert.IsErr(t, ErrVersionExists, err)

	r = e.load(t)
	require.Len(t, r.Contracts, 2)
	v2 := r.Contract("escrow").Version("v2")
	require.NotNil(t, v2)
	require.Equal(t, StatusBeta, v2.Status)
	require.Equal(t, BugNone, v2.BugLevel)
	require.Equal(t, custodytest.Addr("escrow/v2"), v2.ProgramID)
	require.Equal(t, custodytest.GenesisTime+3600, v2.DateAdded)

	_, err = r.Recommended("escrow")
	assert.IsErr(t, ErrNoRecommended, err)

	ix, err := NewUpdateVersionInstruction(e.authority.PublicKey(), &UpdateVersionMsg{
		Contract: "escrow",
		Version:  "v1",
		Status:   StatusDeprecated,
		BugLevel: BugHigh,
	})
	require.NoError(t, e.exec(t, ix, err))

	ix, err = NewMarkRecommendedInstruction(e.authority.PublicKey(), &MarkRecommendedMsg{Contract: "escrow", Version: "v2"})
	require.NoError(t, e.exec(t, ix, err))

	r = e.load(t)
	v1 := r.Contract("escrow").Version("v1")
	require.Equal(t, StatusDeprecated, v1.Status)
	require.Equal(t, BugHigh, v1.BugLevel)
	rec, err := r.Recommended("escrow")
	require.NoError(t, err)
	require.Equal(t, "v2", rec.Name)

	ix, err = NewRemoveRecommendedInstruction(e.authority.PublicKey(), "escrow")
	require.NoError(t, e.exec(t, ix, err))
	require.Nil(t, e.load(t).Contract("escrow").Recommended)
}

func TestRegistryNotFound(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.addVersion(t, "escrow", "v1", StatusBeta))

	cases := map[string]struct {
		ix      func() (custody.Instruction, error)
		wantErr *errors.Error
	}{
		"update unknown contract": {
			ix: func() (custody.Instruction, error) {
				return NewUpdateVersionInstruction(e.authority.PublicKey(), &UpdateVersionMsg{Contract: "pool", Version: "v1"})
			},
			wantErr: ErrContractNotFound,
		},
		"update unknown version": {
			ix: func() (custody.Instruction, error) {
				return NewUpdateVersionInstruction(e.authority.PublicKey(), &UpdateVersionMsg{Contract: "escrow", Version: "v9"})
			},
			wantErr: ErrVersionNotFound,
		},
		"recommend unknown version": {
			ix: func() (custody.Instruction, error) {
				return NewMarkRecommendedInstruction(e.authority.PublicKey(), &MarkRecommendedMsg{Contract: "escrow", Version: "v9"})
			},
			wantErr: ErrVersionNotFound,
		},
		"remove from unknown contract": {
			ix: func() (custody.Instruction, error) {
				return NewRemoveRecommendedInstruction(e.authority.PublicKey(), "pool")
			},
			wantErr: ErrContractNotFound,
		},
		"invalid bug level": {
			ix: func() (custody.Instruction, error) {
				return NewUpdateVersionInstruction(e.authority.PublicKey(), &UpdateVersionMsg{Contract: "escrow", Version: "v1", BugLevel: 9})
			},
			wantErr: errors.ErrInput,
		},
		"empty version name": {
			ix: func() (custody.Instruction, error) {
				return NewMarkRecommendedInstruction(e.authority.PublicKey(), &MarkRecommendedMsg{Contract: "escrow"})
			},
			wantErr: ErrEmptyName,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			ix, err := tc.ix()
			assert.IsErr(t, tc.wantErr, e.exec(t, ix, err))
		})
	}
}

func TestRegistryAuthority(t *testing.T) {
	e := newEnv(t)
	mallory := custodytest.Key("mallory")
	e.Fund(t, mallory.PublicKey(), 1e6)

	ix, err := NewAddVersionInstruction(mallory.PublicKey(), &AddVersionMsg{
		Contract:  "escrow",
		Version:   "v1",
		ProgramID: custodytest.Addr("program"),
	})
	require.NoError(t, err)
	assert.IsErr(t, errors.ErrUnauthorized, e.Exec(t, custodytest.Signers(mallory), ix))
	require.Empty(t, e.load(t).Contracts)

	// The registry exists only once.
	ix, _, err = NewInitializeInstruction(mallory.PublicKey())
	require.NoError(t, err)
	assert.IsErr(t, errors.ErrDuplicate, e.Exec(t, custodytest.Signers(mallory), ix))
	require.Equal(t, e.authority.PublicKey(), e.load(t).Authority)
}

func TestRegistryNotInitialized(t *testing.T) {
	l := custodytest.NewLedger(t, system.RegisterRoutes, RegisterRoutes)
	authority := custodytest.Key("authority")
	l.Fund(t, authority.PublicKey(), 1e9)

	ix, err := NewRemoveRecommendedInstruction(authority.PublicKey(), "escrow")
	require.NoError(t, err)
	assert.IsErr(t, ErrNotInitialized, l.Exec(t, custodytest.Signers(authority), ix))
}

func TestRegistryFull(t *testing.T) {
	e := newEnv(t)
	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = e.addVersion(t, "escrow", fmt.Sprintf("v%d", i), StatusBeta)
	}
	assert.IsErr(t, ErrRegistryFull, err)

	// The failed instruction left the registry readable.
	r := e.load(t)
	require.NotEmpty(t, r.Contract("escrow").Versions)
}
