package app_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/app"
	"github.com/iov-one/custody/custodytest"
	"github.com/iov-one/custody/custodytest/assert"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/x/system"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
)

func TestExecuteTransfer(t *testing.T) {
	l := custodytest.NewLedger(t, system.RegisterRoutes)
	alice, bob := custodytest.Key("alice"), custodytest.Addr("bob")
	l.Fund(t, alice.PublicKey(), 1000)

	err := l.Exec(t, custodytest.Signers(alice),
		system.NewTransferInstruction(alice.PublicKey(), bob, 300))
	require.NoError(t, err)
	require.Equal(t, uint64(700), l.Balance(t, alice.PublicKey()))
	require.Equal(t, uint64(300), l.Balance(t, bob))
}

func TestExecuteIsAtomic(t *testing.T) {
	l := custodytest.NewLedger(t, system.RegisterRoutes)
	alice, bob := custodytest.Key("alice"), custodytest.Addr("bob")
	l.Fund(t, alice.PublicKey(), 1000)

	err := l.Exec(t, custodytest.Signers(alice),
		system.NewTransferInstruction(alice.PublicKey(), bob, 600),
		system.NewTransferInstruction(alice.PublicKey(), bob, 600),
	)
	assert.IsErr(t, errors.ErrAmount, err)
	require.Equal(t, uint64(1000), l.Balance(t, alice.PublicKey()))
	require.Equal(t, uint64(0), l.Balance(t, bob))
}

func TestExecuteRejectsDuplicates(t *testing.T) {
	l := custodytest.NewLedger(t, system.RegisterRoutes)
	alice, bob := custodytest.Key("alice"), custodytest.Addr("bob")
	l.Fund(t, alice.PublicKey(), 1000)

	tx := &custody.Transaction{
		Instructions: []custody.Instruction{system.NewTransferInstruction(alice.PublicKey(), bob, 10)},
		Nonce:        7,
	}
	require.NoError(t, tx.Sign(custodytest.ChainID, alice))

	first, err := l.Execute(l.Context(), tx)
	require.NoError(t, err)
	second, err := l.Execute(l.Context(), tx)
	assert.IsErr(t, errors.ErrDuplicate, err)
	require.Equal(t, first, second)
	require.Equal(t, uint64(10), l.Balance(t, bob))
}

func TestExecuteValidation(t *testing.T) {
	l := custodytest.NewLedger(t, system.RegisterRoutes)
	alice, bob := custodytest.Key("alice"), custodytest.Key("bob")
	l.Fund(t, alice.PublicKey(), 1000)
	ix := system.NewTransferInstruction(alice.PublicKey(), bob.PublicKey(), 10)

	cases := map[string]struct {
		ctx     custody.Context
		tx      func() *custody.Transaction
		wantErr *errors.Error
	}{
		"no block time": {
			ctx: context.Background(),
			tx: func() *custody.Transaction {
				tx := &custody.Transaction{Instructions: []custody.Instruction{ix}}
				require.NoError(t, tx.Sign(custodytest.ChainID, alice))
				return tx
			},
			wantErr: errors.ErrState,
		},
		"no instructions": {
			ctx: l.Context(),
			tx: func() *custody.Transaction {
				tx := &custody.Transaction{}
				require.NoError(t, tx.Sign(custodytest.ChainID, alice))
				return tx
			},
			wantErr: errors.ErrEmpty,
		},
		"not signed": {
			ctx: l.Context(),
			tx: func() *custody.Transaction {
				return &custody.Transaction{Instructions: []custody.Instruction{ix}}
			},
			wantErr: errors.ErrUnauthorized,
		},
		"signed by the wrong key": {
			ctx: l.Context(),
			tx: func() *custody.Transaction {
				tx := &custody.Transaction{Instructions: []custody.Instruction{ix}}
				require.NoError(t, tx.Sign(custodytest.ChainID, bob))
				return tx
			},
			wantErr: errors.ErrUnauthorized,
		},
		"signed for another chain": {
			ctx: l.Context(),
			tx: func() *custody.Transaction {
				tx := &custody.Transaction{Instructions: []custody.Instruction{ix}}
				require.NoError(t, tx.Sign("another-chain", alice))
				return tx
			},
			wantErr: errors.ErrSignature,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			_, err := l.Execute(tc.ctx, tc.tx())
			assert.IsErr(t, tc.wantErr, err)
			require.Equal(t, uint64(1000), l.Balance(t, alice.PublicKey()))
		})
	}
}

func TestAccountRules(t *testing.T) {
	progID := custody.ProgramAddress("test")
	alice := custodytest.Key("alice")

	cases := map[string]struct {
		fn      func(custody.Context, custody.Invocation) error
		meta    custody.AccountMeta
		owned   bool
		wantErr *errors.Error
	}{
		"owner may change data": {
			fn: func(ctx custody.Context, inv custody.Invocation) error {
				inv.Accounts()[0].Data[0] = 1
				return nil
			},
			meta:  custody.Meta(custodytest.Addr("owned"), false, true),
			owned: true,
		},
		"owner cannot change read only account": {
			fn: func(ctx custody.Context, inv custody.Invocation) error {
				inv.Accounts()[0].Data[0] = 1
				return nil
			},
			meta:    custody.Meta(custodytest.Addr("owned"), false, false),
			owned:   true,
			wantErr: errors.ErrUnauthorized,
		},
		"foreign data cannot change": {
			fn: func(ctx custody.Context, inv custody.Invocation) error {
				inv.Accounts()[0].Data = []byte{1}
				return nil
			},
			meta:    custody.Meta(alice.PublicKey(), true, true),
			wantErr: errors.ErrUnauthorized,
		},
		"foreign lamports cannot be withdrawn": {
			fn: func(ctx custody.Context, inv custody.Invocation) error {
				return inv.Accounts()[0].Debit(1)
			},
			meta:    custody.Meta(alice.PublicKey(), true, true),
			wantErr: errors.ErrUnauthorized,
		},
		"foreign owner cannot change": {
			fn: func(ctx custody.Context, inv custody.Invocation) error {
				inv.Accounts()[0].Owner = progID
				return nil
			},
			meta:    custody.Meta(alice.PublicKey(), true, true),
			wantErr: errors.ErrUnauthorized,
		},
		"lamports cannot be created": {
			fn: func(ctx custody.Context, inv custody.Invocation) error {
				return inv.Accounts()[0].Credit(1)
			},
			meta:    custody.Meta(alice.PublicKey(), true, true),
			wantErr: errors.ErrState,
		},
		"panic is recovered": {
			fn: func(ctx custody.Context, inv custody.Invocation) error {
				panic("boom")
			},
			meta:    custody.Meta(alice.PublicKey(), true, true),
			wantErr: errors.ErrPanic,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			prog := &custodytest.Program{Fn: tc.fn}
			l := custodytest.NewLedger(t, func(r custody.Registry) { r.Register(progID, prog) })
			l.Fund(t, alice.PublicKey(), 1000)
			if tc.owned {
				l.Put(t, tc.meta.Address, &custody.Account{Lamports: 50, Owner: progID, Data: []byte{0}})
			}
			before := l.Get(t, tc.meta.Address)

			ix := custody.Instruction{ProgramID: progID, Accounts: []custody.AccountMeta{tc.meta}}
			err := l.Exec(t, custodytest.Signers(alice), ix)
			assert.IsErr(t, tc.wantErr, err)
			require.Equal(t, 1, prog.CallCount())
			if tc.wantErr != nil {
				require.Equal(t, before, l.Get(t, tc.meta.Address))
			}
		})
	}
}

func TestInvokeWithDerivedSigner(t *testing.T) {
	vaultID := custody.ProgramAddress("vault")
	vault, bump, err := solana.FindProgramAddress([][]byte{[]byte("vault")}, vaultID)
	require.NoError(t, err)
	bob := custodytest.Addr("bob")
	payer := custodytest.Key("payer")

	cases := map[string]struct {
		seeds   [][][]byte
		wantErr *errors.Error
	}{
		"signed with program seeds": {
			seeds: [][][]byte{{[]byte("vault"), {bump}}},
		},
		"not signed": {
			wantErr: errors.ErrUnauthorized,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			prog := &custodytest.Program{
				Fn: func(ctx custody.Context, inv custody.Invocation) error {
					ix := system.NewTransferInstruction(vault, bob, 100)
					return inv.Invoke(ctx, ix, tc.seeds...)
				},
			}
			l := custodytest.NewLedger(t, system.RegisterRoutes, func(r custody.Registry) {
				r.Register(vaultID, prog)
			})
			l.Fund(t, vault, 1000)
			l.Fund(t, payer.PublicKey(), 1)

			ix := custody.NewBuilder(vaultID, nil).
				Signer(payer.PublicKey(), false).
				Writable(vault).
				Writable(bob).
				Build()
			err := l.Exec(t, custodytest.Signers(payer), ix)
			assert.IsErr(t, tc.wantErr, err)
			if tc.wantErr == nil {
				require.Equal(t, uint64(900), l.Balance(t, vault))
				require.Equal(t, uint64(100), l.Balance(t, bob))
			} else {
				require.Equal(t, uint64(1000), l.Balance(t, vault))
			}
		})
	}
}

func TestInvokeRestrictions(t *testing.T) {
	progID := custody.ProgramAddress("caller")
	alice := custodytest.Key("alice")
	bob := custodytest.Addr("bob")

	cases := map[string]struct {
		fn      func(custody.Context, custody.Invocation) error
		wantErr *errors.Error
	}{
		"reentrancy": {
			fn: func(ctx custody.Context, inv custody.Invocation) error {
				return inv.Invoke(ctx, custody.Instruction{ProgramID: progID})
			},
			wantErr: errors.ErrUnauthorized,
		},
		"account out of scope": {
			fn: func(ctx custody.Context, inv custody.Invocation) error {
				ix := system.NewTransferInstruction(alice.PublicKey(), custodytest.Addr("carol"), 1)
				return inv.Invoke(ctx, ix)
			},
			wantErr: errors.ErrUnauthorized,
		},
		"writable escalation": {
			fn: func(ctx custody.Context, inv custody.Invocation) error {
				ix := system.NewTransferInstruction(bob, alice.PublicKey(), 1)
				return inv.Invoke(ctx, ix)
			},
			wantErr: errors.ErrUnauthorized,
		},
		"unknown program": {
			fn: func(ctx custody.Context, inv custody.Invocation) error {
				return inv.Invoke(ctx, custody.Instruction{ProgramID: custody.ProgramAddress("missing")})
			},
			wantErr: errors.ErrNotFound,
		},
		"transfer on behalf of signer": {
			fn: func(ctx custody.Context, inv custody.Invocation) error {
				ix := system.NewTransferInstruction(alice.PublicKey(), bob, 5)
				return inv.Invoke(ctx, ix)
			},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			prog := &custodytest.Program{Fn: tc.fn}
			l := custodytest.NewLedger(t, system.RegisterRoutes, func(r custody.Registry) {
				r.Register(progID, prog)
			})
			l.Fund(t, alice.PublicKey(), 1000)

			// bob is listed twice, once read only and once writable.
			ix := custody.NewBuilder(progID, nil).
				Signer(alice.PublicKey(), true).
				ReadOnly(bob).
				Writable(bob).
				Build()
			if testName == "writable escalation" {
				ix.Accounts = ix.Accounts[:2]
			}
			err := l.Exec(t, custodytest.Signers(alice), ix)
			assert.IsErr(t, tc.wantErr, err)
		})
	}
}

func TestLedgerClock(t *testing.T) {
	progID := custody.ProgramAddress("clock")
	alice := custodytest.Key("alice")

	var seen []custody.UnixTime
	prog := &custodytest.Program{
		Fn: func(ctx custody.Context, inv custody.Invocation) error {
			seen = append(seen, custody.BlockTime(ctx))
			return nil
		},
	}
	l := custodytest.NewLedger(t, func(r custody.Registry) { r.Register(progID, prog) })
	l.Fund(t, alice.PublicKey(), 1)

	ix := custody.NewBuilder(progID, nil).Signer(alice.PublicKey(), false).Build()
	require.NoError(t, l.Exec(t, custodytest.Signers(alice), ix))
	l.Advance(time.Hour)
	require.NoError(t, l.Exec(t, custodytest.Signers(alice), ix))

	require.Equal(t, []custody.UnixTime{custodytest.GenesisTime, custodytest.GenesisTime.Add(time.Hour)}, seen)
}

func TestInstructionList(t *testing.T) {
	progID := custody.ProgramAddress("list")
	alice := custodytest.Key("alice")

	var indexes []int
	prog := &custodytest.Program{
		Fn: func(ctx custody.Context, inv custody.Invocation) error {
			i, ok := custody.CurrentInstructionIndex(ctx)
			require.True(t, ok)
			ix, ok := custody.InstructionAt(ctx, i)
			require.True(t, ok)
			require.Equal(t, inv.Data(), ix.Data)
			indexes = append(indexes, i)
			return nil
		},
	}
	l := custodytest.NewLedger(t, func(r custody.Registry) { r.Register(progID, prog) })
	l.Fund(t, alice.PublicKey(), 1)

	err := l.Exec(t, custodytest.Signers(alice),
		custody.NewBuilder(progID, []byte{1}).Signer(alice.PublicKey(), false).Build(),
		custody.NewBuilder(progID, []byte{2}).Signer(alice.PublicKey(), false).Build(),
	)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, indexes)
}

func TestProgramLogger(t *testing.T) {
	progID := custody.ProgramAddress("logging")
	alice := custodytest.Key("alice")

	prog := &custodytest.Program{
		Fn: func(ctx custody.Context, inv custody.Invocation) error {
			custody.GetLogger(ctx).Info("processing")
			return nil
		},
	}
	l := custodytest.NewLedger(t, func(r custody.Registry) { r.Register(progID, prog) })
	l.Fund(t, alice.PublicKey(), 1)

	var buf bytes.Buffer
	l.WithLogger(log.NewTMLogger(log.NewSyncWriter(&buf)))

	ix := custody.NewBuilder(progID, nil).Signer(alice.PublicKey(), false).Build()
	require.NoError(t, l.Exec(t, custodytest.Signers(alice), ix))
	require.Contains(t, buf.String(), "processing")
	require.Contains(t, buf.String(), "program="+progID.String())
}

func TestNewLedgerChainID(t *testing.T) {
	require.Panics(t, func() {
		app.NewLedger("x", nil, app.NewRouter())
	})
}
