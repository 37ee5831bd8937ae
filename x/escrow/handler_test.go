package escrow

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/custodytest"
	"github.com/iov-one/custody/custodytest/assert"
	"github.com/iov-one/custody/errors"
	"github.com/iov-one/custody/gconf"
	"github.com/iov-one/custody/x/sigverify"
	"github.com/iov-one/custody/x/system"
	"github.com/iov-one/custody/x/token"
	"github.com/stretchr/testify/require"
)

const buyerFunds = 1e9

type env struct {
	*custodytest.Ledger
	buyer     solana.PrivateKey
	seller    solana.PrivateKey
	moderator solana.PrivateKey
}

func newEnv(t testing.TB) *env {
	t.Helper()
	l := custodytest.NewLedger(t, system.RegisterRoutes, token.RegisterRoutes, sigverify.RegisterRoutes, RegisterRoutes)
	e := &env{
		Ledger:    l,
		buyer:     custodytest.Key("buyer"),
		seller:    custodytest.Key("seller"),
		moderator: custodytest.Key("moderator"),
	}
	l.Fund(t, e.buyer.PublicKey(), buyerFunds)
	l.Fund(t, e.seller.PublicKey(), 1e6)
	l.Fund(t, e.moderator.PublicKey(), 1e6)
	return e
}

func uniqueID(s string) [UniqueIDLen]byte {
	var id [UniqueIDLen]byte
	copy(id[:], s)
	return id
}

// twoOfThree returns the parameters of an escrow of all three parties
// requiring two signatures.
func (e *env) twoOfThree(uid string, unlockHours uint64) *InitializeMsg {
	moderator := e.moderator.PublicKey()
	return &InitializeMsg{
		Moderator:          &moderator,
		UniqueID:           uniqueID(uid),
		RequiredSignatures: 2,
		UnlockHours:        unlockHours,
		Asset:              NativeAsset(),
	}
}

func (e *env) initialize(t testing.TB, msg *InitializeMsg) custody.Address {
	t.Helper()
	ix, addr, err := NewInitializeInstruction(e.buyer.PublicKey(), e.seller.PublicKey(), msg)
	require.NoError(t, err)
	require.NoError(t, e.Exec(t, custodytest.Signers(e.buyer), ix))
	return addr
}

func (e *env) deposit(t testing.TB, escrow custody.Address, amount uint64) {
	t.Helper()
	ix := NewDepositInstruction(e.buyer.PublicKey(), escrow, amount)
	require.NoError(t, e.Exec(t, custodytest.Signers(e.buyer), ix))
}

// signatures returns a precompile instruction carrying the signatures of
// the release message by all keys.
func signatures(t testing.TB, uid string, targets []PaymentTarget, keys ...solana.PrivateKey) custody.Instruction {
	t.Helper()
	message, err := ReleaseMessage(uniqueID(uid), targets)
	require.NoError(t, err)
	var entries []sigverify.Entry
	for _, k := range keys {
		entries = append(entries, mustSign(t, k, message))
	}
	ix, err := sigverify.NewInstruction(entries...)
	require.NoError(t, err)
	return ix
}

func (e *env) release(t testing.TB, initiator solana.PrivateKey, escrow custody.Address, uid string, targets []PaymentTarget, keys ...solana.PrivateKey) error {
	t.Helper()
	ix := NewReleaseInstruction(initiator.PublicKey(), escrow, e.buyer.PublicKey(), &ReleaseMsg{Targets: targets})
	return e.Exec(t, custodytest.Signers(initiator), signatures(t, uid, targets, keys...), ix)
}

func (e *env) escrow(t testing.TB, addr custody.Address) *Escrow {
	t.Helper()
	got, err := LoadEscrow(&custody.AccountInfo{Account: e.Get(t, addr), Key: addr})
	require.NoError(t, err)
	return got
}

func TestInitialize(t *testing.T) {
	e := newEnv(t)
	msg := e.twoOfThree("order-1", 24)
	addr := e.initialize(t, msg)

	rent := custody.DefaultRent.MinimumBalance(AccountLen)
	acc := e.Get(t, addr)
	require.Equal(t, ProgramID, acc.Owner)
	require.Equal(t, rent, acc.Lamports)
	require.Equal(t, uint64(buyerFunds)-rent, e.Balance(t, e.buyer.PublicKey()))

	got := e.escrow(t, addr)
	require.Equal(t, StateActive, got.State)
	require.Equal(t, e.buyer.PublicKey(), got.Buyer)
	require.Equal(t, e.seller.PublicKey(), got.Seller)
	require.Equal(t, e.moderator.PublicKey(), *got.Moderator)
	require.Equal(t, uint8(2), got.RequiredSignatures)
	require.Equal(t, custodytest.GenesisTime.Add(24*time.Hour), got.UnlockTime)
	require.Equal(t, uint64(0), got.Amount)
	require.Equal(t, NativeAsset(), got.Asset)

	// The same terms cannot be used twice.
	ix, _, err := NewInitializeInstruction(e.buyer.PublicKey(), e.seller.PublicKey(), msg)
	require.NoError(t, err)
	assert.IsErr(t, errors.ErrDuplicate, e.Exec(t, custodytest.Signers(e.buyer), ix))
}

func TestInitializeValidation(t *testing.T) {
	moderatorKey := custodytest.Addr("moderator")
	buyer := custodytest.Addr("buyer")

	cases := map[string]struct {
		msg     InitializeMsg
		seller  custody.Address
		mutate  func(*custody.Instruction)
		wantErr error
	}{
		"quorum above parties": {
			msg:     InitializeMsg{RequiredSignatures: 3},
			seller:  custodytest.Addr("seller"),
			wantErr: ErrInvalidRequiredSignatures,
		},
		"zero quorum": {
			msg:     InitializeMsg{UnlockHours: 1},
			seller:  custodytest.Addr("seller"),
			wantErr: ErrInvalidRequiredSignatures,
		},
		"moderator is the buyer": {
			msg:     InitializeMsg{Moderator: &buyer, RequiredSignatures: 1},
			seller:  custodytest.Addr("seller"),
			wantErr: ErrInvalidParties,
		},
		"seller is the buyer": {
			msg:     InitializeMsg{RequiredSignatures: 1},
			seller:  buyer,
			wantErr: ErrInvalidParties,
		},
		"not the derived address": {
			msg:    InitializeMsg{Moderator: &moderatorKey, RequiredSignatures: 2},
			seller: custodytest.Addr("seller"),
			mutate: func(ix *custody.Instruction) {
				ix.Accounts[1].Address = custodytest.Addr("elsewhere")
			},
			wantErr: ErrInvalidAccount,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			e := newEnv(t)
			ix, _, err := NewInitializeInstruction(e.buyer.PublicKey(), tc.seller, &tc.msg)
			require.NoError(t, err)
			if tc.mutate != nil {
				tc.mutate(&ix)
			}
			assert.IsErr(t, tc.wantErr, e.Exec(t, custodytest.Signers(e.buyer), ix))
		})
	}
}

func TestDeposit(t *testing.T) {
	outsider := custodytest.Key("outsider")

	cases := map[string]struct {
		prepare   func(t testing.TB, e *env, addr custody.Address)
		depositor func(e *env) solana.PrivateKey
		amount    uint64
		wantErr   error
	}{
		"buyer deposit": {
			depositor: func(e *env) solana.PrivateKey { return e.buyer },
			amount:    1000,
		},
		"moderator deposit": {
			depositor: func(e *env) solana.PrivateKey { return e.moderator },
			amount:    1000,
		},
		"outsider deposit": {
			depositor: func(*env) solana.PrivateKey { return outsider },
			amount:    1000,
			wantErr:   ErrInvalidSigner,
		},
		"zero amount": {
			depositor: func(e *env) solana.PrivateKey { return e.buyer },
			wantErr:   ErrZeroAmount,
		},
		"more than owned": {
			depositor: func(e *env) solana.PrivateKey { return e.seller },
			amount:    1e7,
			wantErr:   errors.ErrAmount,
		},
		"overflow": {
			prepare: func(t testing.TB, e *env, addr custody.Address) {
				rewrite(t, e, addr, func(es *Escrow) { es.Amount = ^uint64(0) - 10 })
			},
			depositor: func(e *env) solana.PrivateKey { return e.buyer },
			amount:    11,
			wantErr:   ErrAmountOverflow,
		},
		"completed escrow": {
			prepare: func(t testing.TB, e *env, addr custody.Address) {
				rewrite(t, e, addr, func(es *Escrow) { es.State = StateCompleted })
			},
			depositor: func(e *env) solana.PrivateKey { return e.buyer },
			amount:    1,
			wantErr:   ErrAlreadyCompleted,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			e := newEnv(t)
			e.Fund(t, outsider.PublicKey(), 1e6)
			addr := e.initialize(t, e.twoOfThree("order-1", 0))
			if tc.prepare != nil {
				tc.prepare(t, e, addr)
			}
			before := e.escrow(t, addr).Amount

			depositor := tc.depositor(e)
			ix := NewDepositInstruction(depositor.PublicKey(), addr, tc.amount)
			err := e.Exec(t, custodytest.Signers(depositor), ix)
			if tc.wantErr != nil {
				assert.IsErr(t, tc.wantErr, err)
				require.Equal(t, before, e.escrow(t, addr).Amount)
				return
			}
			require.NoError(t, err)
			require.Equal(t, before+tc.amount, e.escrow(t, addr).Amount)
			require.Equal(t, custody.DefaultRent.MinimumBalance(AccountLen)+before+tc.amount, e.Balance(t, addr))
		})
	}
}

func TestDepositUninitialized(t *testing.T) {
	e := newEnv(t)
	addr, _, err := FindAddress(e.buyer.PublicKey(), e.seller.PublicKey(), false, uniqueID("missing"))
	require.NoError(t, err)
	err = e.Exec(t, custodytest.Signers(e.buyer), NewDepositInstruction(e.buyer.PublicKey(), addr, 10))
	assert.IsErr(t, ErrNotInitialized, err)
}

// rewrite changes the stored escrow state.
func rewrite(t testing.TB, e *env, addr custody.Address, fn func(*Escrow)) {
	t.Helper()
	acc := e.Get(t, addr)
	info := &custody.AccountInfo{Account: acc, Key: addr}
	es, err := LoadEscrow(info)
	require.NoError(t, err)
	fn(es)
	require.NoError(t, SaveEscrow(info, es))
	e.Put(t, addr, acc)
}

func TestReleaseWithQuorum(t *testing.T) {
	e := newEnv(t)
	addr := e.initialize(t, e.twoOfThree("order-1", 0))
	e.deposit(t, addr, 1000)

	recipientA := custodytest.Addr("recipient-a")
	recipientB := custodytest.Addr("recipient-b")
	targets := []PaymentTarget{{Recipient: recipientA, Amount: 600}, {Recipient: recipientB, Amount: 400}}

	err := e.release(t, e.buyer, addr, "order-1", targets, e.buyer, e.seller)
	require.NoError(t, err)

	require.Equal(t, uint64(600), e.Balance(t, recipientA))
	require.Equal(t, uint64(400), e.Balance(t, recipientB))
	require.True(t, e.Get(t, addr).IsEmpty())
	// The rent of the escrow account was returned.
	require.Equal(t, uint64(buyerFunds-1000), e.Balance(t, e.buyer.PublicKey()))
}

func TestReleaseInsufficientSignatures(t *testing.T) {
	e := newEnv(t)
	addr := e.initialize(t, e.twoOfThree("order-1", 0))
	e.deposit(t, addr, 1000)

	targets := []PaymentTarget{
		{Recipient: custodytest.Addr("recipient-a"), Amount: 600},
		{Recipient: custodytest.Addr("recipient-b"), Amount: 400},
	}
	err := e.release(t, e.buyer, addr, "order-1", targets, e.buyer)
	assert.IsErr(t, ErrInsufficientSignatures, err)

	got := e.escrow(t, addr)
	require.Equal(t, StateActive, got.State)
	require.Equal(t, uint64(1000), got.Amount)
	require.Equal(t, uint64(0), e.Balance(t, custodytest.Addr("recipient-a")))
}

func TestReleaseAfterUnlock(t *testing.T) {
	e := newEnv(t)
	addr := e.initialize(t, e.twoOfThree("order-1", 1))
	e.deposit(t, addr, 1000)

	targets := []PaymentTarget{{Recipient: e.seller.PublicKey(), Amount: 1000}}
	sellerBefore := e.Balance(t, e.seller.PublicKey())

	err := e.release(t, e.seller, addr, "order-1", targets, e.seller)
	assert.IsErr(t, ErrInsufficientSignatures, err)

	e.Advance(time.Hour + time.Second)
	// Signatures of the other parties are not enough once unlocked.
	err = e.release(t, e.buyer, addr, "order-1", targets, e.buyer, e.moderator)
	assert.IsErr(t, ErrInsufficientSignatures, err)

	err = e.release(t, e.seller, addr, "order-1", targets, e.seller)
	require.NoError(t, err)
	require.Equal(t, sellerBefore+1000, e.Balance(t, e.seller.PublicKey()))
	require.True(t, e.Get(t, addr).IsEmpty())
}

func TestReleaseExceedingEscrow(t *testing.T) {
	e := newEnv(t)
	addr := e.initialize(t, e.twoOfThree("order-1", 0))
	e.deposit(t, addr, 1000)

	targets := []PaymentTarget{
		{Recipient: custodytest.Addr("recipient-a"), Amount: 600},
		{Recipient: custodytest.Addr("recipient-b"), Amount: 600},
	}
	// No signature packet at all, payments are validated first.
	ix := NewReleaseInstruction(e.buyer.PublicKey(), addr, e.buyer.PublicKey(), &ReleaseMsg{Targets: targets})
	err := e.Exec(t, custodytest.Signers(e.buyer), ix)
	assert.IsErr(t, ErrPaymentAmountExceedsEscrow, err)
	require.Equal(t, uint64(1000), e.escrow(t, addr).Amount)
}

func TestReleaseRequiresSignaturePacket(t *testing.T) {
	e := newEnv(t)
	addr := e.initialize(t, e.twoOfThree("order-1", 0))
	e.deposit(t, addr, 1000)

	targets := []PaymentTarget{{Recipient: custodytest.Addr("recipient-a"), Amount: 600}}
	ix := NewReleaseInstruction(e.buyer.PublicKey(), addr, e.buyer.PublicKey(), &ReleaseMsg{Targets: targets})

	err := e.Exec(t, custodytest.Signers(e.buyer), ix)
	assert.IsErr(t, ErrMalformedSignaturePacket, err)

	// The packet must immediately precede the release.
	packet := signatures(t, "order-1", targets, e.buyer, e.seller)
	transfer := system.NewTransferInstruction(e.buyer.PublicKey(), e.seller.PublicKey(), 1)
	err = e.Exec(t, custodytest.Signers(e.buyer), packet, transfer, ix)
	assert.IsErr(t, ErrMalformedSignaturePacket, err)
}

func TestReleaseRestrictsSignatures(t *testing.T) {
	e := newEnv(t)
	addr := e.initialize(t, e.twoOfThree("order-1", 0))
	e.deposit(t, addr, 1000)

	targets := []PaymentTarget{{Recipient: custodytest.Addr("recipient-a"), Amount: 1000}}
	message, err := ReleaseMessage(uniqueID("order-1"), targets)
	require.NoError(t, err)
	buyerSig := mustSign(t, e.buyer, message)
	sellerSig := mustSign(t, e.seller, message)
	packet, err := sigverify.NewInstruction(buyerSig, sellerSig)
	require.NoError(t, err)

	msg := &ReleaseMsg{Targets: targets, Signatures: []solana.Signature{buyerSig.Signature}}
	ix := NewReleaseInstruction(e.buyer.PublicKey(), addr, e.buyer.PublicKey(), msg)
	assert.IsErr(t, ErrInsufficientSignatures, e.Exec(t, custodytest.Signers(e.buyer), packet, ix))

	msg.Signatures = append(msg.Signatures, sellerSig.Signature)
	ix = NewReleaseInstruction(e.buyer.PublicKey(), addr, e.buyer.PublicKey(), msg)
	require.NoError(t, e.Exec(t, custodytest.Signers(e.buyer), packet, ix))
}

func TestReleaseTwice(t *testing.T) {
	e := newEnv(t)
	addr := e.initialize(t, e.twoOfThree("order-1", 0))
	e.deposit(t, addr, 1000)

	targets := []PaymentTarget{{Recipient: custodytest.Addr("recipient-a"), Amount: 1000}}
	require.NoError(t, e.release(t, e.buyer, addr, "order-1", targets, e.buyer, e.seller))

	err := e.release(t, e.seller, addr, "order-1", targets, e.buyer, e.seller)
	assert.IsErr(t, ErrNotInitialized, err)
	require.Equal(t, uint64(1000), e.Balance(t, custodytest.Addr("recipient-a")))
}

func TestReleaseReplayAcrossEscrows(t *testing.T) {
	e := newEnv(t)
	first := e.initialize(t, e.twoOfThree("order-1", 0))
	second := e.initialize(t, e.twoOfThree("order-2", 0))
	e.deposit(t, first, 1000)
	e.deposit(t, second, 1000)

	targets := []PaymentTarget{{Recipient: custodytest.Addr("recipient-a"), Amount: 1000}}

	// Signatures collected for the first escrow do not release the second.
	err := e.release(t, e.buyer, second, "order-1", targets, e.buyer, e.seller)
	assert.IsErr(t, ErrInsufficientSignatures, err)

	require.NoError(t, e.release(t, e.buyer, first, "order-1", targets, e.buyer, e.seller))
	require.Equal(t, uint64(1000), e.escrow(t, second).Amount)
}

func TestReleaseRemainderToBuyer(t *testing.T) {
	e := newEnv(t)
	addr := e.initialize(t, e.twoOfThree("order-1", 0))
	e.deposit(t, addr, 1000)

	targets := []PaymentTarget{{Recipient: e.seller.PublicKey(), Amount: 600}}
	sellerBefore := e.Balance(t, e.seller.PublicKey())
	require.NoError(t, e.release(t, e.seller, addr, "order-1", targets, e.buyer, e.seller))

	require.Equal(t, sellerBefore+600, e.Balance(t, e.seller.PublicKey()))
	require.Equal(t, uint64(buyerFunds-600), e.Balance(t, e.buyer.PublicKey()))
}

func TestReleaseAccounts(t *testing.T) {
	outsider := custodytest.Key("outsider")
	recipient := custodytest.Addr("recipient-a")
	targets := []PaymentTarget{{Recipient: recipient, Amount: 1000}}

	cases := map[string]struct {
		initiator func(e *env) solana.PrivateKey
		mutate    func(e *env, escrow custody.Address, ix *custody.Instruction)
		wantErr   error
	}{
		"outsider initiator": {
			initiator: func(*env) solana.PrivateKey { return outsider },
			wantErr:   ErrInvalidSigner,
		},
		"recipient account swapped": {
			initiator: func(e *env) solana.PrivateKey { return e.buyer },
			mutate: func(e *env, _ custody.Address, ix *custody.Instruction) {
				ix.Accounts[3].Address = custodytest.Addr("mallory")
			},
			wantErr: ErrInvalidRecipient,
		},
		"wrong buyer account": {
			initiator: func(e *env) solana.PrivateKey { return e.buyer },
			mutate: func(e *env, _ custody.Address, ix *custody.Instruction) {
				ix.Accounts[2].Address = custodytest.Addr("mallory")
			},
			wantErr: ErrInvalidAccount,
		},
		"missing recipient account": {
			initiator: func(e *env) solana.PrivateKey { return e.buyer },
			mutate: func(e *env, _ custody.Address, ix *custody.Instruction) {
				ix.Accounts = ix.Accounts[:3]
			},
			wantErr: errors.ErrMsg,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			e := newEnv(t)
			e.Fund(t, outsider.PublicKey(), 1e6)
			addr := e.initialize(t, e.twoOfThree("order-1", 0))
			e.deposit(t, addr, 1000)

			initiator := tc.initiator(e)
			ix := NewReleaseInstruction(initiator.PublicKey(), addr, e.buyer.PublicKey(), &ReleaseMsg{Targets: targets})
			if tc.mutate != nil {
				tc.mutate(e, addr, &ix)
			}
			packet := signatures(t, "order-1", targets, e.buyer, e.seller)
			assert.IsErr(t, tc.wantErr, e.Exec(t, custodytest.Signers(initiator), packet, ix))
			require.Equal(t, uint64(1000), e.escrow(t, addr).Amount)
		})
	}
}

func TestReleaseTooManyTargets(t *testing.T) {
	e := newEnv(t)
	addr := e.initialize(t, e.twoOfThree("order-1", 0))
	e.deposit(t, addr, 1000)

	var targets []PaymentTarget
	for _, name := range []string{"r1", "r2", "r3", "r4", "r5"} {
		targets = append(targets, PaymentTarget{Recipient: custodytest.Addr(name), Amount: 100})
	}
	err := e.release(t, e.seller, addr, "order-1", targets, e.buyer, e.seller)
	assert.IsErr(t, ErrTooManyRecipients, err)
	require.False(t, errors.ErrMsg.Is(err))
	require.Equal(t, uint64(1000), e.escrow(t, addr).Amount)
}

func TestExactTotalConfiguration(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, gconf.Save(e.DB, "escrow", &Configuration{ExactTotal: true}))
	addr := e.initialize(t, e.twoOfThree("order-1", 0))
	e.deposit(t, addr, 1000)

	partial := []PaymentTarget{{Recipient: e.seller.PublicKey(), Amount: 600}}
	err := e.release(t, e.seller, addr, "order-1", partial, e.buyer, e.seller)
	assert.IsErr(t, ErrPaymentAmountMismatch, err)

	full := []PaymentTarget{
		{Recipient: e.seller.PublicKey(), Amount: 600},
		{Recipient: e.moderator.PublicKey(), Amount: 400},
	}
	require.NoError(t, e.release(t, e.seller, addr, "order-1", full, e.buyer, e.seller))
}

func TestTimelockOnlyEscrow(t *testing.T) {
	e := newEnv(t)
	msg := &InitializeMsg{UniqueID: uniqueID("order-1"), UnlockHours: 48, Asset: NativeAsset()}

	ix, _, err := NewInitializeInstruction(e.buyer.PublicKey(), e.seller.PublicKey(), msg)
	require.NoError(t, err)
	assert.IsErr(t, ErrInvalidRequiredSignatures, e.Exec(t, custodytest.Signers(e.buyer), ix))

	require.NoError(t, gconf.Save(e.DB, "escrow", &Configuration{AllowTimelockOnly: true}))
	addr := e.initialize(t, msg)
	e.deposit(t, addr, 1000)

	targets := []PaymentTarget{{Recipient: e.seller.PublicKey(), Amount: 1000}}
	err = e.release(t, e.buyer, addr, "order-1", targets, e.buyer, e.seller)
	assert.IsErr(t, ErrInsufficientSignatures, err)

	e.Advance(48 * time.Hour)
	require.NoError(t, e.release(t, e.seller, addr, "order-1", targets, e.seller))
}
