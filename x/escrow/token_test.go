package escrow

import (
	"testing"

	"github.com/iov-one/custody"
	"github.com/iov-one/custody/custodytest"
	"github.com/iov-one/custody/custodytest/assert"
	"github.com/iov-one/custody/x/token"
	"github.com/stretchr/testify/require"
)

type tokenEnv struct {
	*env
	mint        custody.Address
	buyerTokens custody.Address
	addr        custody.Address
}

func newTokenEnv(t testing.TB, uid string) *tokenEnv {
	t.Helper()
	e := &tokenEnv{
		env:         newEnv(t),
		mint:        custodytest.Addr("mint"),
		buyerTokens: custodytest.Addr("buyer-tokens"),
	}
	putMint(t, e.env, e.mint)
	putTokenAccount(t, e.env, e.buyerTokens, e.mint, e.buyer.PublicKey(), 5000)

	moderator := e.moderator.PublicKey()
	e.addr = e.initialize(t, &InitializeMsg{
		Moderator:          &moderator,
		UniqueID:           uniqueID(uid),
		RequiredSignatures: 2,
		Asset:              TokenAsset(e.mint),
	})

	ix, err := NewTokenDepositInstruction(e.buyer.PublicKey(), e.addr, e.buyerTokens, 1000)
	require.NoError(t, err)
	require.NoError(t, e.Exec(t, custodytest.Signers(e.buyer), ix))
	return e
}

func (e *tokenEnv) release(t testing.TB, uid string, targets []PaymentTarget) error {
	t.Helper()
	ix, err := NewTokenReleaseInstruction(e.buyer.PublicKey(), e.addr, e.buyer.PublicKey(), e.buyerTokens, &ReleaseMsg{Targets: targets})
	require.NoError(t, err)
	return e.Exec(t, custodytest.Signers(e.buyer), signatures(t, uid, targets, e.buyer, e.seller), ix)
}

func TestTokenEscrow(t *testing.T) {
	e := newTokenEnv(t, "order-1")
	vault, _, err := FindTokenAccountAddress(e.addr)
	require.NoError(t, err)

	require.Equal(t, uint64(1000), e.escrow(t, e.addr).Amount)
	require.Equal(t, uint64(1000), tokenBalance(t, e.env, vault))
	require.Equal(t, uint64(4000), tokenBalance(t, e.env, e.buyerTokens))

	sellerTokens := custodytest.Addr("seller-tokens")
	putTokenAccount(t, e.env, sellerTokens, e.mint, e.seller.PublicKey(), 0)

	targets := []PaymentTarget{{Recipient: sellerTokens, Amount: 700}}
	require.NoError(t, e.release(t, "order-1", targets))

	require.Equal(t, uint64(700), tokenBalance(t, e.env, sellerTokens))
	require.Equal(t, uint64(4300), tokenBalance(t, e.env, e.buyerTokens))
	require.True(t, e.Get(t, vault).IsEmpty())
	require.True(t, e.Get(t, e.addr).IsEmpty())
	// Both accounts returned their rent to the buyer.
	require.Equal(t, uint64(buyerFunds), e.Balance(t, e.buyer.PublicKey()))
}

func TestTokenEscrowMintMismatch(t *testing.T) {
	e := newTokenEnv(t, "order-1")

	otherMint := custodytest.Addr("other-mint")
	putMint(t, e.env, otherMint)
	foreign := custodytest.Addr("foreign-tokens")
	putTokenAccount(t, e.env, foreign, otherMint, e.seller.PublicKey(), 0)

	err := e.release(t, "order-1", []PaymentTarget{{Recipient: foreign, Amount: 700}})
	assert.IsErr(t, ErrTokenMintMismatch, err)
	require.Equal(t, uint64(1000), e.escrow(t, e.addr).Amount)

	// Deposits from an account of another mint are rejected as well.
	source := custodytest.Addr("buyer-other-tokens")
	putTokenAccount(t, e.env, source, otherMint, e.buyer.PublicKey(), 100)
	ix, err := NewTokenDepositInstruction(e.buyer.PublicKey(), e.addr, source, 100)
	require.NoError(t, err)
	assert.IsErr(t, ErrTokenMintMismatch, e.Exec(t, custodytest.Signers(e.buyer), ix))
}

func TestTokenEscrowInitializeWrongMint(t *testing.T) {
	e := newEnv(t)
	mint := custodytest.Addr("mint")
	putMint(t, e, mint)

	msg := &InitializeMsg{UniqueID: uniqueID("order-1"), RequiredSignatures: 1, Asset: TokenAsset(mint)}
	ix, _, err := NewInitializeInstruction(e.buyer.PublicKey(), e.seller.PublicKey(), msg)
	require.NoError(t, err)
	ix.Accounts[3].Address = custodytest.Addr("other-mint")
	assert.IsErr(t, ErrTokenMintMismatch, e.Exec(t, custodytest.Signers(e.buyer), ix))
}

func putMint(t testing.TB, e *env, addr custody.Address) {
	t.Helper()
	acc, err := token.NewMintAccount(&token.Mint{Authority: e.buyer.PublicKey(), Initialized: true},
		custody.DefaultRent.MinimumBalance(token.MintLen))
	require.NoError(t, err)
	e.Put(t, addr, acc)
}

func putTokenAccount(t testing.TB, e *env, addr, mint, owner custody.Address, amount uint64) {
	t.Helper()
	acc, err := token.NewTokenAccount(&token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.StateInitialized,
	}, custody.DefaultRent.MinimumBalance(token.AccountLen))
	require.NoError(t, err)
	e.Put(t, addr, acc)
}

func tokenBalance(t testing.TB, e *env, addr custody.Address) uint64 {
	t.Helper()
	acc, err := token.LoadAccount(&custody.AccountInfo{Account: e.Get(t, addr), Key: addr})
	require.NoError(t, err)
	return acc.Amount
}
