package escrow

import (
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

// UniqueIDLen is the size of the caller chosen escrow identifier.
const UniqueIDLen = 20

// Terms are the conditions under which escrowed funds may be released. They
// are shared by every record kind that locks funds behind a signature
// quorum.
type Terms struct {
	Buyer     custody.Address
	Seller    custody.Address
	Moderator *custody.Address
	// RequiredSignatures is the number of distinct parties that must sign
	// a release before the unlock time.
	RequiredSignatures uint8
	// UnlockTime is the moment from which the seller alone may release the
	// funds. Zero disables the timelock.
	UnlockTime custody.UnixTime
	UniqueID   [UniqueIDLen]byte
	// Amount is the balance currently held.
	Amount uint64
}

// Agreement is implemented by all records holding Terms.
type Agreement interface {
	GetTerms() *Terms
}

var _ Agreement = (*Terms)(nil)

// GetTerms implements Agreement.
func (t *Terms) GetTerms() *Terms {
	return t
}

// HasModerator returns true if a third party takes part in the quorum.
func (t *Terms) HasModerator() bool {
	return t.Moderator != nil
}

// Parties returns all addresses that can sign a release.
func (t *Terms) Parties() []custody.Address {
	parties := []custody.Address{t.Buyer, t.Seller}
	if t.Moderator != nil {
		parties = append(parties, *t.Moderator)
	}
	return parties
}

// IsParty returns true if the address is the buyer, the seller or the
// moderator.
func (t *Terms) IsParty(a custody.Address) bool {
	for _, p := range t.Parties() {
		if p == a {
			return true
		}
	}
	return false
}

// MaxSignatures returns the number of parties that can sign.
func (t *Terms) MaxSignatures() uint8 {
	return uint8(len(t.Parties()))
}

// HasTimelock returns true if the seller can release alone after the unlock
// time.
func (t *Terms) HasTimelock() bool {
	return t.UnlockTime > 0
}

// Validate checks the parties and the quorum. A zero quorum is accepted only
// when allowed and only together with a timelock, as such an escrow can be
// released by the seller alone once unlocked.
func (t *Terms) Validate(allowTimelockOnly bool) error {
	if t.Buyer.IsZero() {
		return errors.Field("Buyer", errors.ErrEmpty, "required")
	}
	if t.Seller.IsZero() {
		return errors.Field("Seller", errors.ErrEmpty, "required")
	}
	if t.Buyer == t.Seller {
		return errors.Wrap(ErrInvalidParties, "buyer and seller must differ")
	}
	if m := t.Moderator; m != nil {
		if m.IsZero() {
			return errors.Field("Moderator", errors.ErrEmpty, "must not be zero when set")
		}
		if *m == t.Buyer || *m == t.Seller {
			return errors.Wrap(ErrInvalidParties, "moderator must differ from buyer and seller")
		}
	}
	if t.UnlockTime < 0 {
		return errors.Field("UnlockTime", errors.ErrInput, "negative")
	}

	switch {
	case t.RequiredSignatures > t.MaxSignatures():
		return errors.Wrapf(ErrInvalidRequiredSignatures, "%d of %d parties", t.RequiredSignatures, t.MaxSignatures())
	case t.RequiredSignatures == 0 && !allowTimelockOnly:
		return errors.Wrap(ErrInvalidRequiredSignatures, "at least one signature required")
	case t.RequiredSignatures == 0 && !t.HasTimelock():
		return errors.Wrap(ErrInvalidRequiredSignatures, "escrow without quorum requires a timelock")
	}
	return nil
}
