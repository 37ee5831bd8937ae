package escrow

import (
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/errors"
)

// Authorize decides if the signers may release the funds of the agreement
// at the given time.
//
// Before the unlock time, or when there is no timelock, at least
// RequiredSignatures distinct parties must have signed. Once unlocked, only
// the seller signature is required.
func Authorize(a Agreement, signers []custody.Address, now custody.UnixTime) error {
	t := a.GetTerms()
	if t.HasTimelock() && now >= t.UnlockTime {
		if !contains(signers, t.Seller) {
			return errors.Wrap(ErrInsufficientSignatures, "unlocked escrow requires the seller signature")
		}
		return nil
	}

	if t.RequiredSignatures == 0 {
		return errors.Wrapf(ErrInsufficientSignatures, "locked until %s", t.UnlockTime)
	}
	if n := Approvals(t, signers); n < int(t.RequiredSignatures) {
		return errors.Wrapf(ErrInsufficientSignatures, "%d of %d required", n, t.RequiredSignatures)
	}
	return nil
}

// Approvals returns the number of distinct parties among the signers.
func Approvals(t *Terms, signers []custody.Address) int {
	var n int
	for _, p := range t.Parties() {
		if contains(signers, p) {
			n++
		}
	}
	return n
}

func contains(list []custody.Address, a custody.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
