package escrow

import (
	"fmt"

	"github.com/iov-one/custody/errors"
)

// MaxPaymentTargets limits the number of transfers of a single release.
const MaxPaymentTargets = 4

// validateTargets checks the shape of a payment list without looking at the
// escrow balance.
func validateTargets(targets []PaymentTarget) error {
	if len(targets) == 0 {
		return errors.Wrap(ErrEmptyPaymentTargets, "at least one target required")
	}
	if len(targets) > MaxPaymentTargets {
		return errors.Wrapf(ErrTooManyRecipients, "%d targets, at most %d allowed", len(targets), MaxPaymentTargets)
	}
	for i, t := range targets {
		if t.Recipient.IsZero() {
			return errors.Field(fmt.Sprintf("Targets.%d.Recipient", i), ErrInvalidRecipient, "required")
		}
		if t.Amount == 0 {
			return errors.Field(fmt.Sprintf("Targets.%d.Amount", i), ErrZeroAmount, "must be positive")
		}
	}
	return nil
}

// ValidatePayments checks the targets against the escrowed amount and
// returns their total. When exact is set, the targets must pay out the
// whole amount.
func ValidatePayments(targets []PaymentTarget, amount uint64, exact bool) (uint64, error) {
	if err := validateTargets(targets); err != nil {
		return 0, err
	}
	var total uint64
	for _, t := range targets {
		if total > ^uint64(0)-t.Amount {
			return 0, errors.Wrap(ErrAmountOverflow, "payment total")
		}
		total += t.Amount
	}
	if total > amount {
		return 0, errors.Wrapf(ErrPaymentAmountExceedsEscrow, "paying %d out of %d", total, amount)
	}
	if exact && total != amount {
		return 0, errors.Wrapf(ErrPaymentAmountMismatch, "paying %d out of %d", total, amount)
	}
	return total, nil
}
