package pool

import (
	"github.com/iov-one/custody"
	"github.com/iov-one/custody/x/escrow"
)

// ReleaseMessage returns the message the parties sign to release a record.
// It is the escrow release message prefixed with the record address, so
// approvals collected for an escrow or another record never match.
func ReleaseMessage(record custody.Address, uniqueID [escrow.UniqueIDLen]byte, targets []escrow.PaymentTarget) ([]byte, error) {
	body, err := escrow.ReleaseMessage(uniqueID, targets)
	if err != nil {
		return nil, err
	}
	message := make([]byte, 0, len(record)+len(body))
	message = append(message, record[:]...)
	return append(message, body...), nil
}
