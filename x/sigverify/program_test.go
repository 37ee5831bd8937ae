package sigverify

import (
	"testing"

	"github.com/iov-one/custody/custodytest"
	"github.com/iov-one/custody/custodytest/assert"
	"github.com/iov-one/custody/errors"
	"github.com/stretchr/testify/require"
)

func TestPrecompile(t *testing.T) {
	payer := custodytest.Key("payer")
	signed, err := Sign(custodytest.Key("alice"), []byte("pay bob"))
	require.NoError(t, err)

	forged := signed
	forged.Message = []byte("pay mallory")

	impostor := signed
	impostor.PublicKey = custodytest.Addr("mallory")

	cases := map[string]struct {
		entries []Entry
		wantErr *errors.Error
	}{
		"valid signature":     {entries: []Entry{signed}},
		"altered message":     {entries: []Entry{forged}, wantErr: ErrInvalidSignature},
		"wrong public key":    {entries: []Entry{impostor}, wantErr: ErrInvalidSignature},
		"one invalid of many": {entries: []Entry{signed, forged}, wantErr: ErrInvalidSignature},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			l := custodytest.NewLedger(t, RegisterRoutes)
			l.Fund(t, payer.PublicKey(), 1)

			ix, err := NewInstruction(tc.entries...)
			require.NoError(t, err)
			assert.IsErr(t, tc.wantErr, l.Exec(t, custodytest.Signers(payer), ix))
		})
	}
}

func TestPrecompileRejectsForeignData(t *testing.T) {
	payer := custodytest.Key("payer")
	l := custodytest.NewLedger(t, RegisterRoutes)
	l.Fund(t, payer.PublicKey(), 1)

	signed, err := Sign(custodytest.Key("alice"), []byte("pay bob"))
	require.NoError(t, err)
	ix, err := NewInstruction(signed)
	require.NoError(t, err)
	// signature instruction index
	ix.Data[OffsetsStart+2] = 0
	ix.Data[OffsetsStart+3] = 0

	assert.IsErr(t, ErrInvalidPacket, l.Exec(t, custodytest.Signers(payer), ix))
}
