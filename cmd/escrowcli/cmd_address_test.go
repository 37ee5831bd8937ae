package main

import (
	"fmt"
	"testing"

	"github.com/iov-one/custody/custodytest"
	"github.com/iov-one/custody/x/escrow"
	"github.com/iov-one/custody/x/pool"
	"github.com/iov-one/custody/x/registry"
	"github.com/stretchr/testify/require"
)

func TestAddress(t *testing.T) {
	buyer := custodytest.Addr("buyer")
	seller := custodytest.Addr("seller")
	mint := custodytest.Addr("mint")
	var uid [escrow.UniqueIDLen]byte
	copy(uid[:], "order-1")

	escrowAddr, escrowBump, err := escrow.FindAddress(buyer, seller, true, uid)
	require.NoError(t, err)
	vault, vaultBump, err := escrow.FindTokenAccountAddress(escrowAddr)
	require.NoError(t, err)
	tokenPool, poolBump, err := pool.FindPoolAddress(escrow.TokenAsset(mint))
	require.NoError(t, err)
	record, recordBump, err := pool.FindRecordAddress(buyer, seller, false, uid)
	require.NoError(t, err)
	reg, regBump, err := registry.FindAddress()
	require.NoError(t, err)

	cases := map[string]struct {
		args []string
		want string
	}{
		"escrow": {
			args: []string{"address", "escrow", "--buyer", buyer.String(), "--seller", seller.String(), "--moderator", "--unique-id", "order-1"},
			want: fmt.Sprintf("%s\t%d\n", escrowAddr, escrowBump),
		},
		"escrow vault": {
			args: []string{"address", "escrow-vault", "--escrow", escrowAddr.String()},
			want: fmt.Sprintf("%s\t%d\n", vault, vaultBump),
		},
		"token pool": {
			args: []string{"address", "pool", "--mint", mint.String()},
			want: fmt.Sprintf("%s\t%d\n", tokenPool, poolBump),
		},
		"record": {
			args: []string{"address", "record", "--buyer", buyer.String(), "--seller", seller.String(), "--unique-id", "order-1"},
			want: fmt.Sprintf("%s\t%d\n", record, recordBump),
		},
		"registry": {
			args: []string{"address", "registry"},
			want: fmt.Sprintf("%s\t%d\n", reg, regBump),
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			require.Equal(t, tc.want, mustRun(t, "", tc.args...))
		})
	}
}

func TestAddressErrors(t *testing.T) {
	cases := map[string][]string{
		"missing seller":    {"address", "escrow", "--buyer", custodytest.Addr("buyer").String(), "--unique-id", "x"},
		"invalid buyer":     {"address", "escrow", "--buyer", "not-base58!", "--seller", custodytest.Addr("seller").String(), "--unique-id", "x"},
		"long unique id":    {"address", "record", "--buyer", custodytest.Addr("buyer").String(), "--seller", custodytest.Addr("seller").String(), "--unique-id", "0123456789abcdefghijk"},
		"missing escrow":    {"address", "escrow-vault"},
		"invalid pool mint": {"address", "pool", "--mint", "xyz"},
	}
	for testName, args := range cases {
		t.Run(testName, func(t *testing.T) {
			_, err := run(t, "", args...)
			require.Error(t, err)
		})
	}
}
