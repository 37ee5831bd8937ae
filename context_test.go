package custody

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendermint/tendermint/libs/log"
)

func TestContext(t *testing.T) {
	bg := context.Background()

	// try logger with default
	newLogger := log.NewTMLogger(os.Stdout)
	ctx := WithLogger(bg, newLogger)
	assert.Equal(t, DefaultLogger, GetLogger(bg))
	assert.Equal(t, newLogger, GetLogger(ctx))

	// the clock must be set before use
	assert.False(t, HasBlockTime(ctx))
	assert.Panics(t, func() { BlockTime(ctx) })
	ctx = WithBlockTime(ctx, 1000)
	assert.True(t, HasBlockTime(ctx))
	assert.Equal(t, UnixTime(1000), BlockTime(ctx))

	// changing the info, should modify the logger, but not the time
	ctx2 := WithLogInfo(ctx, "foo", "bar")
	assert.NotEqual(t, GetLogger(ctx), GetLogger(ctx2))
	assert.Equal(t, UnixTime(1000), BlockTime(ctx2))

	// chain id MUST be set exactly once
	assert.Panics(t, func() { GetChainID(ctx) })
	ctx2 = WithChainID(ctx, "my-chain")
	assert.Equal(t, "my-chain", GetChainID(ctx2))
	assert.Panics(t, func() { WithChainID(ctx2, "my-chain") })

	_, ok := GetRent(ctx)
	assert.False(t, ok)
	r, ok := GetRent(WithRent(ctx, DefaultRent))
	assert.True(t, ok)
	assert.Equal(t, DefaultRent, r)
}

func TestInstructionList(t *testing.T) {
	ctx := context.Background()
	_, ok := CurrentInstructionIndex(ctx)
	assert.False(t, ok)
	_, ok = InstructionAt(ctx, 0)
	assert.False(t, ok)

	all := []Instruction{
		{ProgramID: ProgramAddress("first")},
		{ProgramID: ProgramAddress("second")},
	}
	ctx = WithInstructions(ctx, all, 1)
	i, ok := CurrentInstructionIndex(ctx)
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	ix, ok := InstructionAt(ctx, 0)
	assert.True(t, ok)
	assert.Equal(t, ProgramAddress("first"), ix.ProgramID)
	_, ok = InstructionAt(ctx, 2)
	assert.False(t, ok)
	_, ok = InstructionAt(ctx, -1)
	assert.False(t, ok)
}

func TestChainID(t *testing.T) {
	cases := []struct {
		chainID string
		valid   bool
	}{
		{"", false},
		{"foo", false},
		{"special", true},
		{"wish-YOU-88", true},
		{"invalid;;chars", false},
		{"this-chain-id-is-way-too-long", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.valid, IsValidChainID(tc.chainID), tc.chainID)
	}
}
