package presale_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/fito-presale/internal/presale"
	"github.com/rovshanmuradov/fito-presale/internal/presale/presaletest"
)

var saleAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

func TestNewContractRejectsUnconfiguredAddress(t *testing.T) {
	caller := presaletest.NewCaller(presaletest.State{})

	for _, addr := range []common.Address{
		{},
		common.HexToAddress("0x1234567890123456789012345678901234567890"),
	} {
		_, err := presale.NewContract(addr, caller)
		assert.ErrorIs(t, err, presale.ErrNotConfigured, addr.Hex())
	}

	c, err := presale.NewContract(saleAddr, caller)
	require.NoError(t, err)
	assert.Equal(t, saleAddr, c.Address())
}

func TestContractReads(t *testing.T) {
	raised, _ := new(big.Int).SetString("12500000000000000000", 10)
	caller := presaletest.NewCaller(presaletest.State{
		Paused:       true,
		ForceActive:  true,
		Raised:       raised,
		Participants: big.NewInt(42),
	})
	c, err := presale.NewContract(saleAddr, caller)
	require.NoError(t, err)
	ctx := context.Background()

	paused, err := c.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	force, err := c.ForceActive(ctx)
	require.NoError(t, err)
	assert.True(t, force)

	total, err := c.TotalRaised(ctx)
	require.NoError(t, err)
	assert.Equal(t, raised.String(), total.Dec())

	count, err := c.ParticipantCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), count)
}

func TestContractDecodeErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty result", func(t *testing.T) {
		caller := presaletest.NewCaller(presaletest.State{})
		caller.Raw(presale.MethodPaused, []byte{})
		c, _ := presale.NewContract(saleAddr, caller)

		_, err := c.Paused(ctx)
		var decodeErr *presale.DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, presale.MethodPaused, decodeErr.Method)
		assert.ErrorIs(t, err, presale.ErrEmptyResult)
	})

	t.Run("truncated word", func(t *testing.T) {
		caller := presaletest.NewCaller(presaletest.State{})
		caller.Raw(presale.MethodTotalRaised, []byte{0x01, 0x02})
		c, _ := presale.NewContract(saleAddr, caller)

		_, err := c.TotalRaised(ctx)
		var decodeErr *presale.DecodeError
		assert.ErrorAs(t, err, &decodeErr)
	})

	t.Run("participant count beyond uint64", func(t *testing.T) {
		huge := new(big.Int).Lsh(big.NewInt(1), 70)
		caller := presaletest.NewCaller(presaletest.State{Participants: huge})
		c, _ := presale.NewContract(saleAddr, caller)

		_, err := c.ParticipantCount(ctx)
		var decodeErr *presale.DecodeError
		assert.ErrorAs(t, err, &decodeErr)
	})

	t.Run("transport error is not a decode error", func(t *testing.T) {
		caller := presaletest.NewCaller(presaletest.State{})
		rpcErr := errors.New("connection refused")
		caller.Fail(presale.MethodForceActive, rpcErr)
		c, _ := presale.NewContract(saleAddr, caller)

		_, err := c.ForceActive(ctx)
		assert.ErrorIs(t, err, rpcErr)
		var decodeErr *presale.DecodeError
		assert.False(t, errors.As(err, &decodeErr))
	})
}

func TestCalldata(t *testing.T) {
	referrer := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	data, err := presale.PackBuyTokens(referrer)
	require.NoError(t, err)
	parsed := presale.ABI()
	method, err := parsed.MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, presale.MethodBuyTokens, method.Name)
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, referrer, args[0])

	pause, err := presale.PackSetPaused(true)
	require.NoError(t, err)
	unpause, err := presale.PackSetPaused(false)
	require.NoError(t, err)
	assert.Equal(t, presale.ABI().Methods[presale.MethodPause].ID, pause)
	assert.Equal(t, presale.ABI().Methods[presale.MethodUnpause].ID, unpause)

	force, err := presale.PackSetForceActive(true)
	require.NoError(t, err)
	assert.Len(t, force, 4+32)
	assert.Equal(t, byte(1), force[len(force)-1])
}
