package clients

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller answers eth_call by 4-byte selector
type fakeCaller struct {
	parsed  abi.ABI
	outputs map[string][]interface{}
	block   uint64
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	method, err := f.parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	values, ok := f.outputs[method.Name]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return method.Outputs.Pack(values...)
}

func (f *fakeCaller) BlockNumber(ctx context.Context) (uint64, error) {
	return f.block, nil
}

func TestRoflOracleClient(t *testing.T) {
	caller := &fakeCaller{
		parsed: roflOracle,
		outputs: map[string][]interface{}{
			"getLastObservation": {big.NewInt(123456789), big.NewInt(4242)},
		},
		block: 4250,
	}
	client := NewRoflOracleClient(caller)

	obs, err := client.GetLastObservation(context.Background(), common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Equal(t, "123456789", obs.Value.String())
	assert.Equal(t, uint64(4242), obs.Block)

	current, err := client.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4250), current)
}

func TestChainlinkFeedClient(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	caller := &fakeCaller{
		parsed: aggregatorV3,
		outputs: map[string][]interface{}{
			"decimals": {uint8(8)},
			"latestRoundData": {
				big.NewInt(7), big.NewInt(250000000), big.NewInt(updated.Unix() - 5), big.NewInt(updated.Unix()), big.NewInt(7),
			},
		},
	}
	client := NewChainlinkFeedClient(caller)

	round, err := client.LatestRound(context.Background(), common.HexToAddress("0x02"))
	require.NoError(t, err)
	assert.Equal(t, "250000000", round.Answer.String())
	assert.Equal(t, uint8(8), round.Decimals)
	assert.True(t, round.UpdatedAt.Equal(updated))

	delete(caller.outputs, "latestRoundData")
	_, err = client.LatestRound(context.Background(), common.HexToAddress("0x02"))
	assert.Error(t, err)
}
