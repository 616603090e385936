package clients

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"private-lending/internal/services"
)

const aggregatorV3ABI = `[
	{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"latestRoundData","outputs":[
		{"name":"roundId","type":"uint80"},
		{"name":"answer","type":"int256"},
		{"name":"startedAt","type":"uint256"},
		{"name":"updatedAt","type":"uint256"},
		{"name":"answeredInRound","type":"uint80"}
	],"stateMutability":"view","type":"function"}
]`

var aggregatorV3 = mustParseABI(aggregatorV3ABI)

// ChainlinkFeedClient reads AggregatorV3 price feeds
type ChainlinkFeedClient struct {
	caller ContractCaller
}

// NewChainlinkFeedClient creates a reader over caller, normally an *ethclient.Client
func NewChainlinkFeedClient(caller ContractCaller) *ChainlinkFeedClient {
	return &ChainlinkFeedClient{caller: caller}
}

// LatestRound returns the answer, update time and decimals of a feed
func (c *ChainlinkFeedClient) LatestRound(ctx context.Context, feed common.Address) (*services.ChainlinkRound, error) {
	decOut, err := call(ctx, c.caller, aggregatorV3, feed, "decimals")
	if err != nil {
		return nil, fmt.Errorf("failed to read decimals: %v", err)
	}
	decimals, ok := decOut[0].(uint8)
	if !ok {
		return nil, fmt.Errorf("unexpected decimals type %T", decOut[0])
	}

	out, err := call(ctx, c.caller, aggregatorV3, feed, "latestRoundData")
	if err != nil {
		return nil, fmt.Errorf("failed to read latest round: %v", err)
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("latestRoundData returned %d values", len(out))
	}
	answer, ok := out[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected answer type %T", out[1])
	}
	updatedAt, ok := out[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected updatedAt type %T", out[3])
	}
	return &services.ChainlinkRound{
		Answer:    answer,
		UpdatedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
		Decimals:  decimals,
	}, nil
}
