package clients

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"private-lending/internal/services"
)

const roflOracleABI = `[{"inputs":[],"name":"getLastObservation","outputs":[{"name":"value","type":"uint128"},{"name":"block","type":"uint256"}],"stateMutability":"view","type":"function"}]`

var roflOracle = mustParseABI(roflOracleABI)

// RoflOracleClient reads observations published by ROFL oracle contracts
type RoflOracleClient struct {
	caller ContractCaller
}

// NewRoflOracleClient creates a reader over caller, normally an *ethclient.Client
func NewRoflOracleClient(caller ContractCaller) *RoflOracleClient {
	return &RoflOracleClient{caller: caller}
}

// GetLastObservation returns the oracle's last value and the block it was observed at
func (c *RoflOracleClient) GetLastObservation(ctx context.Context, oracle common.Address) (*services.RoflObservation, error) {
	out, err := call(ctx, c.caller, roflOracle, oracle, "getLastObservation")
	if err != nil {
		return nil, err
	}
	if len(out) != 2 {
		return nil, fmt.Errorf("getLastObservation returned %d values", len(out))
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected value type %T", out[0])
	}
	block, ok := out[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected block type %T", out[1])
	}
	if !block.IsUint64() {
		return nil, fmt.Errorf("observation block %s out of range", block.String())
	}
	return &services.RoflObservation{Value: value, Block: block.Uint64()}, nil
}

// BlockNumber returns the current block of the chain the oracles live on
func (c *RoflOracleClient) BlockNumber(ctx context.Context) (uint64, error) {
	return c.caller.BlockNumber(ctx)
}
