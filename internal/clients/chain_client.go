package clients

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ContractCaller is the subset of ethclient.Client used by the feed readers
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// DialChain connects to the RPC endpoint used for oracle reads
func DialChain(ctx context.Context, rpcURL string, timeout time.Duration) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %v", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read chain id: %v", err)
	}
	log.Printf("🔌 Connected to chain %s", chainID.String())
	return client, nil
}

// call packs method, runs eth_call against address and unpacks the outputs
func call(ctx context.Context, caller ContractCaller, parsedABI abi.ABI, address common.Address, method string) ([]interface{}, error) {
	data, err := parsedABI.Pack(method)
	if err != nil {
		return nil, err
	}
	result, err := caller.CallContract(ctx, ethereum.CallMsg{To: &address, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	unpacked, err := parsedABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %v", method, err)
	}
	if len(unpacked) == 0 {
		return nil, fmt.Errorf("empty result from %s", method)
	}
	return unpacked, nil
}

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}
