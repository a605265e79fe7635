// Package chainkit implements the EVM chain adapter (spec §4.1, C1):
// a small Adapter interface backed by hand-rolled JSON-RPC over
// net/http, with per-endpoint circuit breaking and rate limiting and
// round-robin rotation on transient failure. Grounded on the teacher's
// exchange provider (internal/provider/kraken_provider.go): circuit
// breaker + rate limiter + http.Client wrapped around hand-rolled
// request/response structs, no heavyweight client SDK.
package chainkit

import (
	"context"
	"time"
)

// Adapter is the chain-facing surface the ingest pipeline needs. All
// calls are context-first since they cross the network.
type Adapter interface {
	HeadHeight(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*Block, error)
	LogsByRange(ctx context.Context, fromBlock, toBlock uint64, addresses []string, topics []string) ([]Log, error)
	ReceiptByTx(ctx context.Context, txHash string) (*Receipt, error)
}

// ChainConfig is a plain data record describing one chain's RPC
// endpoints; evmAdapter is parameterized by it rather than subclassed
// per chain (spec §9 design note).
type ChainConfig struct {
	ChainID      int64
	RPCURLs      []string
	NativeSymbol string
	Decimals     int
	Explorer     string

	MaxRetries int
	MaxBackoff time.Duration

	RateRPS   float64
	RateBurst int
}

// DefaultChainConfig fills in the retry/backoff/rate defaults spec §4.1
// names (3 retries per call, 30s backoff cap).
func DefaultChainConfig(chainID int64, rpcURLs []string) ChainConfig {
	return ChainConfig{
		ChainID:    chainID,
		RPCURLs:    rpcURLs,
		MaxRetries: 3,
		MaxBackoff: 30 * time.Second,
		RateRPS:    5,
		RateBurst:  10,
	}
}

// Block is the subset of eth_getBlockByNumber's result this pipeline
// consumes.
type Block struct {
	Number       uint64
	Hash         string
	ParentHash   string
	Timestamp    time.Time
	Transactions []string
}

// Log is one eth_getLogs entry.
type Log struct {
	Address         string
	Topics          []string
	Data            string
	BlockNumber     uint64
	TransactionHash string
	LogIndex        uint64
	Removed         bool
}

// Receipt is the subset of eth_getTransactionReceipt this pipeline
// consumes.
type Receipt struct {
	TransactionHash string
	BlockNumber     uint64
	Status          uint64
	GasUsed         uint64
	Logs            []Log
}
