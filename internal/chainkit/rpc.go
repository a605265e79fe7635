package chainkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sentrychain/pulse/internal/telemetry"
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// evmAdapter implements Adapter over hand-rolled JSON-RPC, rotating
// across ChainConfig.RPCURLs on transient failure (spec §4.1). One
// evmAdapter instance serves one chain; the struct is parameterized by
// ChainConfig rather than subclassed per chain.
type evmAdapter struct {
	cfg        ChainConfig
	httpClient *http.Client
	guard      *endpointGuard
	next       uint64 // round-robin cursor, advanced via atomic.AddUint64
	metrics    *telemetry.Registry
}

// WithMetrics attaches a telemetry registry so every RPC call records
// its latency and outcome. Optional; a nil registry disables recording.
func WithMetrics(a Adapter, metrics *telemetry.Registry) Adapter {
	if e, ok := a.(*evmAdapter); ok {
		e.metrics = metrics
	}
	return a
}

// NewEVMAdapter builds an Adapter for cfg. httpClient may be nil to use
// a default client with a 10s timeout.
func NewEVMAdapter(cfg ChainConfig, httpClient *http.Client) Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}
	return &evmAdapter{
		cfg:        cfg,
		httpClient: httpClient,
		guard:      newEndpointGuard(rps, burst),
	}
}

func (a *evmAdapter) HeadHeight(ctx context.Context) (uint64, error) {
	var raw json.RawMessage
	if err := a.call(ctx, "eth_blockNumber", nil, &raw); err != nil {
		return 0, err
	}
	return decodeQuantity(raw)
}

func (a *evmAdapter) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	var raw struct {
		Number       string   `json:"number"`
		Hash         string   `json:"hash"`
		ParentHash   string   `json:"parentHash"`
		Timestamp    string   `json:"timestamp"`
		Transactions []string `json:"transactions"`
	}
	params := []interface{}{hexQuantity(number), false}
	if err := a.call(ctx, "eth_getBlockByNumber", params, &raw); err != nil {
		return nil, err
	}
	ts, err := strconv.ParseUint(trimHexPrefix(raw.Timestamp), 16, 64)
	if err != nil {
		return nil, fmt.Errorf("chainkit: parse block timestamp: %w", err)
	}
	return &Block{
		Number:       number,
		Hash:         raw.Hash,
		ParentHash:   raw.ParentHash,
		Timestamp:    time.Unix(int64(ts), 0).UTC(),
		Transactions: raw.Transactions,
	}, nil
}

func (a *evmAdapter) LogsByRange(ctx context.Context, fromBlock, toBlock uint64, addresses []string, topics []string) ([]Log, error) {
	filter := map[string]interface{}{
		"fromBlock": hexQuantity(fromBlock),
		"toBlock":   hexQuantity(toBlock),
	}
	if len(addresses) > 0 {
		filter["address"] = addresses
	}
	if len(topics) > 0 {
		filter["topics"] = topics
	}

	var raw []struct {
		Address         string   `json:"address"`
		Topics          []string `json:"topics"`
		Data            string   `json:"data"`
		BlockNumber     string   `json:"blockNumber"`
		TransactionHash string   `json:"transactionHash"`
		LogIndex        string   `json:"logIndex"`
		Removed         bool     `json:"removed"`
	}
	if err := a.call(ctx, "eth_getLogs", []interface{}{filter}, &raw); err != nil {
		return nil, err
	}

	logs := make([]Log, 0, len(raw))
	for _, r := range raw {
		blockNum, _ := strconv.ParseUint(trimHexPrefix(r.BlockNumber), 16, 64)
		logIdx, _ := strconv.ParseUint(trimHexPrefix(r.LogIndex), 16, 64)
		logs = append(logs, Log{
			Address:         r.Address,
			Topics:          r.Topics,
			Data:            r.Data,
			BlockNumber:     blockNum,
			TransactionHash: r.TransactionHash,
			LogIndex:        logIdx,
			Removed:         r.Removed,
		})
	}
	return logs, nil
}

func (a *evmAdapter) ReceiptByTx(ctx context.Context, txHash string) (*Receipt, error) {
	var raw struct {
		TransactionHash string `json:"transactionHash"`
		BlockNumber     string `json:"blockNumber"`
		Status          string `json:"status"`
		GasUsed         string `json:"gasUsed"`
		Logs            []struct {
			Address         string   `json:"address"`
			Topics          []string `json:"topics"`
			Data            string   `json:"data"`
			BlockNumber     string   `json:"blockNumber"`
			TransactionHash string   `json:"transactionHash"`
			LogIndex        string   `json:"logIndex"`
			Removed         bool     `json:"removed"`
		} `json:"logs"`
	}
	if err := a.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &raw); err != nil {
		return nil, err
	}

	blockNum, _ := strconv.ParseUint(trimHexPrefix(raw.BlockNumber), 16, 64)
	status, _ := strconv.ParseUint(trimHexPrefix(raw.Status), 16, 64)
	gasUsed, _ := strconv.ParseUint(trimHexPrefix(raw.GasUsed), 16, 64)

	logs := make([]Log, 0, len(raw.Logs))
	for _, l := range raw.Logs {
		bn, _ := strconv.ParseUint(trimHexPrefix(l.BlockNumber), 16, 64)
		li, _ := strconv.ParseUint(trimHexPrefix(l.LogIndex), 16, 64)
		logs = append(logs, Log{
			Address: l.Address, Topics: l.Topics, Data: l.Data,
			BlockNumber: bn, TransactionHash: l.TransactionHash,
			LogIndex: li, Removed: l.Removed,
		})
	}

	return &Receipt{
		TransactionHash: raw.TransactionHash,
		BlockNumber:     blockNum,
		Status:          status,
		GasUsed:         gasUsed,
		Logs:            logs,
	}, nil
}

// call performs one JSON-RPC method with up to MaxRetries retries
// (MaxRetries+1 attempts in all), rotating across cfg.RPCURLs between
// attempts and honoring each
// endpoint's circuit breaker and rate limiter (spec §4.1).
func (a *evmAdapter) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if len(a.cfg.RPCURLs) == 0 {
		return fmt.Errorf("chainkit: no RPC endpoints configured for chain %d", a.cfg.ChainID)
	}

	base := atomic.AddUint64(&a.next, 1) - 1

	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := a.sleepBackoff(ctx, attempt); err != nil {
				return err
			}
		}

		endpoint := a.pickEndpoint(base, attempt)
		start := time.Now()
		result, err := a.doOnce(ctx, endpoint, method, params)
		if a.metrics != nil {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			a.metrics.ObserveRPCLatency(method, outcome, float64(time.Since(start).Milliseconds()))
		}
		if err == nil {
			return json.Unmarshal(result, out)
		}
		lastErr = err
	}
	return fmt.Errorf("chainkit: %s failed after %d attempts: %w", method, a.cfg.MaxRetries+1, lastErr)
}

// pickEndpoint round-robins through RPCURLs, advancing one slot per
// attempt so a retry never reuses the endpoint that just failed; base
// is fixed for the whole call so successive calls also rotate their
// starting endpoint.
func (a *evmAdapter) pickEndpoint(base uint64, attempt int) string {
	return a.cfg.RPCURLs[(int(base)+attempt)%len(a.cfg.RPCURLs)]
}

func (a *evmAdapter) doOnce(ctx context.Context, endpoint, method string, params []interface{}) (json.RawMessage, error) {
	if err := a.guard.limiterFor(endpoint).Wait(ctx); err != nil {
		return nil, fmt.Errorf("chainkit: rate limit wait: %w", err)
	}

	cb := a.guard.breakerFor(endpoint)
	result, err := cb.Execute(func() (interface{}, error) {
		return a.send(ctx, endpoint, method, params)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("chainkit: endpoint %s circuit open: %w", hostOf(endpoint), err)
		}
		return nil, err
	}
	return result.(json.RawMessage), nil
}

func (a *evmAdapter) send(ctx context.Context, endpoint, method string, params []interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chainkit: request to %s failed: %w", hostOf(endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfterDuration(resp.Header.Get("Retry-After"))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("chainkit: %s rate limited (429)", hostOf(endpoint))
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("chainkit: %s returned HTTP %d", hostOf(endpoint), resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("chainkit: decode response from %s: %w", hostOf(endpoint), err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// sleepBackoff waits an exponential-with-jitter delay before retrying,
// capped at cfg.MaxBackoff (spec §4.1).
func (a *evmAdapter) sleepBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
	if backoff > a.cfg.MaxBackoff {
		backoff = a.cfg.MaxBackoff
	}
	jitter := time.Duration(rand.Float64() * 0.2 * float64(backoff))
	select {
	case <-time.After(backoff + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfterDuration parses a Retry-After header (seconds form only;
// EVM RPC providers don't send the HTTP-date form) and falls back to a
// one-second wait when absent or malformed.
func retryAfterDuration(header string) time.Duration {
	if header == "" {
		return time.Second
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return time.Second
	}
	return time.Duration(secs) * time.Second
}

func hexQuantity(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func decodeQuantity(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("chainkit: decode quantity: %w", err)
	}
	return strconv.ParseUint(trimHexPrefix(s), 16, 64)
}
