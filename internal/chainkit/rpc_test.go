package chainkit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func rpcServer(t *testing.T, handler func(method string) (interface{}, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		result, rpcErr := handler(req.Method)
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
		if rpcErr == nil {
			raw, _ := json.Marshal(result)
			resp.Result = raw
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func testConfig(urls ...string) ChainConfig {
	cfg := DefaultChainConfig(1, urls)
	cfg.MaxBackoff = 10 * time.Millisecond
	return cfg
}

func TestHeadHeightDecodesHexQuantity(t *testing.T) {
	srv := rpcServer(t, func(method string) (interface{}, *rpcError) {
		if method != "eth_blockNumber" {
			t.Fatalf("unexpected method %s", method)
		}
		return "0x10d4f", nil
	})
	defer srv.Close()

	a := NewEVMAdapter(testConfig(srv.URL), nil)
	height, err := a.HeadHeight(context.Background())
	if err != nil {
		t.Fatalf("HeadHeight returned error: %v", err)
	}
	if height != 0x10d4f {
		t.Errorf("height = %d, want %d", height, uint64(0x10d4f))
	}
}

func TestBlockByNumberParsesFields(t *testing.T) {
	srv := rpcServer(t, func(method string) (interface{}, *rpcError) {
		return map[string]interface{}{
			"number":       "0x1",
			"hash":         "0xabc",
			"parentHash":   "0xdef",
			"timestamp":    "0x5f5e100",
			"transactions": []string{"0x1", "0x2"},
		}, nil
	})
	defer srv.Close()

	a := NewEVMAdapter(testConfig(srv.URL), nil)
	block, err := a.BlockByNumber(context.Background(), 1)
	if err != nil {
		t.Fatalf("BlockByNumber returned error: %v", err)
	}
	if block.Hash != "0xabc" || len(block.Transactions) != 2 {
		t.Errorf("unexpected block: %+v", block)
	}
}

func TestLogsByRangeDecodesEntries(t *testing.T) {
	srv := rpcServer(t, func(method string) (interface{}, *rpcError) {
		return []map[string]interface{}{
			{
				"address":         "0xtoken",
				"topics":          []string{"0xtopic"},
				"data":            "0x00",
				"blockNumber":     "0x2",
				"transactionHash": "0xtx",
				"logIndex":        "0x0",
				"removed":         false,
			},
		}, nil
	})
	defer srv.Close()

	a := NewEVMAdapter(testConfig(srv.URL), nil)
	logs, err := a.LogsByRange(context.Background(), 1, 2, []string{"0xtoken"}, nil)
	if err != nil {
		t.Fatalf("LogsByRange returned error: %v", err)
	}
	if len(logs) != 1 || logs[0].BlockNumber != 2 {
		t.Errorf("unexpected logs: %+v", logs)
	}
}

func TestReceiptByTxParsesStatus(t *testing.T) {
	srv := rpcServer(t, func(method string) (interface{}, *rpcError) {
		return map[string]interface{}{
			"transactionHash": "0xtx",
			"blockNumber":     "0x3",
			"status":          "0x1",
			"gasUsed":         "0x5208",
			"logs":            []interface{}{},
		}, nil
	})
	defer srv.Close()

	a := NewEVMAdapter(testConfig(srv.URL), nil)
	receipt, err := a.ReceiptByTx(context.Background(), "0xtx")
	if err != nil {
		t.Fatalf("ReceiptByTx returned error: %v", err)
	}
	if receipt.Status != 1 || receipt.GasUsed != 0x5208 {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
}

func TestCallRotatesToSecondEndpointOnFailure(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	var goodHits int32
	good := rpcServer(t, func(method string) (interface{}, *rpcError) {
		atomic.AddInt32(&goodHits, 1)
		return "0x1", nil
	})
	defer good.Close()

	a := NewEVMAdapter(testConfig(bad.URL, good.URL), nil)
	height, err := a.HeadHeight(context.Background())
	if err != nil {
		t.Fatalf("HeadHeight returned error: %v", err)
	}
	if height != 1 {
		t.Errorf("height = %d, want 1", height)
	}
	if atomic.LoadInt32(&goodHits) == 0 {
		t.Error("expected the rotation to eventually reach the healthy endpoint")
	}
}

func TestCallReturnsErrorAfterExhaustingRetries(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	a := NewEVMAdapter(testConfig(bad.URL), nil)
	_, err := a.HeadHeight(context.Background())
	if err == nil {
		t.Fatal("expected an error once all retries are exhausted")
	}
}

func TestRPCErrorPropagatesMessage(t *testing.T) {
	srv := rpcServer(t, func(method string) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "execution reverted"}
	})
	defer srv.Close()

	a := NewEVMAdapter(testConfig(srv.URL), nil)
	_, err := a.HeadHeight(context.Background())
	if err == nil {
		t.Fatal("expected an rpc error to propagate")
	}
}

func TestRetryAfterDurationParsesSeconds(t *testing.T) {
	if got := retryAfterDuration("5"); got != 5*time.Second {
		t.Errorf("retryAfterDuration(5) = %v, want 5s", got)
	}
	if got := retryAfterDuration(""); got != time.Second {
		t.Errorf("retryAfterDuration(\"\") = %v, want 1s", got)
	}
	if got := retryAfterDuration("not-a-number"); got != time.Second {
		t.Errorf("retryAfterDuration(garbage) = %v, want 1s fallback", got)
	}
}

func TestHexQuantityRoundTrip(t *testing.T) {
	if got := hexQuantity(255); got != "0xff" {
		t.Errorf("hexQuantity(255) = %s, want 0xff", got)
	}
	if got := trimHexPrefix("0xFF"); got != "FF" {
		t.Errorf("trimHexPrefix(0xFF) = %s, want FF", got)
	}
}
