package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	walletAccount = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	otherAccount  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// fakeWallet is a JSON-RPC wallet endpoint whose state tests can mutate.
type fakeWallet struct {
	mu              sync.Mutex
	chainID         uint64
	accounts        []string
	down            bool
	refuseRequest   bool
	sendResult      any
	receiptStatus   string
	calls           map[string]int
	lastSendPayload map[string]any

	server *httptest.Server
}

func newFakeWallet(t *testing.T, chainID uint64, accounts ...string) *fakeWallet {
	t.Helper()
	w := &fakeWallet{
		chainID:    chainID,
		accounts:   accounts,
		sendResult: "0x" + fmt.Sprintf("%064x", 0xabc),
		calls:      make(map[string]int),
	}
	w.server = httptest.NewServer(http.HandlerFunc(w.serve))
	t.Cleanup(w.server.Close)
	return w
}

func (w *fakeWallet) URL() string { return w.server.URL }

func (w *fakeWallet) set(fn func(w *fakeWallet)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w)
}

func (w *fakeWallet) callCount(method string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[method]
}

func (w *fakeWallet) serve(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls[req.Method]++

	if w.down {
		rw.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case "eth_chainId":
		resp["result"] = fmt.Sprintf("0x%x", w.chainID)
	case "eth_accounts":
		resp["result"] = w.accounts
	case "eth_requestAccounts":
		if w.refuseRequest {
			resp["error"] = map[string]any{"code": 4001, "message": "user rejected"}
		} else {
			resp["result"] = w.accounts
		}
	case "eth_call":
		resp["result"] = "0x" + fmt.Sprintf("%064x", 7)
	case "eth_sendTransaction":
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &w.lastSendPayload)
		}
		resp["result"] = w.sendResult
	case "eth_getTransactionReceipt":
		if w.receiptStatus == "" {
			resp["result"] = nil
		} else {
			resp["result"] = map[string]any{
				"transactionHash": "0x" + fmt.Sprintf("%064x", 0xabc),
				"status":          w.receiptStatus,
				"blockNumber":     "0x10",
			}
		}
	default:
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}
	_ = json.NewEncoder(rw).Encode(resp)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// recorder collects events delivered to a handler.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) waitFor(t *testing.T, n int) []Event {
	t.Helper()
	assert.Eventually(t, func() bool { return len(r.snapshot()) >= n }, 5*time.Second, 10*time.Millisecond)
	return r.snapshot()
}
