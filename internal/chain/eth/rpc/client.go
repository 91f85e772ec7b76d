// Package rpc provides a minimal JSON-RPC 2.0 client for Ethereum wallet endpoints.
package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mrz1836/conduit/internal/chain"
	"github.com/mrz1836/conduit/internal/metrics"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

var (
	// ErrRPCResponse indicates an invalid RPC response.
	ErrRPCResponse = &cerr.ConduitError{
		Code:     "RPC_INVALID_RESPONSE",
		Message:  "invalid RPC response",
		ExitCode: cerr.ExitGeneral,
	}

	// ErrInvalidHexNumber indicates an invalid hex number.
	ErrInvalidHexNumber = &cerr.ConduitError{
		Code:     "RPC_INVALID_HEX",
		Message:  "invalid hex number",
		ExitCode: cerr.ExitInput,
	}
)

// JSON-RPC error codes the adapters react to.
const (
	CodeMethodNotFound    = -32601
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeChainDisconnected = 4901
)

// Client is a minimal Ethereum JSON-RPC client.
type Client struct {
	url        string
	kind       string
	httpClient *http.Client
	limiter    *chain.RateLimiter
	idCounter  atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRateLimiter throttles requests per endpoint.
func WithRateLimiter(l *chain.RateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithMetricsLabel sets the label RPC calls are recorded under.
func WithMetricsLabel(kind string) Option {
	return func(c *Client) { c.kind = kind }
}

// NewClient creates a new RPC client.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		kind:       "injected",
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint URL.
func (c *Client) URL() string {
	return c.url
}

// request represents a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// response represents a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is an error object returned by the endpoint.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// IsCode reports whether err is an endpoint error with the given code.
func IsCode(err error, code int) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}

// Call performs a JSON-RPC call.
// Transport failures wrap errors.ErrNetworkError; endpoint errors are returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params ...any) (result json.RawMessage, err error) {
	start := time.Now()
	defer func() {
		metrics.Global.RecordRPCCall(c.kind, time.Since(start), err)
	}()

	if err = c.limiter.Wait(ctx, c.url); err != nil {
		return nil, err
	}

	if params == nil {
		params = []any{}
	}

	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.idCounter.Add(1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, cerr.WithCause(cerr.ErrNetworkError, fmt.Errorf("sending %s: %w", method, err))
	}
	// Body.Close error is intentionally ignored as it only fails if the
	// connection is already broken, and there's no recovery action.
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode == http.StatusTooManyRequests {
		after := chain.ParseRetryAfter(httpResp.Header.Get("Retry-After"))
		return nil, chain.WithRetryAfter(chain.WrapRetryable(chain.ErrRateLimited), after)
	}
	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, cerr.WithCause(cerr.ErrNetworkError, fmt.Errorf("%s: HTTP %d", method, httpResp.StatusCode))
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, cerr.WithCause(cerr.ErrNetworkError, fmt.Errorf("reading response body: %w", err))
	}

	var resp response
	if err = json.Unmarshal(respBody, &resp); err != nil {
		return nil, cerr.WithCause(ErrRPCResponse, err)
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.Result, nil
}

// callHex performs a call whose result is a hex-encoded quantity.
func (c *Client) callHex(ctx context.Context, what, method string, params ...any) (*big.Int, error) {
	result, err := c.Call(ctx, method, params...)
	if err != nil {
		return nil, err
	}

	var hexVal string
	if err := json.Unmarshal(result, &hexVal); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", what, err)
	}

	return parseHexBigInt(hexVal)
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.callHex(ctx, "chain ID", "eth_chainId")
}

// Accounts returns the accounts the wallet currently exposes.
func (c *Client) Accounts(ctx context.Context) ([]string, error) {
	return c.accounts(ctx, "eth_accounts")
}

// RequestAccounts asks the wallet to expose its accounts, which may prompt the user.
func (c *Client) RequestAccounts(ctx context.Context) ([]string, error) {
	return c.accounts(ctx, "eth_requestAccounts")
}

func (c *Client) accounts(ctx context.Context, method string) ([]string, error) {
	result, err := c.Call(ctx, method)
	if err != nil {
		return nil, err
	}

	var accounts []string
	if err := json.Unmarshal(result, &accounts); err != nil {
		return nil, fmt.Errorf("parsing accounts: %w", err)
	}

	return accounts, nil
}

// CallMsg represents the parameters for eth_call, eth_estimateGas and eth_sendTransaction.
type CallMsg struct {
	From     string   `json:"from,omitempty"`
	To       string   `json:"to"`
	Gas      uint64   `json:"gas,omitempty"`
	GasPrice *big.Int `json:"gasPrice,omitempty"`
	Value    *big.Int `json:"value,omitempty"`
	Data     []byte   `json:"data,omitempty"`
}

// MarshalJSON implements custom JSON marshaling for CallMsg.
func (m CallMsg) MarshalJSON() ([]byte, error) {
	type callMsgJSON struct {
		From     string `json:"from,omitempty"`
		To       string `json:"to,omitempty"`
		Gas      string `json:"gas,omitempty"`
		GasPrice string `json:"gasPrice,omitempty"`
		Value    string `json:"value,omitempty"`
		Data     string `json:"data,omitempty"`
	}

	msg := callMsgJSON{
		From: m.From,
		To:   m.To,
	}

	if m.Gas > 0 {
		msg.Gas = fmt.Sprintf("0x%x", m.Gas)
	}
	if m.GasPrice != nil && m.GasPrice.Sign() > 0 {
		msg.GasPrice = "0x" + m.GasPrice.Text(16)
	}
	if m.Value != nil && m.Value.Sign() > 0 {
		msg.Value = "0x" + m.Value.Text(16)
	}
	if len(m.Data) > 0 {
		msg.Data = "0x" + hex.EncodeToString(m.Data)
	}

	return json.Marshal(msg)
}

// EthCall performs an eth_call.
func (c *Client) EthCall(ctx context.Context, msg CallMsg, block string) ([]byte, error) {
	if block == "" {
		block = "latest"
	}

	result, err := c.Call(ctx, "eth_call", msg, block)
	if err != nil {
		return nil, err
	}

	var hexVal string
	if err := json.Unmarshal(result, &hexVal); err != nil {
		return nil, fmt.Errorf("parsing call result: %w", err)
	}

	return parseHexBytes(hexVal)
}

// EstimateGas estimates the gas needed for a transaction.
func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	n, err := c.callHex(ctx, "gas estimate", "eth_estimateGas", msg)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// SendTransaction asks the wallet to sign and broadcast a transaction from msg.From.
// Returns the transaction hash.
func (c *Client) SendTransaction(ctx context.Context, msg CallMsg) (string, error) {
	result, err := c.Call(ctx, "eth_sendTransaction", msg)
	if err != nil {
		return "", err
	}

	var txHash string
	if err := json.Unmarshal(result, &txHash); err != nil {
		return "", fmt.Errorf("parsing tx hash: %w", err)
	}

	return txHash, nil
}

// Receipt is the subset of a transaction receipt the client exposes.
type Receipt struct {
	TxHash      string
	Status      uint64
	BlockNumber *big.Int
}

// GetTransactionReceipt returns the receipt of a mined transaction,
// or nil without error while the transaction is still pending.
func (c *Client) GetTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	result, err := c.Call(ctx, "eth_getTransactionReceipt", txHash)
	if err != nil {
		return nil, err
	}

	if len(result) == 0 || string(result) == "null" {
		return nil, nil //nolint:nilnil // nil receipt means not yet mined
	}

	var raw struct {
		TransactionHash string `json:"transactionHash"`
		Status          string `json:"status"`
		BlockNumber     string `json:"blockNumber"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("parsing receipt: %w", err)
	}

	status, err := parseHexBigInt(raw.Status)
	if err != nil {
		return nil, err
	}
	block, err := parseHexBigInt(raw.BlockNumber)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		TxHash:      raw.TransactionHash,
		Status:      status.Uint64(),
		BlockNumber: block,
	}, nil
}

// parseHexBigInt parses a hex string (with or without 0x prefix) to big.Int.
func parseHexBigInt(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return big.NewInt(0), nil
	}

	n := new(big.Int)
	if _, ok := n.SetString(s, 16); !ok {
		return nil, ErrInvalidHexNumber
	}

	return n, nil
}

// parseHexBytes parses a hex string to bytes.
func parseHexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return []byte{}, nil
	}
	return hex.DecodeString(s)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
