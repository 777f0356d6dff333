package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Transaction lookup statuses reported by the RPC node.
const (
	TxStatusSuccess  = "SUCCESS"
	TxStatusFailed   = "FAILED"
	TxStatusNotFound = "NOT_FOUND"
	TxStatusPending  = "PENDING"
)

// SimulateResult carries the node's dry-run outcome. Err is set when the
// invocation would fail; Ret holds the JSON-encoded return value for
// read-only calls.
type SimulateResult struct {
	Err string          `json:"error,omitempty"`
	Ret json.RawMessage `json:"returnValue,omitempty"`
}

// SendResult is the immediate acknowledgment of a broadcast.
type SendResult struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
}

// TxResult is the polled status of a previously broadcast transaction.
type TxResult struct {
	Status    string `json:"status"`
	LedgerSeq uint32 `json:"ledgerSeq,omitempty"`
}

// RPC is the narrow surface the client needs from a ledger node. Tests
// substitute an in-process fake; production wires the JSON-RPC
// implementation below.
type RPC interface {
	Simulate(ctx context.Context, tx *Transaction) (SimulateResult, error)
	Send(ctx context.Context, tx *Transaction) (SendResult, error)
	GetTransaction(ctx context.Context, txHash string) (TxResult, error)
}

// JSONRPC talks to a soroban-rpc node over JSON-RPC 2.0.
type JSONRPC struct {
	url    string
	client *http.Client
	nextID atomic.Uint64
}

// NewJSONRPC builds a transport against the given node URL.
func NewJSONRPC(url string, timeout time.Duration) *JSONRPC {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &JSONRPC{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type txParams struct {
	Transaction string `json:"transaction"`
	Signature   string `json:"signature,omitempty"`
}

func (c *JSONRPC) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

func encodeTx(tx *Transaction) (txParams, error) {
	payload, err := tx.Payload()
	if err != nil {
		return txParams{}, err
	}
	params := txParams{Transaction: base64.StdEncoding.EncodeToString(payload)}
	if sig := tx.Signature(); len(sig) > 0 {
		params.Signature = base64.StdEncoding.EncodeToString(sig)
	}
	return params, nil
}

func (c *JSONRPC) Simulate(ctx context.Context, tx *Transaction) (SimulateResult, error) {
	params, err := encodeTx(tx)
	if err != nil {
		return SimulateResult{}, err
	}
	var result SimulateResult
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return SimulateResult{}, err
	}
	return result, nil
}

func (c *JSONRPC) Send(ctx context.Context, tx *Transaction) (SendResult, error) {
	params, err := encodeTx(tx)
	if err != nil {
		return SendResult{}, err
	}
	var result SendResult
	if err := c.call(ctx, "sendTransaction", params, &result); err != nil {
		return SendResult{}, err
	}
	return result, nil
}

func (c *JSONRPC) GetTransaction(ctx context.Context, txHash string) (TxResult, error) {
	var result TxResult
	params := map[string]string{"hash": txHash}
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return TxResult{}, err
	}
	return result, nil
}
