package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"veritas/internal/anchor/models"
	"veritas/internal/platform/config"
	dErrors "veritas/pkg/domain-errors"
)

// RPCClient anchors roots through a JSON-RPC 2.0 endpoint.
type RPCClient struct {
	baseURL string
	client  *http.Client
}

// NewRPCClient builds a client from ledger config. The HTTP timeout bounds
// each individual submission attempt; retries live with the caller.
func NewRPCClient(cfg config.LedgerConfig) *RPCClient {
	return &RPCClient{
		baseURL: cfg.RPCURL,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type rpcRequest struct {
	JSONRPC string   `json:"jsonrpc"`
	Method  string   `json:"method"`
	Params  []string `json:"params"`
	ID      int      `json:"id"`
}

type rpcResponse struct {
	Result *models.Receipt `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SubmitRoot posts the root to the ledger node. Network failures and server
// errors come back as transient; an explicit RPC error object means the node
// rejected the submission and retrying the same root cannot help.
func (c *RPCClient) SubmitRoot(ctx context.Context, root string) (models.Receipt, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "anchor_submitRoot",
		Params:  []string{root},
		ID:      1,
	})
	if err != nil {
		return models.Receipt{}, dErrors.Wrap(err, dErrors.CodePermanent, "encode ledger request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return models.Receipt{}, dErrors.Wrap(err, dErrors.CodePermanent, "build ledger request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Receipt{}, dErrors.Wrap(err, dErrors.CodeTransient, "ledger rpc unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return models.Receipt{}, dErrors.New(dErrors.CodeTransient,
			fmt.Sprintf("ledger rpc returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return models.Receipt{}, dErrors.New(dErrors.CodePermanent,
			fmt.Sprintf("ledger rpc returned status %d", resp.StatusCode))
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.Receipt{}, dErrors.Wrap(err, dErrors.CodeTransient, "decode ledger response")
	}
	if decoded.Error != nil {
		return models.Receipt{}, dErrors.New(dErrors.CodePermanent,
			fmt.Sprintf("ledger rejected root: %s (code %d)", decoded.Error.Message, decoded.Error.Code))
	}
	if decoded.Result == nil || decoded.Result.TxHash == "" {
		return models.Receipt{}, dErrors.New(dErrors.CodeTransient, "ledger response missing receipt")
	}
	return *decoded.Result, nil
}

// Health reports whether the ledger node is reachable. Any HTTP response
// counts as healthy; only transport failures do not.
func (c *RPCClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("build ledger health request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ledger rpc unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}
