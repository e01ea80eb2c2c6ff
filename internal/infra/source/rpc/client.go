package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// errUnknownBlock is returned for heights the chain skipped.
var errUnknownBlock = errors.New("unknown block")

type rpcError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Cause   struct {
		Name string `json:"name"`
	} `json:"cause"`
}

type blockResult struct {
	Header struct {
		Height uint64 `json:"height"`
	} `json:"header"`
	Chunks []json.RawMessage `json:"chunks"`
}

// client is a minimal JSON-RPC client for the chain's block method.
type client struct {
	endpoint   string
	httpClient *http.Client
}

func newClient(endpoint string, timeout time.Duration) *client {
	return &client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// finalHeight returns the height of the latest final block.
func (c *client) finalHeight(ctx context.Context) (uint64, error) {
	blk, err := c.block(ctx, map[string]any{"finality": "final"})
	if err != nil {
		return 0, err
	}
	return blk.Header.Height, nil
}

// blockAt fetches the block at height.
func (c *client) blockAt(ctx context.Context, height uint64) (*blockResult, error) {
	return c.block(ctx, map[string]any{"block_id": height})
}

func (c *client) block(ctx context.Context, params map[string]any) (*blockResult, error) {
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"id":      "pulse",
		"method":  "block",
		"params":  params,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp struct {
		Result *blockResult `json:"result"`
		Error  *rpcError    `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if rpcResp.Error != nil {
		if rpcResp.Error.Cause.Name == "UNKNOWN_BLOCK" {
			return nil, errUnknownBlock
		}
		return nil, fmt.Errorf("rpc error: %s %s", rpcResp.Error.Name, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil {
		return nil, fmt.Errorf("http %d: empty result", resp.StatusCode)
	}

	return rpcResp.Result, nil
}
