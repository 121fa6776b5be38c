package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCClient is a JSON-RPC 2.0 client for a full node.
type RPCClient struct {
	url    string
	client *http.Client
	nextID atomic.Uint64
}

func NewRPCClient(url string, client *http.Client) *RPCClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &RPCClient{url: url, client: client}
}

// Call invokes method and decodes its result into out (which may be nil).
// Transport failures wrap ErrUnavailable; node-reported errors are *RPCError.
func (c *RPCClient) Call(ctx context.Context, method string, params []any, out any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", ErrUnavailable, method, resp.Status)
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if rr.Error != nil {
		return rr.Error
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rr.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

func (c *RPCClient) GetObject(ctx context.Context, id string, opts ObjectOptions) (*ObjectData, error) {
	var res ObjectResponse
	if err := c.Call(ctx, "sui_getObject", []any{id, opts}, &res); err != nil {
		return nil, err
	}
	if res.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	return res.Data, nil
}

// MultiGetObjects returns one entry per id, in order. Entries for missing
// objects have a nil Data.
func (c *RPCClient) MultiGetObjects(ctx context.Context, ids []string, opts ObjectOptions) ([]ObjectResponse, error) {
	var res []ObjectResponse
	if len(ids) == 0 {
		return res, nil
	}
	if err := c.Call(ctx, "sui_multiGetObjects", []any{ids, opts}, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *RPCClient) GetOwnedObjects(ctx context.Context, owner, structType string, cursor *string, limit int) (*ObjectsPage, error) {
	query := map[string]any{
		"options": ObjectOptions{ShowContent: true, ShowType: true},
	}
	if structType != "" {
		query["filter"] = map[string]any{"StructType": structType}
	}

	var page ObjectsPage
	if err := c.Call(ctx, "suix_getOwnedObjects", []any{owner, query, cursor, limit}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AllOwnedObjects follows cursors until the last page.
func (c *RPCClient) AllOwnedObjects(ctx context.Context, owner, structType string) ([]ObjectData, error) {
	var (
		out    []ObjectData
		cursor *string
	)
	for {
		page, err := c.GetOwnedObjects(ctx, owner, structType, cursor, 50)
		if err != nil {
			return nil, err
		}
		for _, o := range page.Data {
			if o.Data != nil {
				out = append(out, *o.Data)
			}
		}
		if !page.HasNextPage || page.NextCursor == nil {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

func (c *RPCClient) GetDynamicFields(ctx context.Context, parent string, cursor *string, limit int) (*DynamicFieldsPage, error) {
	var page DynamicFieldsPage
	if err := c.Call(ctx, "suix_getDynamicFields", []any{parent, cursor, limit}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *RPCClient) ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string, opts TxOptions) (*TransactionResponse, error) {
	var res TransactionResponse
	params := []any{encodeBase64(txBytes), signatures, opts, "WaitForLocalExecution"}
	if err := c.Call(ctx, "sui_executeTransactionBlock", params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *RPCClient) GetTransaction(ctx context.Context, digest string, opts TxOptions) (*TransactionResponse, error) {
	var res TransactionResponse
	if err := c.Call(ctx, "sui_getTransactionBlock", []any{digest, opts}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *RPCClient) GetReferenceGasPrice(ctx context.Context) (uint64, error) {
	var price Uint64
	if err := c.Call(ctx, "suix_getReferenceGasPrice", nil, &price); err != nil {
		return 0, err
	}
	return uint64(price), nil
}

func (c *RPCClient) GetCoins(ctx context.Context, owner, coinType string, cursor *string, limit int) (*CoinsPage, error) {
	var page CoinsPage
	if err := c.Call(ctx, "suix_getCoins", []any{owner, coinType, cursor, limit}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
