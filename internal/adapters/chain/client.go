// Package chain holds the node-facing collaborator interface and a thin
// JSON-RPC implementation. Only what the engine needs is exposed: head
// height, gas estimation, gas price.
package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CallSpec describes a simulated settlement-contract call.
type CallSpec struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Client is the blockchain-node collaborator surface.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	EstimateGas(ctx context.Context, call CallSpec) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// RPCClient is a minimal JSON-RPC client over HTTP.
type RPCClient struct {
	url  string
	http *http.Client
	id   atomic.Uint64
}

func NewRPCClient(url string, timeout time.Duration) *RPCClient {
	return &RPCClient{url: url, http: &http.Client{Timeout: timeout}}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

func (c *RPCClient) call(ctx context.Context, method string, params ...interface{}) (string, error) {
	payload, err := sonic.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.id.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var rpcResp rpcResponse
	if err := sonic.Unmarshal(body, &rpcResp); err != nil {
		return "", err
	}
	if rpcResp.Error != nil {
		return "", fmt.Errorf("rpc %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if rpcResp.Result == "" {
		return "", errors.New("rpc: empty result")
	}
	return rpcResp.Result, nil
}

func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	result, err := c.call(ctx, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	return hexutil.DecodeUint64(result)
}

func (c *RPCClient) EstimateGas(ctx context.Context, call CallSpec) (uint64, error) {
	arg := map[string]interface{}{
		"from": call.From.Hex(),
		"to":   call.To.Hex(),
	}
	if len(call.Data) > 0 {
		arg["data"] = hexutil.Encode(call.Data)
	}
	if call.Value != nil && call.Value.Sign() > 0 {
		arg["value"] = hexutil.EncodeBig(call.Value)
	}

	result, err := c.call(ctx, "eth_estimateGas", arg, "latest")
	if err != nil {
		return 0, err
	}
	return hexutil.DecodeUint64(result)
}

func (c *RPCClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	result, err := c.call(ctx, "eth_gasPrice")
	if err != nil {
		return nil, err
	}
	return hexutil.DecodeBig(result)
}
