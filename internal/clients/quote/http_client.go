package quote

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/meridianswap/trade-engine/internal/domain"
	"github.com/meridianswap/trade-engine/internal/metrics"
)

// HTTPClient is the thin transport wrapper around one quoting backend.
// Retry policy, if any, belongs here or further out — the engine never
// retries on its own.
type HTTPClient struct {
	baseURL string
	kind    domain.SourceKind
	http    *http.Client
}

func NewHTTPClient(baseURL string, kind domain.SourceKind, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		kind:    kind,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Source() domain.SourceKind {
	return c.kind
}

// Wire payload. Integer amounts travel as decimal strings; a missing or
// empty gasUsd means the backend did not estimate gas.
type wireHop struct {
	Pool       string `json:"pool"`
	Exchange   string `json:"exchange"`
	TokenIn    string `json:"tokenIn"`
	TokenOut   string `json:"tokenOut"`
	SwapAmount string `json:"swapAmount"`
}

type wireToken struct {
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

type wireQuote struct {
	InputAmount  string               `json:"inputAmount"`
	OutputAmount string               `json:"outputAmount"`
	AmountInUsd  string               `json:"amountInUsd"`
	AmountOutUsd string               `json:"amountOutUsd"`
	ReceivedUsd  string               `json:"receivedUsd"`
	GasUsd       string               `json:"gasUsd,omitempty"`
	Swaps        [][]wireHop          `json:"swaps"`
	Tokens       map[string]wireToken `json:"tokens"`
}

func (c *HTTPClient) GetQuote(ctx context.Context, networkID uint64, tokenIn, tokenOut common.Address, amountIn *big.Int, opts Options) (*RawQuote, error) {
	start := time.Now()
	q, err := c.getQuote(ctx, networkID, tokenIn, tokenOut, amountIn, opts)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.QuoteRequests.WithLabelValues(c.kind.String(), status).Inc()
	metrics.QuoteDuration.WithLabelValues(c.kind.String()).Observe(time.Since(start).Seconds())
	return q, err
}

func (c *HTTPClient) getQuote(ctx context.Context, networkID uint64, tokenIn, tokenOut common.Address, amountIn *big.Int, opts Options) (*RawQuote, error) {
	params := url.Values{}
	params.Set("chainId", fmt.Sprintf("%d", networkID))
	params.Set("tokenIn", tokenIn.Hex())
	params.Set("tokenOut", tokenOut.Hex())
	params.Set("amountIn", amountIn.String())
	params.Set("saveGas", fmt.Sprintf("%t", opts.SaveGas))
	params.Set("gasInclude", fmt.Sprintf("%t", opts.IncludeGasEstimate))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/route?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrQuoteUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote backend returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return DecodeRawQuote(body)
}

// DecodeRawQuote parses a backend payload into a RawQuote, converting string
// amounts to big integers and validating addresses.
func DecodeRawQuote(body []byte) (*RawQuote, error) {
	var wire wireQuote
	if err := sonic.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode quote payload: %w", err)
	}

	in, ok := new(big.Int).SetString(wire.InputAmount, 10)
	if !ok {
		return nil, ErrQuoteUnavailable
	}
	out, ok := new(big.Int).SetString(wire.OutputAmount, 10)
	if !ok {
		return nil, ErrQuoteUnavailable
	}

	q := &RawQuote{
		InputAmount:  in,
		OutputAmount: out,
		AmountInUSD:  parseUSD(wire.AmountInUsd),
		AmountOutUSD: parseUSD(wire.AmountOutUsd),
		ReceivedUSD:  parseUSD(wire.ReceivedUsd),
		Tokens:       make(map[common.Address]TokenMeta, len(wire.Tokens)),
	}
	if !q.Usable() {
		return nil, ErrQuoteUnavailable
	}

	if wire.GasUsd != "" {
		if gas, err := decimal.NewFromString(wire.GasUsd); err == nil {
			q.GasUSD = &gas
		}
	}

	for addr, meta := range wire.Tokens {
		if !common.IsHexAddress(addr) {
			continue
		}
		a := common.HexToAddress(addr)
		q.Tokens[a] = TokenMeta{Address: a, Decimals: meta.Decimals, Symbol: meta.Symbol}
	}

	q.Hops = make([][]domain.Hop, 0, len(wire.Swaps))
	for _, batch := range wire.Swaps {
		hops := make([]domain.Hop, 0, len(batch))
		for _, h := range batch {
			amount, ok := new(big.Int).SetString(h.SwapAmount, 10)
			if !ok {
				amount = big.NewInt(0)
			}
			hops = append(hops, domain.Hop{
				PoolID:   h.Pool,
				Venue:    h.Exchange,
				TokenIn:  common.HexToAddress(h.TokenIn),
				TokenOut: common.HexToAddress(h.TokenOut),
				Amount:   amount,
			})
		}
		q.Hops = append(q.Hops, hops)
	}

	return q, nil
}

func parseUSD(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
