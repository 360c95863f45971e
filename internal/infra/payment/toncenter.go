package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/config"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
)

var _ adapter.ChainClient = (*TonCenterClient)(nil)

const defaultTonCenterURL = "https://toncenter.com/api/v2"

// TonCenterClient reads incoming wallet transfers from the toncenter v2 HTTP API.
type TonCenterClient struct {
	baseURL string
	apiKey  string
	wallet  string
	client  *http.Client
}

func NewTonCenterClient(cfg config.TONConfig) *TonCenterClient {
	base := strings.TrimRight(cfg.APIURL, "/")
	if base == "" {
		base = defaultTonCenterURL
	}
	return &TonCenterClient{
		baseURL: base,
		apiKey:  cfg.APIKey,
		wallet:  cfg.WalletAddress,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type tonTransactionsResponse struct {
	OK     bool             `json:"ok"`
	Error  string           `json:"error"`
	Result []tonTransaction `json:"result"`
}

type tonTransaction struct {
	Utime         int64 `json:"utime"`
	TransactionID struct {
		LT   string `json:"lt"`
		Hash string `json:"hash"`
	} `json:"transaction_id"`
	InMsg struct {
		Source  string `json:"source"`
		Value   string `json:"value"`
		Message string `json:"message"`
	} `json:"in_msg"`
}

// IncomingTransfers returns the latest transfers into the wallet that carry a comment.
func (c *TonCenterClient) IncomingTransfers(ctx context.Context, limit int) ([]adapter.Transfer, error) {
	q := url.Values{}
	q.Set("address", c.wallet)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("archival", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/getTransactions?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("toncenter: status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var out tonTransactionsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("toncenter error: %s", out.Error)
	}

	transfers := make([]adapter.Transfer, 0, len(out.Result))
	for _, tx := range out.Result {
		memo := strings.TrimSpace(tx.InMsg.Message)
		if memo == "" || tx.InMsg.Source == "" {
			continue
		}
		nano, err := strconv.ParseInt(tx.InMsg.Value, 10, 64)
		if err != nil || nano <= 0 {
			continue
		}
		transfers = append(transfers, adapter.Transfer{
			Hash:   tx.TransactionID.Hash,
			Memo:   memo,
			Amount: decimal.New(nano, -9),
			From:   tx.InMsg.Source,
			At:     time.Unix(tx.Utime, 0).UTC(),
		})
	}
	return transfers, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
