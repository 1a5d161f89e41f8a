package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"coinbase-lob/internal/config"
	"coinbase-lob/pkg/types"
)

// Client is the venue REST API client. It wraps a resty HTTP client with
// rate limiting, retry-on-5xx, and HMAC request signing.
type Client struct {
	http   *resty.Client
	auth   *Auth
	rl     *RateLimiter
	logger *slog.Logger
}

// bookMsg is the wire form of GET /products/{id}/book?level=3. Each row
// is [price, size, order_id], all strings.
type bookMsg struct {
	Sequence int64      `json:"sequence"`
	Bids     [][]string `json:"bids"`
	Asks     [][]string `json:"asks"`
}

// NewClient creates a REST client with rate limiting and retry.
func NewClient(cfg config.Config, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.API.RESTBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		logger: logger.With("component", "rest_client"),
	}
}

// BookSnapshot fetches the full level-3 book for a product. Implements
// the reconciler's SnapshotFetcher.
func (c *Client) BookSnapshot(ctx context.Context, productID string) (*types.BookSnapshot, error) {
	if err := c.rl.Private.Wait(ctx); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/products/%s/book", productID)
	headers, err := c.auth.RESTHeaders("GET", path+"?level=3", "")
	if err != nil {
		return nil, fmt.Errorf("sign book request: %w", err)
	}

	var result bookMsg
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("level", "3").
		SetResult(&result).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get book: status %d: %s", resp.StatusCode(), resp.String())
	}

	snap, err := parseBookMsg(productID, &result)
	if err != nil {
		return nil, fmt.Errorf("parse book: %w", err)
	}

	c.logger.Debug("book snapshot fetched",
		"product", productID,
		"sequence", snap.Sequence,
		"bids", len(snap.Bids),
		"asks", len(snap.Asks),
	)
	return snap, nil
}

// Products lists every product the venue trades. Used at startup to
// validate the configured product ids.
func (c *Client) Products(ctx context.Context) ([]types.Product, error) {
	if err := c.rl.Public.Wait(ctx); err != nil {
		return nil, err
	}

	var result []types.Product
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/products")
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get products: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

func parseBookMsg(productID string, msg *bookMsg) (*types.BookSnapshot, error) {
	bids, err := parseBookRows(msg.Bids)
	if err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}
	asks, err := parseBookRows(msg.Asks)
	if err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}
	return &types.BookSnapshot{
		ProductID: productID,
		Sequence:  msg.Sequence,
		Bids:      bids,
		Asks:      asks,
	}, nil
}

func parseBookRows(rows [][]string) ([]types.SnapshotEntry, error) {
	out := make([]types.SnapshotEntry, 0, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("row %d: want [price, size, order_id], got %d fields", i, len(row))
		}
		price, err := decimal.NewFromString(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d price: %w", i, err)
		}
		size, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d size: %w", i, err)
		}
		out = append(out, types.SnapshotEntry{
			Price:   price,
			Size:    size,
			OrderID: row[2],
		})
	}
	return out, nil
}
