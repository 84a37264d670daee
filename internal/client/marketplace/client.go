// Package marketplace wraps the remote marketplace HTTP API: authenticated
// per-account requests, per-category rate limiting, and retry with backoff on
// transient failures.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketsync/internal/config"
	"marketsync/internal/ratelimit"
)

type Client struct {
	host       string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	apiKeys    map[string]string
	maxRetries int
	baseDelay  time.Duration
}

func NewClient(httpClient *http.Client, limiter *ratelimit.Limiter, cfg config.MarketplaceConfig) *Client {
	host := strings.TrimRight(cfg.BaseURL, "/")
	keys := make(map[string]string, len(cfg.Accounts))
	for _, account := range cfg.Accounts {
		keys[account.Scope] = account.APIKey
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Client{
		host:       host,
		httpClient: httpClient,
		limiter:    limiter,
		apiKeys:    keys,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// CategoryFor maps a resource to its rate-limit category. Products share the
// marketplace's offer bucket.
func CategoryFor(resource Resource) ratelimit.Category {
	switch resource {
	case ResourceProducts:
		return ratelimit.CategoryOffers
	case ResourceOrders:
		return ratelimit.CategoryOrders
	case ResourceReturns:
		return ratelimit.CategoryReturns
	case ResourceInvoices:
		return ratelimit.CategoryInvoices
	default:
		return ratelimit.CategoryOffers
	}
}

// FetchPage lists one page of a resource for an account. Pages are 1-based.
func (c *Client) FetchPage(ctx context.Context, resource Resource, account string, page, pageSize int) (*Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/%s", resource), account, CategoryFor(resource), query, nil)
	if err != nil {
		return nil, err
	}
	var envelope pageEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s page %d: %w", resource, page, err)
	}
	out := &Page{Page: page, TotalPages: envelope.TotalPages}
	for _, raw := range envelope.Items {
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", resource, page, err)
		}
		out.Items = append(out.Items, rec)
	}
	return out, nil
}

// FetchByID fetches a single remote entity; used by selective sync.
func (c *Client) FetchByID(ctx context.Context, resource Resource, account, remoteID string) (*Record, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/%s/%s", resource, url.PathEscape(remoteID)), account, CategoryFor(resource), nil, nil)
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(body)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", resource, remoteID, err)
	}
	return &rec, nil
}

// AcknowledgeOrder confirms receipt of a new order.
func (c *Client) AcknowledgeOrder(ctx context.Context, account, remoteID string) error {
	path := fmt.Sprintf("/orders/%s/acknowledge", url.PathEscape(remoteID))
	_, err := c.do(ctx, http.MethodPost, path, account, ratelimit.CategoryOrders, nil, struct{}{})
	return err
}

// UpdateOffer pushes a price/stock change for one offer.
func (c *Client) UpdateOffer(ctx context.Context, account, remoteID string, update OfferUpdate) error {
	path := fmt.Sprintf("/products/%s", url.PathEscape(remoteID))
	_, err := c.do(ctx, http.MethodPatch, path, account, ratelimit.CategoryOffers, nil, update)
	return err
}

// CreateReturn registers a return for an order.
func (c *Client) CreateReturn(ctx context.Context, account string, req ReturnRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/returns", account, ratelimit.CategoryReturns, nil, req)
	return err
}

// CreateInvoice attaches an invoice to an order.
func (c *Client) CreateInvoice(ctx context.Context, account string, req InvoiceRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/invoices", account, ratelimit.CategoryInvoices, nil, req)
	return err
}

// do runs one logical request: rate limit, then up to maxRetries attempts
// with exponential backoff plus jitter on transient failures. The returned
// error satisfies IsRemoteRejected for 4xx validation failures, IsAuthError
// for credential failures, and IsRemoteUnavailable once retries are spent.
func (c *Client) do(ctx context.Context, method, path, account string, category ratelimit.Category, query url.Values, payload any) ([]byte, error) {
	apiKey, ok := c.apiKeys[account]
	if !ok {
		return nil, fmt.Errorf("unknown account scope: %q", account)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx, category); err != nil {
			return nil, err
		}
		body, err := c.request(ctx, method, path, apiKey, query, payload)
		switch classify(err) {
		case DispositionOK:
			return body, nil
		case DispositionFatal:
			return nil, asTerminal(err)
		case DispositionRetrySlow:
			lastErr = err
			if werr := c.sleep(ctx, attempt, 2); werr != nil {
				return nil, werr
			}
		default:
			lastErr = err
			if werr := c.sleep(ctx, attempt, 1); werr != nil {
				return nil, werr
			}
		}
	}
	return nil, &RemoteUnavailableError{Cause: lastErr}
}

// sleep waits baseDelay << attempt, scaled for extended backoff, with up to
// 25% jitter.
func (c *Client) sleep(ctx context.Context, attempt, scale int) error {
	delay := c.baseDelay * time.Duration(scale) * (1 << attempt)
	delay += time.Duration(rand.Int63n(int64(delay)/4 + 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func asTerminal(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
		return &AuthError{Status: apiErr.Status}
	case apiErr.Status >= 400 && apiErr.Status < 500:
		return &RemoteRejectedError{Status: apiErr.Status, Diagnostic: apiErr.Body}
	default:
		return err
	}
}

func (c *Client) request(ctx context.Context, method, path, apiKey string, query url.Values, payload any) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
