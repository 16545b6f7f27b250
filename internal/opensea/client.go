package opensea

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL   = "https://api.opensea.io"
	defaultPageLimit = 100
	// defaultPageDelay keeps paginated walks under the API rate limit.
	defaultPageDelay = 250 * time.Millisecond
)

var (
	ErrMissingAPIKey = errors.New("opensea: api key is required")
	ErrNotFound      = errors.New("opensea: not found")
)

// StatusError is a non-2xx API response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("opensea: status %d: %s", e.Status, e.Body)
}

// Client talks to the OpenSea v2 REST API.
type Client struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	pageDelay time.Duration
	logger    *slog.Logger
}

// Option tunes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different host; tests use it.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithHTTPClient swaps the underlying transport.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithPageDelay overrides the inter-page rate-limit delay.
func WithPageDelay(d time.Duration) Option { return func(c *Client) { c.pageDelay = d } }

func NewClient(apiKey string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		baseURL:   defaultBaseURL,
		apiKey:    apiKey,
		http:      &http.Client{Timeout: 30 * time.Second},
		pageDelay: defaultPageDelay,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("opensea: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("opensea: read %s: %w", path, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("opensea: decode %s: %w", path, err)
	}
	return nil
}

type listingsPage struct {
	Listings []Listing `json:"listings"`
	Next     string    `json:"next"`
}

// BestListingsByCollection walks the collection's best listings page by
// page, invoking fn per page. fn returning an error stops the walk.
func (c *Client) BestListingsByCollection(ctx context.Context, slug string, fn func([]Listing) error) error {
	cursor := ""
	for {
		query := url.Values{"limit": {strconv.Itoa(defaultPageLimit)}}
		if cursor != "" {
			query.Set("next", cursor)
		}
		var page listingsPage
		if err := c.get(ctx, "/api/v2/listings/collection/"+slug+"/best", query, &page); err != nil {
			return err
		}
		if len(page.Listings) > 0 {
			if err := fn(page.Listings); err != nil {
				return err
			}
		}
		if page.Next == "" {
			return nil
		}
		cursor = page.Next
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pageDelay):
		}
	}
}

type eventsPage struct {
	Events []Event `json:"asset_events"`
	Next   string  `json:"next"`
}

// EventsByCollection walks the collection's events inside [after,
// before], invoking fn per page.
func (c *Client) EventsByCollection(ctx context.Context, slug string, after, before time.Time, eventTypes []string, fn func([]Event) error) error {
	return c.walkEvents(ctx, "/api/v2/events/collection/"+slug, after, before, eventTypes, fn)
}

// EventsByNFT walks one token's events inside [after, before].
func (c *Client) EventsByNFT(ctx context.Context, chain, contract, identifier string, after, before time.Time, eventTypes []string, fn func([]Event) error) error {
	path := fmt.Sprintf("/api/v2/events/chain/%s/contract/%s/nfts/%s", chain, contract, identifier)
	return c.walkEvents(ctx, path, after, before, eventTypes, fn)
}

func (c *Client) walkEvents(ctx context.Context, path string, after, before time.Time, eventTypes []string, fn func([]Event) error) error {
	cursor := ""
	for {
		query := url.Values{}
		if !after.IsZero() {
			query.Set("after", strconv.FormatInt(after.Unix(), 10))
		}
		if !before.IsZero() {
			query.Set("before", strconv.FormatInt(before.Unix(), 10))
		}
		for _, t := range eventTypes {
			query.Add("event_type", t)
		}
		if cursor != "" {
			query.Set("next", cursor)
		}

		var page eventsPage
		if err := c.get(ctx, path, query, &page); err != nil {
			return err
		}
		if len(page.Events) > 0 {
			if err := fn(page.Events); err != nil {
				return err
			}
		}
		if page.Next == "" {
			return nil
		}
		cursor = page.Next
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pageDelay):
		}
	}
}

// Order fetches one order's full body by protocol address and hash.
func (c *Client) Order(ctx context.Context, chain, protocolAddress, orderHash string) (*Listing, error) {
	path := fmt.Sprintf("/api/v2/orders/chain/%s/protocol/%s/%s", chain, protocolAddress, orderHash)
	var detail OrderDetail
	if err := c.get(ctx, path, nil, &detail); err != nil {
		return nil, err
	}
	return &detail.Order, nil
}

// ListingsByNFT returns the live listings of one token.
func (c *Client) ListingsByNFT(ctx context.Context, chain, contract, identifier string) ([]Listing, error) {
	path := fmt.Sprintf("/api/v2/orders/%s/seaport/listings", chain)
	query := url.Values{
		"asset_contract_address": {contract},
		"token_ids":              {identifier},
	}
	var page struct {
		Orders []Listing `json:"orders"`
	}
	if err := c.get(ctx, path, query, &page); err != nil {
		return nil, err
	}
	return page.Orders, nil
}
