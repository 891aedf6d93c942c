package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mgomes/nestfind/internal/search"
)

const maxResponseBytes = 4 << 20

var ErrStatus = errors.New("unexpected status from index service")

type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	RetryMax int
}

// Client queries the hosted index service. It implements search.Fetcher.
type Client struct {
	endpoint string
	apiKey   string
	http     *retryablehttp.Client
	log      *slog.Logger
}

type queryRequest struct {
	IndexName   string `json:"indexName"`
	Query       string `json:"query"`
	Page        int    `json:"page"`
	HitsPerPage int    `json:"hitsPerPage"`
}

type queryResponse struct {
	Hits    []json.RawMessage `json:"hits"`
	NbPages int               `json:"nbPages"`
}

func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid index service url %q", cfg.BaseURL)
	}
	endpoint := base.JoinPath("idx").String() + "/"

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		http: &retryablehttp.Client{
			RetryMax:     cfg.RetryMax,
			RetryWaitMin: 50 * time.Millisecond,
			RetryWaitMax: 500 * time.Millisecond,
			HTTPClient: &http.Client{
				Timeout: timeout,
			},
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Backoff:      retryablehttp.DefaultBackoff,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
			Logger:       log,
		},
		log: log,
	}, nil
}

func (c *Client) FetchIndex(ctx context.Context, req search.FetchRequest) (search.Page, error) {
	resp, err := c.query(ctx, queryRequest{
		IndexName:   req.IndexName,
		Query:       req.Query,
		Page:        req.Page,
		HitsPerPage: req.PageSize,
	})
	if err != nil {
		return search.Page{}, err
	}

	page := search.Page{
		Hits:       make([]search.Hit, 0, len(resp.Hits)),
		TotalPages: resp.NbPages,
	}
	for i, raw := range resp.Hits {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			c.log.Debug("skipping undecodable hit", "index", req.IndexName, "position", i, "error", err)
			continue
		}
		hit, err := search.DecodeHit(req.IndexName, fields)
		if err != nil {
			return search.Page{}, err
		}
		page.Hits = append(page.Hits, hit)
	}

	return page, nil
}

// Ping checks that the service answers for indexName with the configured
// key.
func (c *Client) Ping(ctx context.Context, indexName string) error {
	_, err := c.query(ctx, queryRequest{IndexName: indexName, Page: 1, HitsPerPage: 1})
	return err
}

func (c *Client) query(ctx context.Context, body queryRequest) (*queryResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", body.IndexName, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", body.IndexName, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrStatus, body.IndexName, res.StatusCode)
	}

	var out queryResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", body.IndexName, err)
	}
	return &out, nil
}
