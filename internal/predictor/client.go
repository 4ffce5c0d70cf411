// Package predictor talks to the external cirrhosis stage prediction service.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Skufu/LiverGuardian/internal/features"
)

const maxResponseBytes = 1 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each call. Zero keeps the transport default (no deadline).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse predictor url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("predictor url must be absolute http(s), got %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

type predictRequest struct {
	Data []features.Vector `json:"data"`
}

type predictResponse struct {
	Prediction []json.Number `json:"prediction"`
}

// Predict sends one vector and returns the first predicted stage. Exactly
// one attempt is made; every failure comes back as *Error.
func (c *Client) Predict(ctx context.Context, vec features.Vector) (int, error) {
	body, err := json.Marshal(predictRequest{Data: []features.Vector{vec}})
	if err != nil {
		return 0, &Error{Kind: KindTransport, Message: MsgUnreachable, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return 0, &Error{Kind: KindTransport, Message: MsgUnreachable, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &Error{Kind: KindTransport, Message: MsgUnreachable, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, &Error{Kind: KindTransport, Status: resp.StatusCode, Message: MsgUnreachable, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, parseDetail(raw).toError(resp.StatusCode)
	}

	return decodeStage(raw, resp.StatusCode)
}

func decodeStage(raw []byte, status int) (int, error) {
	var out predictResponse
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return 0, &Error{Kind: KindMalformed, Status: status, Message: MsgUnreachable, Err: fmt.Errorf("decode prediction: %w", err)}
	}
	if len(out.Prediction) == 0 {
		return 0, &Error{Kind: KindMalformed, Status: status, Message: MsgUnreachable, Err: errors.New("empty prediction")}
	}

	// Some models emit 3.0 for an integer class.
	f, err := out.Prediction[0].Float64()
	if err != nil || f != float64(int(f)) {
		return 0, &Error{Kind: KindMalformed, Status: status, Message: MsgUnreachable,
			Err: fmt.Errorf("prediction %q is not an integer stage", out.Prediction[0])}
	}
	return int(f), nil
}

// Health calls the service's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("predictor health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("predictor health: status %d", resp.StatusCode)
	}
	return nil
}
