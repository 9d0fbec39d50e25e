package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxErrorBody = 64 << 10

// errorDecoder turns a non-2xx response body into an error.
type errorDecoder func(platform string, status int, body []byte) error

type apiClient struct {
	platform  string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	decodeErr errorDecoder
}

func newAPIClient(platform, baseURL string, hc *http.Client, rps float64, decodeErr errorDecoder) *apiClient {
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &apiClient{
		platform:  platform,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      hc,
		limiter:   rate.NewLimiter(limit, 1),
		decodeErr: decodeErr,
	}
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

func (c *apiClient) do(ctx context.Context, r request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limiter: %w", c.platform, err)
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("error marshalling payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s HTTP request error: %w", c.platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return c.decodeErr(c.platform, resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing %s response: %w", c.platform, err)
	}
	return nil
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// kindForStatus classifies a rejection when the platform gives no better hint.
func kindForStatus(status int) RejectionKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return RejectAuth
	case status == http.StatusTooManyRequests:
		return RejectQuota
	case status >= 400 && status < 500:
		return RejectInvalid
	}
	return ""
}
