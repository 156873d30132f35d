// Package httpclient performs outbound HTTP calls with the retry policy
// shared by the job store and upload targets: transport failures are
// retried, responses of any status are not.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wb-go/wbf/retry"
)

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 1 << 10

// StatusError is returned for a response outside the 2xx range.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client wraps an *http.Client with a retry strategy.
type Client struct {
	http     *http.Client
	strategy retry.Strategy
}

// New creates a new Client. A nil hc uses a zero http.Client.
func New(hc *http.Client, s retry.Strategy) *Client {
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		http:     hc,
		strategy: s,
	}
}

// Do sends a request built from method, url, header and body. The request
// is rebuilt for every attempt so the body is replayed in full.
//
// A 2xx response is returned open and must be closed by the caller. Any
// other status is read, closed and returned as *StatusError.
func (c *Client) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Response, error) {
	// fail fast on requests that can never be built
	if _, err := newRequest(ctx, method, url, header, body); err != nil {
		return nil, err
	}

	var resp *http.Response
	err := retry.Do(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := newRequest(ctx, method, url, header, body)
		if err != nil {
			return err
		}

		resp, err = c.http.Do(req)
		return err
	}, c.strategy)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()

		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(data)),
		}
	}

	return resp, nil
}

// DoJSON sends in as a JSON body (when non-nil) and decodes a 2xx
// response into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, method, url string, header http.Header, in, out any) error {
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Accept", "application/json")

	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		h.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(ctx, method, url, h, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, url, err)
	}

	return nil
}

func newRequest(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}

	return req, nil
}
