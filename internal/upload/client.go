// Package upload puts rendered derivatives to pre-signed storage URLs.
package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/aliskhannn/asset-derivatives/internal/infra/httpclient"
)

// Client uploads buffers with PUT. Pre-signed URLs carry their own
// signature, so no Authorization header is ever sent.
type Client struct {
	http *httpclient.Client
}

// New creates a new upload Client.
func New(c *httpclient.Client) *Client {
	return &Client{http: c}
}

// Put uploads body to url. Any status outside 2xx is returned as
// *httpclient.StatusError.
func (c *Client) Put(ctx context.Context, url, contentType string, body []byte) error {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	h.Set("X-Content-Type", contentType)

	resp, err := c.http.Do(ctx, http.MethodPut, url, h, body)
	if err != nil {
		return fmt.Errorf("upload %s: %w", contentType, err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
