package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Forward relays a request to the backend unchanged and returns its status,
// content type and body. Only transport failures are reported as errors.
func (c *Client) Forward(ctx context.Context, method, path, rawQuery, contentType string, body io.Reader) (int, string, []byte, error) {
	target := c.base + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, "", nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, "", nil, fmt.Errorf("forward %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, "", nil, fmt.Errorf("read reply: %w", err)
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), b, nil
}
