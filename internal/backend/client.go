// Package backend talks to the external POS API. Every reply uses the
// {success, data, message} envelope.
package backend

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

	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	"go.uber.org/zap"
)

// maxBody caps how much of a backend reply is read.
const maxBody = 8 << 20

var errNoData = errors.New("reply has no data")

type Client struct {
	base string
	hc   *http.Client
	log  *zap.Logger
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: timeout},
		log:  log,
	}
}

// Envelope is the uniform reply shape of the backend and of this service.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// call sends in as JSON and decodes the envelope's data into out.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &accounts.TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return &accounts.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Error("backend request failed", zap.String("op", op), zap.Error(err))
		return &accounts.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &accounts.TransportError{Op: op, Err: fmt.Errorf("read reply: %w", err)}
	}
	c.log.Debug("backend reply", zap.String("op", op), zap.String("method", method),
		zap.String("path", path), zap.Int("status", resp.StatusCode))

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &accounts.TransportError{Op: op, Err: fmt.Errorf("decode reply (status %d): %w", resp.StatusCode, err)}
	}
	if !env.Success {
		return &accounts.BackendError{Op: op, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &accounts.TransportError{Op: op, Err: errNoData}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &accounts.TransportError{Op: op, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

func seg(s string) string { return url.PathEscape(s) }

func (c *Client) GetAccount(ctx context.Context, accountID string) (*accounts.Account, error) {
	var a accounts.Account
	if err := c.call(ctx, "get account", http.MethodGet, "/accounts/"+seg(accountID), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) ListOpenAccounts(ctx context.Context, restaurantKey string) ([]accounts.Account, error) {
	var out []accounts.Account
	path := "/accounts/restaurant/" + seg(restaurantKey) + "/open"
	if err := c.call(ctx, "list open accounts", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAccount(ctx context.Context, req accounts.OpenAccountRequest) (*accounts.Account, error) {
	var a accounts.Account
	if err := c.call(ctx, "create account", http.MethodPost, "/accounts", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) AppendItems(ctx context.Context, accountID string, items []accounts.TempOrderItem) (*accounts.Account, error) {
	var a accounts.Account
	body := map[string]any{"items": items}
	if err := c.call(ctx, "append items", http.MethodPost, "/accounts/"+seg(accountID)+"/items", body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) SendToKitchen(ctx context.Context, accountID string, itemIDs []string) error {
	body := map[string]any{"itemIds": itemIDs}
	return c.call(ctx, "send to kitchen", http.MethodPost, "/accounts/"+seg(accountID)+"/send-to-kitchen", body, nil)
}

func (c *Client) DeleteItem(ctx context.Context, accountID, itemID string) error {
	path := "/accounts/" + seg(accountID) + "/items/" + seg(itemID)
	return c.call(ctx, "delete item", http.MethodDelete, path, nil, nil)
}

func (c *Client) Finalize(ctx context.Context, accountID string) (*accounts.Account, error) {
	return c.transition(ctx, "finalize", accountID, "/finalize", nil)
}

func (c *Client) Reopen(ctx context.Context, accountID string) (*accounts.Account, error) {
	return c.transition(ctx, "reopen", accountID, "/reopen", nil)
}

func (c *Client) Close(ctx context.Context, accountID string, p accounts.ClosePayment) (*accounts.Account, error) {
	return c.transition(ctx, "close", accountID, "/close", p)
}

// transition tolerates replies without data; the session reloads afterwards.
func (c *Client) transition(ctx context.Context, op, accountID, suffix string, in any) (*accounts.Account, error) {
	var a accounts.Account
	err := c.call(ctx, op, http.MethodPut, "/accounts/"+seg(accountID)+suffix, in, &a)
	var te *accounts.TransportError
	if errors.As(err, &te) && errors.Is(te.Err, errNoData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

var _ accounts.Backend = (*Client)(nil)
