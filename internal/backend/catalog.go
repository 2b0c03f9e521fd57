package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
)

func (c *Client) ListProducts(ctx context.Context, restaurantKey string) ([]accounts.Product, error) {
	var out []accounts.Product
	path := "/products/restaurant/" + seg(restaurantKey)
	if err := c.call(ctx, "list products", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SetExtraStatus(ctx context.Context, productID, extraID string, active bool) error {
	path := "/products/" + seg(productID) + "/extras/" + seg(extraID) + "/status"
	return c.call(ctx, "set extra status", http.MethodPut, path, map[string]bool{"activo": active}, nil)
}

// User is the profile returned by a successful login.
type User struct {
	ID            string        `json:"_id"`
	Username      string        `json:"username"`
	Name          string        `json:"nombre,omitempty"`
	Role          accounts.Role `json:"rol"`
	RestaurantKey string        `json:"claveRestaurante"`
}

// Login relays credentials and returns the user plus the raw data object so
// callers can echo it unchanged.
func (c *Client) Login(ctx context.Context, body json.RawMessage) (*User, json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "login", http.MethodPost, "/auth/login", body, &raw); err != nil {
		return nil, nil, err
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, nil, &accounts.TransportError{Op: "login", Err: err}
	}
	return &u, raw, nil
}
