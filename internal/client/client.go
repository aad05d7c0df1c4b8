// Package client talks to the storefront HTTP API on behalf of a cart.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/safar/storefront/internal/cart"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

// APIError is a non-2xx response. It unwraps to the matching error class
// from the database package so callers can use errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront api: %d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return database.ErrNotFound
	case http.StatusBadRequest:
		return database.ErrInvalidInput
	case http.StatusConflict:
		return database.ErrInsufficientStock
	case http.StatusUnauthorized:
		return database.ErrUnauthorized
	case http.StatusForbidden:
		return database.ErrForbidden
	}
	return nil
}

type errorEnvelope struct {
	Error     string `json:"error"`
	ItemID    int64  `json:"item_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New returns a client for the API rooted at baseURL. A nil httpClient
// means http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// WithToken returns a copy of c that authenticates with the bearer token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	var item models.Item
	if err := c.do(ctx, http.MethodGet, "/api/products/"+strconv.FormatInt(id, 10), nil, &item); err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req cart.CheckoutRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &order); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	return &order, nil
}

// SignIn exchanges credentials for a session that the cart keeps as its
// user snapshot.
func (c *Client) SignIn(ctx context.Context, email, password string) (*cart.UserInfo, error) {
	var user cart.UserInfo
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/users/signin", body, &user); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return &user, nil
}

// ProfileUpdate lists the profile fields to change; empty fields are kept.
type ProfileUpdate struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// UpdateProfile changes the signed-in user's profile and returns the
// refreshed session. The client must carry that user's token.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*cart.UserInfo, error) {
	var user cart.UserInfo
	if err := c.do(ctx, http.MethodPut, "/api/users/profile", update, &user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &user, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var env errorEnvelope
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &env) != nil || env.Error == "" {
		env.Error = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusConflict && env.ItemID != 0 {
		return &database.InsufficientStockError{
			ItemID:    env.ItemID,
			Name:      env.Name,
			Requested: env.Requested,
			Available: env.Available,
		}
	}
	return &APIError{Status: resp.StatusCode, Message: env.Error}
}

var (
	_ cart.StockChecker = (*Client)(nil)
	_ cart.OrderPlacer  = (*Client)(nil)
)
