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
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront-service/internal/kvstore"
	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// ErrNoAuthToken is returned when an authenticated call is attempted without
// a stored bearer token. The call never reaches the network.
var ErrNoAuthToken = errors.New("no auth token in storage")

// Client talks to the upstream storefront REST API. All methods return plain
// errors; callers at the store boundary convert them into non-throwing result
// values.
type Client struct {
	baseURL    string
	httpClient *http.Client
	kv         kvstore.Store
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, kv kvstore.Store) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		kv:         kv,
		logger:     util.GetLogger(),
	}
}

// OrderResponse is the server's order-creation envelope payload. Only the
// fields the client merges back into local state are modeled.
type OrderResponse struct {
	ID             string `json:"_id"`
	OrderNumber    string `json:"orderNumber"`
	TrackingNumber string `json:"trackingNumber"`
	ReceiptID      string `json:"receiptId"`
	Status         string `json:"status"`
}

type envelope struct {
	Success bool            `json:"success"`
	Total   int             `json:"total"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateOrder POSTs a normalized order payload and returns the
// server-assigned fields.
func (c *Client) CreateOrder(ctx context.Context, order *models.Order) (*OrderResponse, error) {
	env, err := c.do(ctx, http.MethodPost, "/orders", order, false)
	if err != nil {
		return nil, err
	}

	var resp OrderResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	return &resp, nil
}

// ListOrders fetches one page of the order list and the server-side total.
func (c *Client) ListOrders(ctx context.Context, page, limit int) (int, []models.Order, error) {
	path := fmt.Sprintf("/orders?page=%d&limit=%d", page, limit)
	env, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := json.Unmarshal(env.Data, &orders); err != nil {
		return 0, nil, fmt.Errorf("decode order list: %w", err)
	}
	return env.Total, orders, nil
}

// UpdateOrderStatus PUTs a status change for one order. Requires auth.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	path := "/orders/" + url.PathEscape(orderID) + "/status"
	body := map[string]string{"status": status}
	_, err := c.do(ctx, http.MethodPut, path, body, true)
	return err
}

// RegisterRequest is the guest-registration payload used by the checkout
// create-account sub-flow.
type RegisterRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

// RegisterResponse carries the new user's id and session token.
type RegisterResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// Register creates an account for a guest mid-checkout. On success the
// returned token is stored so subsequent authenticated calls work.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	env, err := c.do(ctx, http.MethodPost, "/auth/register", req, false)
	if err != nil {
		return nil, err
	}

	var resp RegisterResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		return nil, fmt.Errorf("decode register response: %w", err)
	}

	if resp.Token != "" {
		if err := c.kv.Put(ctx, kvstore.KeyAuthToken, []byte(resp.Token)); err != nil {
			c.logger.Warn("Failed to persist auth token", zap.Error(err))
		}
	}
	return &resp, nil
}

// HasAuthToken reports whether a bearer token is available.
func (c *Client) HasAuthToken(ctx context.Context) bool {
	_, ok, err := c.kv.Get(ctx, kvstore.KeyAuthToken)
	return err == nil && ok
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, needsAuth bool) (*envelope, error) {
	var token string
	if needsAuth {
		data, ok, err := c.kv.Get(ctx, kvstore.KeyAuthToken)
		if err != nil {
			return nil, fmt.Errorf("read auth token: %w", err)
		}
		if !ok || len(data) == 0 {
			return nil, ErrNoAuthToken
		}
		token = string(data)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%s %s: decode envelope (status %d): %w", method, path, resp.StatusCode, err)
		}
	}

	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = "status " + strconv.Itoa(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s %s failed: %s", method, path, msg)
	}
	return &env, nil
}
