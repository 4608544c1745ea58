// Package client talks to the return-service HTTP API on behalf of a
// POS terminal. It satisfies draft.Backend so a Session can resolve
// products, load partner tickets, and submit returns over the wire.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"balikin/backend/internal/domain"
)

type Client struct {
	baseURL    string
	token      string
	sessionID  int64
	configID   int64
	httpClient *http.Client
}

func New(baseURL string, token string, sessionID, configID int64) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		sessionID: sessionID,
		configID:  configID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetToken swaps the bearer token after a login or refresh.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) Login(ctx context.Context, username, password string) (domain.LoginResponse, error) {
	var resp domain.LoginResponse
	err := c.postJSON(ctx, "/api/v1/auth/login", domain.LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	c.token = resp.AccessToken
	return resp, nil
}

// FindProductByBarcode returns nil when the server reports no match.
func (c *Client) FindProductByBarcode(ctx context.Context, code string) (*domain.Product, error) {
	var resp domain.ProductLookupResponse
	err := c.postJSON(ctx, "/api/v1/session/products/lookup", domain.ProductLookupRequest{
		SessionID: c.sessionID,
		Barcode:   code,
		ConfigID:  c.configID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Products) == 0 {
		return nil, nil
	}
	product := resp.Products[0]
	return &product, nil
}

func (c *Client) GetPartnerTickets(ctx context.Context, customerID int64) ([]domain.Ticket, error) {
	query := url.Values{}
	query.Set("customer_id", strconv.FormatInt(customerID, 10))

	var resp domain.PartnerTicketsResponse
	if err := c.getJSON(ctx, "/api/v1/session/partner-tickets?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Tickets, nil
}

func (c *Client) CreateReturn(ctx context.Context, req domain.CreateReturnRequest) (domain.CreateReturnResult, error) {
	if req.SessionID == 0 {
		req.SessionID = c.sessionID
	}

	var result domain.CreateReturnResult
	if err := c.postJSON(ctx, "/api/v1/session/returns", req, &result); err != nil {
		return domain.CreateReturnResult{}, err
	}
	return result, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, dest)
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s", apiErr.Error)
		}
		return fmt.Errorf("server: unexpected status %d", resp.StatusCode)
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
