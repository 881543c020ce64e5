// Package gateway is the HTTP client for the RBAC API gateway REST contract.
package gateway

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

	"go.uber.org/zap"

	"github.com/noah-isme/rbac-console/internal/dto"
	"github.com/noah-isme/rbac-console/internal/models"
	appErrors "github.com/noah-isme/rbac-console/pkg/errors"
)

const (
	// DefaultTimeout bounds a single request when the config leaves it unset.
	DefaultTimeout = 15 * time.Second

	maxResponseSize = 10 * 1024 * 1024
)

// Config configures the gateway client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the API gateway. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient constructs a Client. A nil httpClient gets a dedicated client with the
// configured timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// BaseURL returns the gateway root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var res dto.TokenResponse
	payload := models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", payload, &res, appErrors.ErrCredential); err != nil {
		return "", err
	}
	if res.AccessToken == "" {
		return "", appErrors.Clone(appErrors.ErrCredential, "gateway returned an empty token")
	}
	return res.AccessToken, nil
}

// CurrentUser returns the profile the token belongs to.
func (c *Client) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/users/me", token, nil, &user, appErrors.ErrSessionInvalid); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers fetches one page of the user directory.
func (c *Client) ListUsers(ctx context.Context, token string, q dto.ListUsersQuery) (*dto.ListUsersResponse, error) {
	values := url.Values{}
	values.Set("page", strconv.Itoa(q.Page))
	values.Set("limit", strconv.Itoa(q.Limit))
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Role != "" {
		values.Set("role", string(q.Role))
	}

	var res dto.ListUsersResponse
	if err := c.do(ctx, http.MethodGet, "/users?"+values.Encode(), token, nil, &res, appErrors.ErrNetwork); err != nil {
		return nil, err
	}
	if res.Users == nil {
		res.Users = []models.User{}
	}
	return &res, nil
}

// CreateUser creates a user and returns the stored record.
func (c *Client) CreateUser(ctx context.Context, token string, req dto.CreateUserRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/users", token, req, &user, appErrors.ErrNetwork); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies a partial update and returns the stored record.
func (c *Client) UpdateUser(ctx context.Context, token, id string, req dto.UpdateUserRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), token, req, &user, appErrors.ErrNetwork); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user. The response body is not required.
func (c *Client) DeleteUser(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), token, nil, nil, appErrors.ErrNetwork)
}

// ReportSummary fetches the role/status breakdown of the directory.
func (c *Client) ReportSummary(ctx context.Context, token string) (*models.ReportSummary, error) {
	var summary models.ReportSummary
	if err := c.do(ctx, http.MethodGet, "/reports/summary", token, nil, &summary, appErrors.ErrNetwork); err != nil {
		return nil, err
	}
	return &summary, nil
}

// do performs one request. Non-2xx responses become a copy of rejected carrying the
// status and the gateway's message; transport failures become ErrNetwork with status 0.
func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}, rejected *appErrors.Error) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, 0, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNetwork.Code, 0, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("gateway request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrNetwork.Code, 0, appErrors.ErrNetwork.Message)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.logger.Debug("gateway request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNetwork.Code, resp.StatusCode, "read response body")
	}

	if resp.StatusCode/100 != 2 {
		appErr := appErrors.WithStatus(rejected, resp.StatusCode)
		if msg := errorMessage(raw); msg != "" {
			appErr.Err = fmt.Errorf("%s", msg)
		}
		return appErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrNetwork.Code, resp.StatusCode, "decode response body")
	}
	return nil
}

// errorMessage extracts the message from the gateway error envelope, falling back to
// {"detail": ...} bodies and plain text.
func errorMessage(raw []byte) string {
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Error != nil && envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Detail != "" {
			return envelope.Detail
		}
		return ""
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
