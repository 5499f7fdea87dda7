// Package restapi is the outbound HTTP Service Layer: authenticated REST
// calls against the server's /api surface. It holds no connection state —
// every call is a self-contained request/response round trip.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/restsend/chatkit/chaterr"
	"github.com/restsend/chatkit/model"
)

// Service issues authenticated REST calls against one endpoint.
type Service struct {
	endpoint string
	token    string
	prefix   string
	timeout  time.Duration
	client   *http.Client
}

// New builds a Service for endpoint, authenticated with token.
func New(endpoint, token string, prefix string, timeout time.Duration) *Service {
	return &Service{
		endpoint: endpoint,
		token:    token,
		prefix:   prefix,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

// SetToken updates the bearer token used by subsequent calls, used after a
// login/token-refresh cycle.
func (s *Service) SetToken(token string) { s.token = token }

func (s *Service) url(path string) string {
	return s.endpoint + s.prefix + path
}

func (s *Service) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("restapi: encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url(path), reader)
	if err != nil {
		return fmt.Errorf("restapi: build request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return chaterr.Wrap(chaterr.KindNetworkBroken, "request failed", err)
	}
	defer resp.Body.Close()

	return handleResponse(resp, out)
}

// handleResponse translates the HTTP status into a chatkit error, or
// decodes out on success. Grounded on the original's handle_response:
// 200 decodes the body; 403/401/404 map to specific kinds and anything else
// falls back to a generic HTTP error, with the message taken from the
// response body's "error" field when present.
func handleResponse(resp *http.Response, out any) error {
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusOK {
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("restapi: decode response: %w", err)
		}
		return nil
	}

	msg := errorMessage(raw, resp.Status)
	switch resp.StatusCode {
	case http.StatusForbidden:
		return chaterr.New(chaterr.KindForbidden, msg)
	case http.StatusUnauthorized:
		return chaterr.New(chaterr.KindInvalidPassword, msg)
	case http.StatusNotFound:
		return chaterr.New(chaterr.KindNotFound, msg)
	default:
		return chaterr.New(chaterr.KindHTTP, msg)
	}
}

func errorMessage(body []byte, fallback string) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	return fallback
}

// Login exchanges credentials for an AuthInfo.
func (s *Service) Login(ctx context.Context, userID, password string) (model.AuthInfo, error) {
	var out model.AuthInfo
	err := s.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"userId":   userID,
		"password": password,
	}, &out)
	return out, err
}

// Signup registers a new account and returns its AuthInfo.
func (s *Service) Signup(ctx context.Context, userID, password string) (model.AuthInfo, error) {
	var out model.AuthInfo
	err := s.do(ctx, http.MethodPost, "/auth/signup", map[string]string{
		"userId":   userID,
		"password": password,
	}, &out)
	return out, err
}

// Logout invalidates the current token server-side.
func (s *Service) Logout(ctx context.Context) error {
	return s.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}
