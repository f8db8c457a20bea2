// Package restapi implements the backend REST ports over HTTP.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/instantmart/admin-console/internal/domain/api"
	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	apperrors "github.com/instantmart/admin-console/internal/errors"
	"github.com/instantmart/admin-console/internal/ports"
)

const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh-token"

	msgInvalidCredentials = "Invalid email or password."
	msgRefreshRejected    = "The refresh token was rejected."

	// maxResponseBytes bounds how much of an auth response is read.
	maxResponseBytes = 1 << 20
)

// AuthClientOptions groups dependencies for AuthClient.
type AuthClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout applies when HTTPClient is nil.
	Timeout time.Duration
}

// AuthClient calls the login and refresh endpoints directly, outside the request gateway.
type AuthClient struct {
	baseURL string
	client  *http.Client
}

var _ ports.AuthAPI = (*AuthClient)(nil)

// NewAuthClient creates an AuthClient.
func NewAuthClient(opts AuthClientOptions) *AuthClient {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &AuthClient{baseURL: strings.TrimRight(opts.BaseURL, "/"), client: client}
}

// tokenBody is the shared login/refresh response. Tokens may sit at the top level or under data.
type tokenBody struct {
	Success      *bool           `json:"success"`
	Message      string          `json:"message"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	ExpiresIn    int64           `json:"expiresIn"`
	Data         json.RawMessage `json:"data"`
}

func (b tokenBody) pair() domainauth.TokenPair {
	p := domainauth.TokenPair{AccessToken: b.AccessToken, RefreshToken: b.RefreshToken, ExpiresIn: b.ExpiresIn}
	if p.AccessToken != "" || len(b.Data) == 0 {
		return p
	}
	var nested tokenBody
	if err := json.Unmarshal(b.Data, &nested); err == nil {
		p.AccessToken = nested.AccessToken
		p.RefreshToken = nested.RefreshToken
		if p.ExpiresIn == 0 {
			p.ExpiresIn = nested.ExpiresIn
		}
	}
	return p
}

// Login exchanges credentials for a token pair.
func (c *AuthClient) Login(ctx context.Context, in ports.LoginInput) (domainauth.TokenPair, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return domainauth.TokenPair{}, apperrors.Validation("email and password are required")
	}
	body, status, err := c.post(ctx, loginPath, map[string]string{"email": in.Email, "password": in.Password})
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	if rejected(body, status) {
		msg := body.Message
		if msg == "" {
			msg = msgInvalidCredentials
		}
		return domainauth.TokenPair{}, apperrors.Wrap(domainauth.ErrInvalidCredentials, apperrors.ErrCodeRemote, msg)
	}
	return tokensOrParseError(body)
}

// Refresh exchanges a refresh token for a new pair.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	if refreshToken == "" {
		return domainauth.TokenPair{}, apperrors.Validation("refresh token is required")
	}
	body, status, err := c.post(ctx, refreshPath, map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	if rejected(body, status) {
		msg := body.Message
		if msg == "" {
			msg = msgRefreshRejected
		}
		return domainauth.TokenPair{}, apperrors.Newf(apperrors.ErrCodeRemote, "%s (status %d)", msg, status)
	}
	return tokensOrParseError(body)
}

func rejected(body tokenBody, status int) bool {
	if status < 200 || status > 299 {
		return true
	}
	return body.Success != nil && !*body.Success
}

func tokensOrParseError(body tokenBody) (domainauth.TokenPair, error) {
	p := body.pair()
	if p.AccessToken == "" {
		return domainauth.TokenPair{}, apperrors.New(apperrors.ErrCodeParse, "token response did not include an access token")
	}
	return p, nil
}

func (c *AuthClient) post(ctx context.Context, path string, payload any) (tokenBody, int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return tokenBody{}, 0, fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return tokenBody{}, 0, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return tokenBody{}, 0, apperrors.Wrap(err, apperrors.ErrCodeCanceled, "request canceled")
		}
		return tokenBody{}, 0, apperrors.Wrap(err, apperrors.ErrCodeNetwork, api.MsgNetworkError)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return tokenBody{}, resp.StatusCode, apperrors.Wrap(err, apperrors.ErrCodeNetwork, api.MsgNetworkError)
	}

	var body tokenBody
	if len(bytes.TrimSpace(data)) > 0 {
		if jsonErr := json.Unmarshal(data, &body); jsonErr != nil {
			if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
				return tokenBody{}, resp.StatusCode, apperrors.Wrap(jsonErr, apperrors.ErrCodeParse, api.MsgParseFailure)
			}
			// Non-JSON error pages still count as a rejection.
			body = tokenBody{}
		}
	}
	return body, resp.StatusCode, nil
}
