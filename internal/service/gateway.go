package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/instantmart/admin-console/internal/domain/api"
	apperrors "github.com/instantmart/admin-console/internal/errors"
	"github.com/instantmart/admin-console/internal/observability/metrics"
	"github.com/instantmart/admin-console/internal/observability/statsd"
	"github.com/instantmart/admin-console/internal/ports"
	"golang.org/x/net/publicsuffix"
)

// HeaderRequestID carries a per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// maxEnvelopeBytes bounds how much of a response body is read.
const maxEnvelopeBytes = 8 << 20

type tokenReader interface {
	AccessToken() string
}

type tokenRefresher interface {
	Refresh(ctx context.Context) (string, error)
}

// GatewayConfig holds the transport settings for Gateway.
type GatewayConfig struct {
	BaseURL string
	Timeout time.Duration
	// Origin is sent as the Origin header when set.
	Origin string
	// CORSMode is sent as Sec-Fetch-Mode. Defaults to "cors".
	CORSMode string
}

// GatewayAuth groups the session collaborators Gateway needs.
type GatewayAuth struct {
	Tokens    tokenReader    // Required
	Refresher tokenRefresher // Required
	Codec     ports.TokenCodec
	Clock     ports.Clock
}

// GatewayOptions groups dependencies for Gateway.
type GatewayOptions struct {
	Config     GatewayConfig
	Auth       GatewayAuth
	HTTPClient *http.Client // Optional: built with a public-suffix cookie jar when nil
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// Gateway sends authenticated backend requests. It refreshes expired tokens before
// sending, retries exactly once after a 401, and folds every outcome into an api.Envelope.
type Gateway struct {
	cfg       GatewayConfig
	tokens    tokenReader
	refresher tokenRefresher
	codec     ports.TokenCodec
	clock     ports.Clock
	client    *http.Client
	logger    *slog.Logger
	metrics   statsd.Sink
}

var _ ports.Requester = (*Gateway)(nil)

// NewGateway constructs a Gateway.
func NewGateway(opts GatewayOptions) (*Gateway, error) {
	if opts.Auth.Tokens == nil || opts.Auth.Refresher == nil {
		return nil, errors.New("gateway requires a token reader and refresher")
	}
	if strings.TrimSpace(opts.Config.BaseURL) == "" {
		return nil, errors.New("gateway requires a base URL")
	}

	cfg := opts.Config
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.CORSMode == "" {
		cfg.CORSMode = "cors"
	}

	client := opts.HTTPClient
	if client == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Jar: jar, Timeout: timeout}
	}

	clock := opts.Auth.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		cfg:       cfg,
		tokens:    opts.Auth.Tokens,
		refresher: opts.Auth.Refresher,
		codec:     opts.Auth.Codec,
		clock:     clock,
		client:    client,
		logger:    logger.With("component", "gateway"),
		metrics:   opts.Metrics,
	}, nil
}

// Send issues one logical request to endpoint (a path under BaseURL or an absolute URL).
func (g *Gateway) Send(ctx context.Context, endpoint string, opts api.RequestOptions) api.Envelope {
	start := time.Now()
	method := opts.MethodOrDefault()
	env, retried := g.send(ctx, endpoint, method, opts)
	metrics.EmitRequest(g.metrics, metrics.RequestMetric{
		Method:   method,
		Status:   env.Status,
		Retried:  retried,
		Duration: time.Since(start),
		Err:      envErr(env),
	})
	return env
}

func envErr(env api.Envelope) error {
	if env.Err != nil {
		return env.Err
	}
	return nil
}

func (g *Gateway) send(ctx context.Context, endpoint, method string, opts api.RequestOptions) (api.Envelope, bool) {
	body, err := encodeBody(opts.Body)
	if err != nil {
		return api.Failure(0, apperrors.Wrap(err, apperrors.ErrCodeValidation, "request body could not be encoded")), false
	}

	authEndpoint := isAuthEndpoint(endpoint)
	token := g.tokens.AccessToken()
	if token != "" && !authEndpoint && g.codec != nil && g.codec.IsExpired(token, g.clock.Now()) {
		fresh, refreshErr := g.refresher.Refresh(ctx)
		if refreshErr != nil {
			return refreshFailure(refreshErr), false
		}
		token = fresh
	}

	resp, err := g.do(ctx, endpoint, method, body, token, opts.Headers)
	if err != nil {
		return g.transportFailure(ctx, endpoint, err), false
	}

	retried := false
	if resp.StatusCode == http.StatusUnauthorized && token != "" && !authEndpoint {
		retried = true
		drain(resp)
		fresh, refreshErr := g.refresher.Refresh(ctx)
		if refreshErr != nil {
			return refreshFailure(refreshErr), true
		}
		resp, err = g.do(ctx, endpoint, method, body, fresh, opts.Headers)
		if err != nil {
			return g.transportFailure(ctx, endpoint, err), true
		}
	}
	return parseEnvelope(resp), retried
}

func (g *Gateway) do(ctx context.Context, endpoint, method string, body []byte, token string, extra map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.url(endpoint), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set(HeaderRequestID, uuid.NewString())
	req.Header.Set("Sec-Fetch-Mode", g.cfg.CORSMode)
	if g.cfg.Origin != "" {
		req.Header.Set("Origin", g.cfg.Origin)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	g.logger.DebugContext(ctx, "backend request", "method", method, "endpoint", endpoint, "request_id", req.Header.Get(HeaderRequestID))
	return g.client.Do(req)
}

func (g *Gateway) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return g.cfg.BaseURL + endpoint
}

func (g *Gateway) transportFailure(ctx context.Context, endpoint string, err error) api.Envelope {
	if errors.Is(err, context.Canceled) {
		return api.Failure(0, apperrors.Wrap(err, apperrors.ErrCodeCanceled, "request canceled"))
	}
	g.logger.WarnContext(ctx, "backend unreachable", "endpoint", endpoint, "error", err)
	return api.Failure(0, apperrors.Wrap(err, apperrors.ErrCodeNetwork, api.MsgNetworkError))
}

// refreshFailure folds a failed refresh into an Envelope. Only a terminal refresh
// failure is session_expired; a caller that stopped waiting gets canceled or timeout
// because the shared refresh may still succeed.
func refreshFailure(cause error) api.Envelope {
	if !apperrors.IsSessionExpired(cause) {
		switch {
		case errors.Is(cause, context.Canceled):
			return api.Failure(0, apperrors.Wrap(cause, apperrors.ErrCodeCanceled, "request canceled"))
		case errors.Is(cause, context.DeadlineExceeded):
			return api.Failure(0, apperrors.Wrap(cause, apperrors.ErrCodeTimeout, "request timed out waiting for token refresh"))
		}
	}
	var appErr *apperrors.AppError
	if errors.As(cause, &appErr) && appErr.Code == apperrors.ErrCodeSessionExpired {
		return api.Failure(http.StatusUnauthorized, appErr)
	}
	return api.Failure(http.StatusUnauthorized, apperrors.Wrap(cause, apperrors.ErrCodeSessionExpired, api.MsgSessionExpired))
}

// isAuthEndpoint reports whether endpoint belongs to the login/refresh surface,
// which must never trigger a refresh of its own.
func isAuthEndpoint(endpoint string) bool {
	path := endpoint
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			path = rest[j:]
		} else {
			path = "/"
		}
	}
	path = "/" + strings.TrimLeft(path, "/")
	return strings.HasPrefix(path, "/auth/")
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	default:
		return json.Marshal(b)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxEnvelopeBytes))
	_ = resp.Body.Close()
}

type wireEnvelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// parseEnvelope reads resp into an Envelope. Bodies that are JSON but not an
// envelope object are passed through as Data on success.
func parseEnvelope(resp *http.Response) api.Envelope {
	defer func() { _ = resp.Body.Close() }()
	status := resp.StatusCode
	ok := status >= 200 && status <= 299

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err != nil {
		return api.Failure(status, apperrors.Wrap(err, apperrors.ErrCodeNetwork, api.MsgNetworkError))
	}
	raw = bytes.TrimSpace(raw)

	if len(raw) == 0 {
		if ok {
			return api.Envelope{Success: true, Status: status}
		}
		return api.Failure(status, apperrors.New(apperrors.ErrCodeParse, api.MsgParseFailure))
	}

	var wire wireEnvelope
	if err := json.Unmarshal(raw, &wire); err != nil {
		if ok && json.Valid(raw) {
			return api.Envelope{Success: true, Status: status, Data: json.RawMessage(raw)}
		}
		return api.Failure(status, apperrors.Wrap(err, apperrors.ErrCodeParse, api.MsgParseFailure))
	}
	if wire.Success == nil && wire.Data == nil && wire.Message == "" && ok {
		return api.Envelope{Success: true, Status: status, Data: json.RawMessage(raw)}
	}

	success := ok
	if wire.Success != nil {
		success = ok && *wire.Success
	}
	env := api.Envelope{Success: success, Data: wire.Data, Message: wire.Message, Status: status}
	if !success {
		msg := wire.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		env.Message = msg
		env.Err = apperrors.New(apperrors.ErrCodeRemote, msg)
	}
	return env
}
