package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/instantmart/admin-console/internal/domain/api"
	"github.com/instantmart/admin-console/internal/ports"
)

const maxProxyBody = 1 << 20

// AdminProxy forwards role-gated admin calls to the backend through the request gateway.
type AdminProxy struct {
	Sessions SessionReader
	API      ports.Requester
	Logger   *slog.Logger
}

type proxyResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Status  int             `json:"status"`
	Error   string          `json:"error,omitempty"`
}

// ServeHTTP handles /api/admin/{resource} and /api/admin/{resource}/{rest...}.
func (p *AdminProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resource := r.PathValue("resource")
	roles, ok := RequiredRolesFor(resource)
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "unknown_resource", Err: errors.New("unknown admin resource: " + resource)})
		return
	}
	RequireRoles(p.Sessions, roles...)(http.HandlerFunc(p.forward)).ServeHTTP(w, r)
}

func (p *AdminProxy) forward(w http.ResponseWriter, r *http.Request) {
	endpoint := "/" + strings.ToLower(r.PathValue("resource"))
	if rest := strings.Trim(r.PathValue("rest"), "/"); rest != "" {
		endpoint += "/" + rest
	}
	if r.URL.RawQuery != "" {
		endpoint += "?" + r.URL.RawQuery
	}

	opts := api.RequestOptions{Method: r.Method}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_body", Err: err})
		return
	}
	if len(body) > 0 {
		if !json.Valid(body) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: errors.New("request body is not valid JSON")})
			return
		}
		opts.Body = json.RawMessage(body)
	}

	env := p.API.Send(r.Context(), endpoint, opts)
	resp := proxyResponse{Success: env.Success, Data: env.Data, Message: env.Message, Status: env.Status}
	status := env.Status
	if env.Err != nil {
		resp.Error = string(env.Err.Code)
		if status == 0 {
			status = statusForCode(env.Err.Code)
		}
		p.logger().WarnContext(r.Context(), "admin proxy call failed",
			"endpoint", endpoint, "status", env.Status, "error", env.Err)
	}
	if status == 0 {
		status = http.StatusBadGateway
	}
	WriteJSON(w, status, resp)
}

func (p *AdminProxy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
