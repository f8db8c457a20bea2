package httpx

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	apperrors "github.com/instantmart/admin-console/internal/errors"
)

// AuthService is the part of the session service the auth handlers drive.
type AuthService interface {
	SessionReader
	Login(ctx context.Context, email, password string) (domainauth.Session, error)
	Logout(ctx context.Context) error
}

// AuthHandlers serves the console login and logout endpoints.
type AuthHandlers struct {
	Svc    AuthService
	Logger *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse describes the operator session to console clients.
type SessionResponse struct {
	Authenticated bool                   `json:"authenticated"`
	User          *domainauth.Identity   `json:"user,omitempty"`
	Permissions   domainauth.Permissions `json:"permissions"`
}

func sessionResponse(s *domainauth.Session) SessionResponse {
	if s == nil {
		return SessionResponse{}
	}
	id := s.Identity
	return SessionResponse{Authenticated: true, User: &id, Permissions: domainauth.PermissionsOf(s)}
}

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign in · InstantMart Admin</title></head>
<body>
<h1>InstantMart Admin</h1>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
<form method="post" action="/auth/login">
<input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
<label>Email <input type="email" name="email" value="{{.Email}}" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

type loginPageData struct {
	RedirectURI string
	Email       string
	Error       string
}

// LoginPage renders the sign-in form.
// GET /auth/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))
	if _, ok := h.Svc.Current(); ok {
		http.Redirect(w, r, redirectURI, http.StatusSeeOther)
		return
	}
	h.renderLogin(w, http.StatusOK, loginPageData{RedirectURI: redirectURI})
}

func (h *AuthHandlers) renderLogin(w http.ResponseWriter, status int, data loginPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := loginPage.Execute(w, data); err != nil {
		h.logger().Error("render login page", "error", err)
	}
}

// Login authenticates the operator. JSON bodies get a JSON answer; form posts
// are redirected on success and shown the form again on failure.
// POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	form := !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")

	var in loginRequest
	redirectURI := "/"
	if form {
		if err := r.ParseForm(); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
			return
		}
		in.Email = r.PostFormValue("email")
		in.Password = r.PostFormValue("password")
		redirectURI = safeRedirectPath(r.PostFormValue("redirect_uri"))
	} else if !DecodeJSON(w, r, &in) {
		return
	}

	sess, err := h.Svc.Login(r.Context(), strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		h.logger().WarnContext(r.Context(), "console login failed", "error", err)
		status, code, msg := loginFailure(err)
		if form {
			h.renderLogin(w, status, loginPageData{RedirectURI: redirectURI, Email: in.Email, Error: msg})
			return
		}
		WriteJSON(w, status, map[string]string{"error": code, "message": msg})
		return
	}

	if form {
		http.Redirect(w, r, redirectURI, http.StatusSeeOther)
		return
	}
	WriteJSON(w, http.StatusOK, sessionResponse(&sess))
}

// loginFailure maps a Login error to the status, code and message shown to the operator.
func loginFailure(err error) (int, string, string) {
	var appErr *apperrors.AppError
	msg := "Login failed. Please try again."
	if errors.As(err, &appErr) && appErr.Message != "" {
		msg = appErr.Message
	}
	switch {
	case errors.Is(err, domainauth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", msg
	case apperrors.IsAuthorizationDenied(err):
		return http.StatusForbidden, string(apperrors.ErrCodeAuthorizationDenied), msg
	case apperrors.IsValidation(err):
		return http.StatusBadRequest, string(apperrors.ErrCodeValidation), msg
	case apperrors.IsNetwork(err):
		return http.StatusBadGateway, string(apperrors.ErrCodeNetwork), msg
	case apperrors.CodeOf(err) == apperrors.ErrCodeDecode:
		return http.StatusBadGateway, string(apperrors.ErrCodeDecode), msg
	default:
		return http.StatusInternalServerError, string(apperrors.ErrCodeInternal), "Login failed. Please try again."
	}
}

// Logout ends the operator session.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Logout(r.Context()); err != nil {
		// Memory is already cleared; only storage cleanup failed.
		h.logger().WarnContext(r.Context(), "logout failed", "error", err)
	}
	if IsBrowserRequest(r) {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session reports the current operator and derived permissions.
// GET /api/session.
func (h *AuthHandlers) Session(w http.ResponseWriter, _ *http.Request) {
	var resp SessionResponse
	if s, ok := h.Svc.Current(); ok {
		resp = sessionResponse(&s)
	}
	WriteJSON(w, http.StatusOK, resp)
}

var homePage = template.Must(template.New("home").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>InstantMart Admin</title></head>
<body>
<h1>Welcome, {{.Name}}</h1>
<p>Signed in as {{.Email}} ({{.Role}}).</p>
<form method="post" action="/auth/logout"><button type="submit">Sign out</button></form>
</body>
</html>
`))

// Home is the landing page for a signed-in operator.
// GET /.
func (h *AuthHandlers) Home(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		redirectToLogin(w, r)
		return
	}
	if IsBrowserRequest(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := homePage.Execute(w, sess.Identity); err != nil {
			h.logger().ErrorContext(r.Context(), "render home page", "error", err)
		}
		return
	}
	WriteJSON(w, http.StatusOK, sessionResponse(sess))
}
