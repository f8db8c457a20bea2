package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	apperrors "github.com/instantmart/admin-console/internal/errors"
	"github.com/instantmart/admin-console/internal/ports"
)

// SessionListener receives a copy of the session after every change; nil means logged out.
// Listeners run synchronously and must not mutate the session.
type SessionListener func(s *domainauth.Session)

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	API     ports.AuthAPI      // Required
	Storage ports.TokenStorage // Required
	Codec   ports.TokenCodec   // Required
	Logger  *slog.Logger       // Optional
}

// SessionService owns the operator session: login, logout, token rotation and persistence.
// All mutation goes through its methods; readers get copies.
type SessionService struct {
	api     ports.AuthAPI
	storage ports.TokenStorage
	codec   ports.TokenCodec
	logger  *slog.Logger

	// writeMu serialises mutations together with their notifications.
	writeMu sync.Mutex

	mu      sync.RWMutex
	session *domainauth.Session

	subMu     sync.Mutex
	listeners []listenerEntry
	nextSubID uint64
}

type listenerEntry struct {
	id uint64
	fn SessionListener
}

// NewSessionService constructs a SessionService.
func NewSessionService(opts SessionServiceOptions) *SessionService {
	if opts.API == nil || opts.Storage == nil || opts.Codec == nil {
		panic("service: SessionService requires API, Storage and Codec")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		api:     opts.API,
		storage: opts.Storage,
		codec:   opts.Codec,
		logger:  logger.With("component", "session"),
	}
}

// Restore loads a persisted session without validating expiry. Nothing stored
// yields (nil, nil). A partial or corrupt record is purged and reported as
// domainauth.ErrPartialSession.
func (s *SessionService) Restore(ctx context.Context) (*domainauth.Session, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	values, err := s.storage.Load(ctx, ports.SessionKeys...)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	access := values[ports.StorageKeyAccessToken]
	refresh := values[ports.StorageKeyRefreshToken]
	rawUser := values[ports.StorageKeyUser]
	var ident domainauth.Identity
	if access == "" || refresh == "" || rawUser == "" || json.Unmarshal([]byte(rawUser), &ident) != nil {
		s.logger.WarnContext(ctx, "discarding partial session", "keys", len(values))
		if clearErr := s.storage.Clear(ctx, ports.SessionKeys...); clearErr != nil {
			return nil, errors.Join(domainauth.ErrPartialSession, fmt.Errorf("purge partial session: %w", clearErr))
		}
		return nil, domainauth.ErrPartialSession
	}

	sess := domainauth.Session{Identity: ident, AccessToken: access, RefreshToken: refresh}
	s.set(&sess)
	s.logger.InfoContext(ctx, "session restored", "user_id", ident.UserID, "role", ident.Role)
	s.publish(&sess)
	return copySession(&sess), nil
}

// Login authenticates with the backend and accepts only SuperAdmin and Admin.
// A denied role purges storage and returns an authorization_denied AppError naming the role.
func (s *SessionService) Login(ctx context.Context, email, password string) (domainauth.Session, error) {
	pair, err := s.api.Login(ctx, ports.LoginInput{Email: email, Password: password})
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("login: %w", err)
	}

	claims, err := s.codec.Decode(pair.AccessToken)
	if err != nil {
		s.purge(ctx)
		return domainauth.Session{}, apperrors.Wrap(err, apperrors.ErrCodeDecode, "login returned an unreadable access token")
	}

	sess := domainauth.Session{
		Identity: domainauth.Identity{
			UserID: claims.SubjectID,
			Name:   claims.DisplayName,
			Email:  claims.Email,
			Role:   roleOf(claims),
		},
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}

	if !sess.IsValid() {
		s.purge(ctx)
		s.logger.WarnContext(ctx, "login denied for role", "user_id", sess.UserID, "role", sess.Role)
		return domainauth.Session{}, &apperrors.AppError{
			Code: apperrors.ErrCodeAuthorizationDenied,
			Message: fmt.Sprintf(
				"Access denied: role %q cannot use the admin console (requires %s or %s)",
				sess.Role, domainauth.RoleSuperAdmin, domainauth.RoleAdmin,
			),
			Cause: domainauth.ErrAuthorizationDenied,
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if persistErr := s.persist(ctx, &sess); persistErr != nil {
		return domainauth.Session{}, persistErr
	}
	s.set(&sess)
	s.logger.InfoContext(ctx, "operator logged in", "user_id", sess.UserID, "role", sess.Role)
	s.publish(&sess)
	return sess, nil
}

// roleOf prefers the role name and falls back to the explicit role id.
func roleOf(c domainauth.Claims) domainauth.Role {
	if r, ok := domainauth.LookupRole(c.Role); ok {
		return r
	}
	if c.RoleID != 0 {
		return domainauth.RoleFromID(c.RoleID)
	}
	return domainauth.RoleUser
}

// Logout clears memory and storage. It is idempotent; listeners hear about it only
// when a session was actually dropped.
func (s *SessionService) Logout(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	had := s.session != nil
	s.session = nil
	s.mu.Unlock()

	err := s.storage.Clear(ctx, ports.SessionKeys...)
	if had {
		s.logger.InfoContext(ctx, "operator logged out")
		s.publish(nil)
	}
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// UpdateTokens swaps in a rotated token pair and re-persists the session.
// An empty refresh token keeps the current one. Memory is updated even when
// persistence fails, since the server may already have invalidated the old pair.
func (s *SessionService) UpdateTokens(ctx context.Context, access, refresh string) error {
	if access == "" {
		return apperrors.Validation("access token is required")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return domainauth.ErrNoSession
	}
	next := *s.session
	next.AccessToken = access
	if refresh != "" {
		next.RefreshToken = refresh
	}
	s.session = &next
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "session tokens rotated", "user_id", next.UserID)
	s.publish(&next)
	return s.persist(ctx, &next)
}

// Subscribe registers fn for session changes. The returned func removes it and is safe to call more than once.
func (s *SessionService) Subscribe(fn SessionListener) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Current returns a copy of the session.
func (s *SessionService) Current() (domainauth.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return domainauth.Session{}, false
	}
	return *s.session, true
}

// AccessToken returns the current access token or "".
func (s *SessionService) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

// RefreshToken returns the current refresh token or "".
func (s *SessionService) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.RefreshToken
}

func (s *SessionService) set(sess *domainauth.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = copySession(sess)
}

func (s *SessionService) persist(ctx context.Context, sess *domainauth.Session) error {
	user, err := json.Marshal(sess.Identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if saveErr := s.storage.Save(ctx, map[string]string{
		ports.StorageKeyAccessToken:  sess.AccessToken,
		ports.StorageKeyRefreshToken: sess.RefreshToken,
		ports.StorageKeyUser:         string(user),
	}); saveErr != nil {
		return fmt.Errorf("save session: %w", saveErr)
	}
	return nil
}

// purge drops any stored session after a rejected login. Failures are logged only.
func (s *SessionService) purge(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	had := s.session != nil
	s.session = nil
	s.mu.Unlock()

	if err := s.storage.Clear(ctx, ports.SessionKeys...); err != nil {
		s.logger.ErrorContext(ctx, "purge session storage failed", "error", err)
	}
	if had {
		s.publish(nil)
	}
}

func (s *SessionService) publish(sess *domainauth.Session) {
	s.subMu.Lock()
	listeners := make([]SessionListener, len(s.listeners))
	for i, l := range s.listeners {
		listeners[i] = l.fn
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(copySession(sess))
	}
}

func copySession(sess *domainauth.Session) *domainauth.Session {
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}
