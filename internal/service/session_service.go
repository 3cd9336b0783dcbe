package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"asset-console/internal/backend"
	"asset-console/internal/model"
	"asset-console/internal/util"
)

const roleClaimURI = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"

type SessionBackend interface {
	Login(ctx context.Context, in model.LoginRequest) error
	UserInfo(ctx context.Context) (model.User, error)
	Register(ctx context.Context, in model.RegisterRequest) error
	SetCredentials(creds backend.Credentials)
	ResetSession()
}

// SessionService holds the one authenticated backend session of this
// console. Capabilities are resolved once, at login.
type SessionService struct {
	backend SessionBackend
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	session  *model.SessionData
	onLogin  []func(model.SessionData)
	onLogout []func()
}

func NewSessionService(b SessionBackend, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{backend: b, logger: logger.With("component", "session"), now: time.Now}
}

// OnLogin registers a hook run after every successful login.
func (s *SessionService) OnLogin(fn func(model.SessionData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogin = append(s.onLogin, fn)
}

// OnLogout registers a hook run after every logout.
func (s *SessionService) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

func (s *SessionService) Current() (model.SessionData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return model.SessionData{}, false
	}
	return *s.session, true
}

// LoginWithPassword logs in with the backend's cookie flow and reads the
// user profile.
func (s *SessionService) LoginWithPassword(ctx context.Context, username string, password string) (model.SessionData, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.SessionData{}, &model.InputError{Fields: []model.FieldError{{Field: "username", Rule: "is required"}}}
	}

	if err := s.backend.Login(ctx, model.LoginRequest{Username: username, Password: password}); err != nil {
		return model.SessionData{}, fmt.Errorf("login: %w", err)
	}

	user, err := s.backend.UserInfo(ctx)
	if err != nil {
		return model.SessionData{}, fmt.Errorf("user info: %w", err)
	}
	if user.Username == "" {
		user.Username = username
	}
	return s.establish(user), nil
}

// LoginWithToken uses a bearer token. The token's claims give the user and
// role; the backend profile wins when it can be read.
func (s *SessionService) LoginWithToken(ctx context.Context, token string) (model.SessionData, error) {
	user, err := s.userFromToken(strings.TrimSpace(token))
	if err != nil {
		return model.SessionData{}, err
	}

	s.backend.SetCredentials(backend.BearerToken(strings.TrimSpace(token)))

	profile, err := s.backend.UserInfo(ctx)
	switch {
	case err == nil:
		user = mergeUser(user, profile)
	case errors.Is(err, model.ErrUnauthorized):
		s.backend.ResetSession()
		return model.SessionData{}, fmt.Errorf("user info: %w", err)
	default:
		s.logger.Warn("user info unavailable, using token claims", "error", err)
	}
	return s.establish(user), nil
}

func (s *SessionService) userFromToken(token string) (model.User, error) {
	if token == "" {
		return model.User{}, fmt.Errorf("%w: empty token", model.ErrUnauthorized)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return model.User{}, fmt.Errorf("%w: %v", model.ErrUnauthorized, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %v", model.ErrUnauthorized, err)
	}
	if exp != nil && !exp.After(s.now()) {
		return model.User{}, model.ErrTokenExpired
	}

	return model.User{
		ID:       firstClaim(claims, "nameid", "userId", "id", "sub"),
		Username: firstClaim(claims, "unique_name", "name", "username", "preferred_username"),
		Email:    firstClaim(claims, "email"),
		Role:     model.Role(firstClaim(claims, roleClaimURI, "role", "roles")),
	}, nil
}

// firstClaim returns the first non-empty claim among keys. Numeric claims are
// rendered as integers and array claims yield their first element.
func firstClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

func mergeUser(base model.User, profile model.User) model.User {
	if profile.ID != "" {
		base.ID = profile.ID
	}
	if profile.Username != "" {
		base.Username = profile.Username
	}
	if profile.Email != "" {
		base.Email = profile.Email
	}
	if profile.Role != "" {
		base.Role = profile.Role
	}
	return base
}

func (s *SessionService) establish(user model.User) model.SessionData {
	data := model.SessionData{User: user, Capabilities: model.CapabilitiesFor(user.Role)}

	s.mu.Lock()
	s.session = &data
	hooks := append([]func(model.SessionData){}, s.onLogin...)
	s.mu.Unlock()

	s.logger.Info("session established", "user", user.Username, "role", user.Role)
	for _, hook := range hooks {
		hook(data)
	}
	return data
}

func (s *SessionService) Register(ctx context.Context, in model.RegisterRequest) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := util.ValidateStruct(in); err != nil {
		return err
	}
	return s.backend.Register(ctx, in)
}

// Logout drops credentials and runs the logout hooks, which clear the
// hierarchy projection and the notification log.
func (s *SessionService) Logout() {
	s.mu.Lock()
	s.session = nil
	hooks := append([]func(){}, s.onLogout...)
	s.mu.Unlock()

	s.backend.ResetSession()
	for _, hook := range hooks {
		hook()
	}
	s.logger.Info("session closed")
}
