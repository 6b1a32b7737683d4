// Package session implementa el login interactivo del IDP: credenciales
// contra la tabla users, sesión opaca persistida en storage y cookie
// HttpOnly para el navegador.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/aerogate/internal/domain/repository"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
	"github.com/dropDatabas3/aerogate/internal/security/password"
	tokens "github.com/dropDatabas3/aerogate/internal/security/token"
	"go.uber.org/zap"
)

// Service define operaciones de sesión interactiva.
type Service interface {
	// Login valida credenciales y crea una sesión nueva.
	Login(ctx context.Context, username, password string) (*LoginResult, error)

	// Resolve mapea una cookie de sesión al usuario dueño. Sesión
	// inexistente, vencida o con usuario borrado responde ErrNoSession.
	Resolve(ctx context.Context, sessionID string) (*repository.User, error)

	// Logout invalida la sesión. Idempotente.
	Logout(ctx context.Context, sessionID string) error

	// BuildSessionCookie arma la cookie HttpOnly para una sesión nueva.
	BuildSessionCookie(sessionID string, expiresAt time.Time) *http.Cookie

	// ClearSessionCookie arma la cookie de expiración inmediata (logout).
	ClearSessionCookie() *http.Cookie

	// CookieName expone el nombre configurado (los controllers leen la
	// cookie entrante con él).
	CookieName() string
}

// LoginResult contiene el resultado de un login exitoso.
type LoginResult struct {
	SessionID string
	User      *repository.User
	ExpiresAt time.Time
}

// CookieConfig controla los atributos de la cookie de sesión.
type CookieConfig struct {
	Name     string
	Domain   string
	SameSite string // Lax | Strict | None
	Secure   bool
}

// Deps contiene las dependencias del service.
type Deps struct {
	Users    repository.UserRepository
	Sessions repository.SessionRepository
	Hasher   password.Hasher
	TTL      time.Duration
	Cookie   CookieConfig
}

type service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	hasher   password.Hasher
	ttl      time.Duration
	cookie   CookieConfig
}

// New crea un Service de sesión.
func New(deps Deps) Service {
	if deps.TTL <= 0 {
		deps.TTL = time.Hour
	}
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = "aerogate_session"
	}
	if deps.Cookie.SameSite == "" {
		deps.Cookie.SameSite = "Lax"
	}
	return &service{
		users:    deps.Users,
		sessions: deps.Sessions,
		hasher:   deps.Hasher,
		ttl:      deps.TTL,
		cookie:   deps.Cookie,
	}
}

// Errores del service.
var (
	ErrMissingUsername    = errors.New("username is required")
	ErrMissingPassword    = errors.New("password is required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no valid session")
	ErrSessionFailed      = errors.New("failed to create session")
)

func (s *service) Login(ctx context.Context, username, plain string) (*LoginResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("Login"),
	)

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrMissingUsername
	}
	if plain == "" {
		return nil, ErrMissingPassword
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("user not found", zap.String("username", username))
			return nil, ErrInvalidCredentials
		}
		log.Error("user lookup failed", logger.Err(err))
		return nil, err
	}

	if !s.hasher.Verify(plain, user.PasswordHash) {
		log.Debug("password mismatch", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	sessionID, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		log.Error("failed to generate session id", logger.Err(err))
		return nil, ErrSessionFailed
	}

	expiresAt := time.Now().Add(s.ttl)
	sess := repository.Session{
		SessionID: sessionID,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		log.Error("failed to persist session", logger.Err(err))
		return nil, ErrSessionFailed
	}

	log.Debug("session created", zap.Int64("user_id", user.ID))

	return &LoginResult{
		SessionID: sessionID,
		User:      user,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *service) Resolve(ctx context.Context, sessionID string) (*repository.User, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("Resolve"),
	)

	if sessionID == "" {
		return nil, ErrNoSession
	}

	sess, err := s.sessions.Resolve(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNoSession
		}
		log.Error("session lookup failed", logger.Err(err))
		return nil, err
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			// Usuario borrado con sesión viva: la sesión deja de valer.
			log.Debug("session points to missing user", zap.Int64("user_id", sess.UserID))
			return nil, ErrNoSession
		}
		log.Error("user lookup failed", logger.Err(err))
		return nil, err
	}

	return user, nil
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		logger.From(ctx).With(
			logger.Layer("service"),
			logger.Component("session"),
			logger.Op("Logout"),
		).Error("failed to delete session", logger.Err(err))
		return err
	}
	return nil
}

func (s *service) BuildSessionCookie(sessionID string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookie.Name,
		Value:    sessionID,
		Path:     "/",
		Domain:   s.cookie.Domain,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: sameSiteMode(s.cookie.SameSite),
	}
}

func (s *service) ClearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   s.cookie.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: sameSiteMode(s.cookie.SameSite),
	}
}

func (s *service) CookieName() string { return s.cookie.Name }

func sameSiteMode(v string) http.SameSite {
	switch v {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
