// Package oauth implementa la máquina de estados del authorization-code
// grant: authorize emite códigos de un solo uso atados a la tripleta
// (user, client, redirect_uri), token los canjea por access tokens
// firmados y userinfo expone los claims de un bearer válido.
package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/aerogate/internal/domain/repository"
	jwtx "github.com/dropDatabas3/aerogate/internal/jwt"
)

// Service define las operaciones del grant.
type Service interface {
	// Authorize emite un código para un usuario ya autenticado. El
	// caller (controller) resuelve la sesión antes; acá solo se valida
	// client, redirect y response_type.
	Authorize(ctx context.Context, in AuthorizeInput) (*AuthorizeResult, error)

	// Exchange canjea un código por un access token. El código se
	// consume atómicamente: de dos canjes concurrentes gana uno.
	Exchange(ctx context.Context, in ExchangeInput) (*ExchangeResult, error)

	// Userinfo verifica un bearer y devuelve los claims públicos.
	Userinfo(ctx context.Context, token string) (*UserinfoResult, error)
}

// AuthorizeInput es la solicitud de autorización ya autenticada.
type AuthorizeInput struct {
	UserID       int64
	ClientID     string
	RedirectURI  string
	ResponseType string
	State        string
}

// AuthorizeResult contiene el código emitido y el destino del redirect.
type AuthorizeResult struct {
	Code        string
	RedirectURL string
}

// ExchangeInput es la solicitud form-encoded de POST /oauth/token.
type ExchangeInput struct {
	GrantType    string
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// ExchangeResult es el access token emitido.
type ExchangeResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

// UserinfoResult son los claims públicos del subject.
type UserinfoResult struct {
	Sub   string
	Email string
	Name  string
}

// Deps contiene las dependencias del service.
type Deps struct {
	Clients repository.ClientRepository
	Codes   repository.AuthCodeRepository
	Users   repository.UserRepository
	Issuer  *jwtx.Issuer
	CodeTTL time.Duration
}

type service struct {
	clients repository.ClientRepository
	codes   repository.AuthCodeRepository
	users   repository.UserRepository
	issuer  *jwtx.Issuer
	codeTTL time.Duration
}

// New crea el Service OAuth.
func New(deps Deps) Service {
	if deps.CodeTTL <= 0 {
		deps.CodeTTL = 5 * time.Minute
	}
	return &service{
		clients: deps.Clients,
		codes:   deps.Codes,
		users:   deps.Users,
		issuer:  deps.Issuer,
		codeTTL: deps.CodeTTL,
	}
}

// Errores del service. Los controllers los mapean al catálogo HTTP.
var (
	// ErrUnsupportedResponseType: authorize con response_type ≠ "code".
	ErrUnsupportedResponseType = errors.New("unsupported response_type")

	// ErrUnknownClient: authorize con client_id no registrado.
	ErrUnknownClient = errors.New("unknown client")

	// ErrRedirectMismatch: redirect_uri distinto del registrado.
	// Match exacto; nunca por prefijo.
	ErrRedirectMismatch = errors.New("redirect_uri mismatch")

	// ErrUnsupportedGrantType: token con grant_type ≠ "authorization_code".
	ErrUnsupportedGrantType = errors.New("unsupported grant_type")

	// ErrClientAuthFailed: client inexistente, secret incorrecto o
	// redirect_uri distinto del registrado. Indiferenciado a propósito:
	// el caller no debe poder distinguir qué campo falló.
	ErrClientAuthFailed = errors.New("client authentication failed")

	// ErrInvalidCode: código inexistente, ya canjeado, vencido o con
	// bindings que no coinciden.
	ErrInvalidCode = errors.New("invalid or expired code")

	// ErrInvalidToken: bearer que no verifica firma o expiración.
	ErrInvalidToken = errors.New("invalid or expired token")
)
