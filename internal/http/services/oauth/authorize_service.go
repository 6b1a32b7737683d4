package oauth

import (
	"context"
	"net/url"
	"time"

	"github.com/dropDatabas3/aerogate/internal/domain/repository"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
	tokens "github.com/dropDatabas3/aerogate/internal/security/token"
	"go.uber.org/zap"
)

func (s *service) Authorize(ctx context.Context, in AuthorizeInput) (*AuthorizeResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("oauth"),
		logger.Op("Authorize"),
		zap.String("client_id", in.ClientID),
	)

	if in.ResponseType != "code" {
		log.Debug("unsupported response_type", zap.String("response_type", in.ResponseType))
		return nil, ErrUnsupportedResponseType
	}

	client, err := s.clients.Get(ctx, in.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("client not registered")
			return nil, ErrUnknownClient
		}
		log.Error("client lookup failed", logger.Err(err))
		return nil, err
	}

	if in.RedirectURI != client.RedirectURI {
		log.Debug("redirect_uri mismatch",
			zap.String("requested", in.RedirectURI),
		)
		return nil, ErrRedirectMismatch
	}

	code, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		log.Error("failed to generate code", logger.Err(err))
		return nil, err
	}

	authCode := repository.AuthCode{
		Code:        code,
		UserID:      in.UserID,
		ClientID:    in.ClientID,
		RedirectURI: in.RedirectURI,
		ExpiresAt:   time.Now().Add(s.codeTTL),
	}
	if err := s.codes.Create(ctx, authCode); err != nil {
		log.Error("failed to persist code", logger.Err(err))
		return nil, err
	}

	redirectURL, err := buildRedirectURL(in.RedirectURI, code, in.State)
	if err != nil {
		// El URI ya pasó match exacto contra el registrado; si no parsea
		// el problema es del registro, no del request.
		log.Error("registered redirect_uri does not parse", logger.Err(err))
		return nil, ErrRedirectMismatch
	}

	log.Debug("code issued", zap.Int64("user_id", in.UserID))

	return &AuthorizeResult{Code: code, RedirectURL: redirectURL}, nil
}

// buildRedirectURL agrega code y state preservando el query preexistente
// del redirect_uri. El state se omite cuando viene vacío.
func buildRedirectURL(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
