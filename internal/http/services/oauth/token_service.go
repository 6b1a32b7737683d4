package oauth

import (
	"context"
	"crypto/subtle"
	"strconv"
	"time"

	"github.com/dropDatabas3/aerogate/internal/domain/repository"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *service) Exchange(ctx context.Context, in ExchangeInput) (*ExchangeResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("oauth"),
		logger.Op("Exchange"),
		zap.String("client_id", in.ClientID),
	)

	if in.GrantType != "authorization_code" {
		log.Debug("unsupported grant_type", zap.String("grant_type", in.GrantType))
		return nil, ErrUnsupportedGrantType
	}

	// Autenticación del client antes de tocar el código: un secret
	// incorrecto no quema el código.
	client, err := s.clients.Get(ctx, in.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("client not registered")
			return nil, ErrClientAuthFailed
		}
		log.Error("client lookup failed", logger.Err(err))
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(in.ClientSecret)) != 1 {
		log.Debug("client secret mismatch")
		return nil, ErrClientAuthFailed
	}
	if in.RedirectURI != client.RedirectURI {
		log.Debug("redirect_uri does not match registration")
		return nil, ErrClientAuthFailed
	}

	// Consumo atómico: DELETE ... RETURNING. A partir de acá el código ya
	// no existe; bindings y expiración se validan sobre la fila devuelta.
	code, err := s.codes.Consume(ctx, in.Code)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("code not found or already used")
			return nil, ErrInvalidCode
		}
		log.Error("code consume failed", logger.Err(err))
		return nil, err
	}

	if code.ClientID != in.ClientID {
		log.Debug("code bound to different client")
		return nil, ErrInvalidCode
	}
	if code.RedirectURI != in.RedirectURI {
		log.Debug("code bound to different redirect_uri")
		return nil, ErrInvalidCode
	}
	if time.Now().After(code.ExpiresAt) {
		log.Debug("code expired")
		return nil, ErrInvalidCode
	}

	user, err := s.users.GetByID(ctx, code.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Debug("code points to missing user", zap.Int64("user_id", code.UserID))
			return nil, ErrInvalidCode
		}
		log.Error("user lookup failed", logger.Err(err))
		return nil, err
	}

	sub := strconv.FormatInt(user.ID, 10)
	token, exp, err := s.issuer.IssueAccess(sub, in.ClientID, user.Email, user.Name)
	if err != nil {
		log.Error("token signing failed", logger.Err(err))
		return nil, err
	}

	log.Debug("token issued", zap.Int64("user_id", user.ID))

	return &ExchangeResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
	}, nil
}

func (s *service) Userinfo(ctx context.Context, token string) (*UserinfoResult, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		logger.From(ctx).With(
			logger.Layer("service"),
			logger.Component("oauth"),
			logger.Op("Userinfo"),
		).Debug("token verification failed")
		return nil, ErrInvalidToken
	}

	return &UserinfoResult{
		Sub:   claimString(claims, "sub"),
		Email: claimString(claims, "email"),
		Name:  claimString(claims, "name"),
	}, nil
}

func claimString(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
