package oauth

import (
	"errors"
	"net/http"
	"strings"

	httpx "github.com/dropDatabas3/aerogate/internal/http"
	dto "github.com/dropDatabas3/aerogate/internal/http/dto/oauth"
	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	oauthsvc "github.com/dropDatabas3/aerogate/internal/http/services/oauth"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
)

// TokenController maneja POST /oauth/token.
type TokenController struct {
	oauth oauthsvc.Service
}

// NewTokenController crea el controller.
func NewTokenController(o oauthsvc.Service) *TokenController {
	return &TokenController{oauth: o}
}

// Token canjea un authorization code por un access token. Body
// form-encoded según RFC 6749; respuestas siempre con no-store.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		log.Warn("failed to parse form", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInvalidRequest.WithDetail("invalid form data"))
		return
	}

	res, err := c.oauth.Exchange(ctx, oauthsvc.ExchangeInput{
		GrantType:    strings.TrimSpace(r.PostForm.Get("grant_type")),
		Code:         strings.TrimSpace(r.PostForm.Get("code")),
		ClientID:     strings.TrimSpace(r.PostForm.Get("client_id")),
		ClientSecret: r.PostForm.Get("client_secret"),
		RedirectURI:  strings.TrimSpace(r.PostForm.Get("redirect_uri")),
	})
	if err != nil {
		switch {
		case errors.Is(err, oauthsvc.ErrUnsupportedGrantType):
			httpx.RecordExchangeFailure("unsupported_grant_type")
			httperrors.WriteError(w, httperrors.ErrUnsupportedGrantType)
		case errors.Is(err, oauthsvc.ErrClientAuthFailed):
			httpx.RecordExchangeFailure("invalid_client")
			httperrors.WriteError(w, httperrors.ErrInvalidClient)
		case errors.Is(err, oauthsvc.ErrInvalidCode):
			httpx.RecordExchangeFailure("invalid_grant")
			httperrors.WriteError(w, httperrors.ErrInvalidGrant)
		default:
			log.Error("exchange failed", logger.Err(err))
			httpx.RecordExchangeFailure("server_error")
			httperrors.WriteError(w, httperrors.ErrInternal)
		}
		return
	}

	httpx.RecordTokenIssued()
	httperrors.WriteJSON(w, http.StatusOK, dto.TokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		ExpiresIn:   res.ExpiresIn,
	})
}
