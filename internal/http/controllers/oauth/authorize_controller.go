// Package oauth expone los endpoints del authorization-code grant:
// authorize, token y userinfo.
package oauth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/aerogate/internal/domain/repository"
	httpx "github.com/dropDatabas3/aerogate/internal/http"
	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	oauthsvc "github.com/dropDatabas3/aerogate/internal/http/services/oauth"
	sessionsvc "github.com/dropDatabas3/aerogate/internal/http/services/session"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
	"go.uber.org/zap"
)

// AuthorizeController maneja GET /oauth/authorize.
type AuthorizeController struct {
	oauth    oauthsvc.Service
	sessions sessionsvc.Service
}

// NewAuthorizeController crea el controller.
func NewAuthorizeController(o oauthsvc.Service, s sessionsvc.Service) *AuthorizeController {
	return &AuthorizeController{oauth: o, sessions: s}
}

// Authorize corre la primera mitad del grant. Sin sesión válida el user
// agent va al login con el request completo como destino post-login; con
// sesión se emite el código y se redirige al client.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.authorize"))

	q := r.URL.Query()
	clientID := strings.TrimSpace(q.Get("client_id"))
	redirectURI := strings.TrimSpace(q.Get("redirect_uri"))
	responseType := strings.TrimSpace(q.Get("response_type"))
	state := q.Get("state")

	user, err := c.resolveSession(r)
	if err != nil {
		// ANONYMOUS: al login, nunca error. El next conserva el query
		// original completo para retomar el flujo tras autenticarse.
		target := "/idp/login?next=" + url.QueryEscape(r.URL.RequestURI())
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	res, err := c.oauth.Authorize(ctx, oauthsvc.AuthorizeInput{
		UserID:       user.ID,
		ClientID:     clientID,
		RedirectURI:  redirectURI,
		ResponseType: responseType,
		State:        state,
	})
	if err != nil {
		switch {
		case errors.Is(err, oauthsvc.ErrUnsupportedResponseType):
			httperrors.WriteError(w, httperrors.ErrUnsupportedResponseType)
		case errors.Is(err, oauthsvc.ErrUnknownClient):
			httperrors.WriteError(w, httperrors.ErrInvalidClientAuthorize)
		case errors.Is(err, oauthsvc.ErrRedirectMismatch):
			httperrors.WriteError(w, httperrors.ErrInvalidRedirectURI)
		default:
			log.Error("authorize failed", logger.Err(err), zap.String("client_id", clientID))
			httperrors.WriteError(w, httperrors.ErrInternal)
		}
		return
	}

	httpx.RecordAuthCodeIssued()
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// resolveSession mapea la cookie entrante al usuario. Cualquier fallo
// (sin cookie, sesión vencida, usuario borrado) cuenta como anónimo.
func (c *AuthorizeController) resolveSession(r *http.Request) (*repository.User, error) {
	cookie, err := r.Cookie(c.sessions.CookieName())
	if err != nil || cookie.Value == "" {
		return nil, sessionsvc.ErrNoSession
	}
	return c.sessions.Resolve(r.Context(), cookie.Value)
}
