package oauth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/aerogate/internal/http/dto/oauth"
	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	oauthsvc "github.com/dropDatabas3/aerogate/internal/http/services/oauth"
)

// UserinfoController maneja GET /oauth/userinfo.
type UserinfoController struct {
	oauth oauthsvc.Service
}

// NewUserinfoController crea el controller.
func NewUserinfoController(o oauthsvc.Service) *UserinfoController {
	return &UserinfoController{oauth: o}
}

// Userinfo devuelve los claims públicos del bearer presentado.
func (c *UserinfoController) Userinfo(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
		w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo"`)
		httperrors.WriteError(w, httperrors.ErrInvalidToken.WithDetail("missing bearer token"))
		return
	}

	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	info, err := c.oauth.Userinfo(r.Context(), token)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo", error="invalid_token"`)
		httperrors.WriteError(w, httperrors.ErrInvalidToken)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, dto.UserinfoResponse{
		Sub:   info.Sub,
		Email: info.Email,
		Name:  info.Name,
	})
}
