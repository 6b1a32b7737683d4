// Package admin expone el provisioning del IDP. Ambos endpoints van
// detrás del middleware RequireAdminToken.
package admin

import (
	"errors"
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/aerogate/internal/http/dto/admin"
	"github.com/dropDatabas3/aerogate/internal/http/httperrors"
	adminsvc "github.com/dropDatabas3/aerogate/internal/http/services/admin"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
)

// RegisterController maneja POST /idp/register_user y /idp/register_client.
type RegisterController struct {
	admin adminsvc.Service
}

// NewRegisterController crea el controller.
func NewRegisterController(s adminsvc.Service) *RegisterController {
	return &RegisterController{admin: s}
}

// RegisterUser da de alta un usuario. Body JSON.
func (c *RegisterController) RegisterUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("admin.register_user"))

	var req dto.RegisterUserRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}

	user, err := c.admin.RegisterUser(ctx, adminsvc.RegisterUserInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Name:     req.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, adminsvc.ErrMissingUsername),
			errors.Is(err, adminsvc.ErrMissingPassword):
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail(err.Error()))
		case errors.Is(err, adminsvc.ErrUsernameTaken):
			httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("username already registered"))
		default:
			log.Error("register_user failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternal)
		}
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, dto.RegisterUserResponse{
		ID:       user.ID,
		Username: user.Username,
	})
}

// RegisterClient registra un client OAuth. Acepta JSON o form-encoded:
// los scripts de aprovisionamiento históricos mandan form.
func (c *RegisterController) RegisterClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("admin.register_client"))

	var req dto.RegisterClientRequest
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") {
		if !httperrors.ReadJSON(w, r, &req) {
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		if err := r.ParseForm(); err != nil {
			log.Warn("failed to parse form", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("invalid form data"))
			return
		}
		req.ClientID = r.PostForm.Get("client_id")
		req.ClientSecret = r.PostForm.Get("client_secret")
		req.RedirectURI = r.PostForm.Get("redirect_uri")
	}

	err := c.admin.RegisterClient(ctx, adminsvc.RegisterClientInput{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		RedirectURI:  req.RedirectURI,
	})
	if err != nil {
		switch {
		case errors.Is(err, adminsvc.ErrMissingClientID),
			errors.Is(err, adminsvc.ErrMissingClientSecret),
			errors.Is(err, adminsvc.ErrMissingRedirectURI):
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail(err.Error()))
		default:
			log.Error("register_client failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternal)
		}
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, dto.RegisterClientResponse{
		ClientID: strings.TrimSpace(req.ClientID),
	})
}
