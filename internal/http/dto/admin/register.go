// Package admin contiene los DTOs de provisioning administrativo.
package admin

// RegisterUserRequest es el body JSON de POST /idp/register_user.
type RegisterUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// RegisterUserResponse confirma el alta de un usuario.
type RegisterUserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// RegisterClientRequest registra (o re-registra) un cliente OAuth.
// Acepta JSON o form-urlencoded; el cliente original enviaba form.
type RegisterClientRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
}

// RegisterClientResponse confirma el alta del cliente.
type RegisterClientResponse struct {
	ClientID string `json:"client_id"`
}
