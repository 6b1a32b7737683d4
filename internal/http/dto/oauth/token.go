// Package oauth contiene los DTOs del flujo authorization-code.
package oauth

// TokenResponse es la respuesta 200 de POST /oauth/token (RFC 6749 §5.1).
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// UserinfoResponse es la respuesta de GET /oauth/userinfo: los claims
// públicos del subject.
type UserinfoResponse struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
