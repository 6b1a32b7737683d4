package jwt

import (
	"errors"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken es el único error que sale de Verify: firma inválida,
// estructura rota, exp vencido o alg inesperado colapsan en él. El detalle
// no le sirve al caller y no debe filtrarse al cliente.
var ErrInvalidToken = errors.New("invalid_jwt")

// Verify valida firma HS256 y expiración, y devuelve los claims.
// Nunca entra en pánico: cualquier token malformado responde error.
func (i *Issuer) Verify(token string) (map[string]any, error) {
	tok, err := jwtv5.Parse(token,
		func(*jwtv5.Token) (any, error) { return i.secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}
