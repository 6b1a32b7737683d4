// Package jwt firma y verifica los access tokens del IDP: JWT compactos
// HS256 con secreto compartido. Es el único punto de confianza para las
// decisiones de autorización; firmar y verificar usan siempre la misma
// instancia (mismo secreto).
package jwt

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer emite access tokens autofirmados.
type Issuer struct {
	Iss      string        // claim "iss"
	TokenTTL time.Duration // TTL de los access tokens

	secret []byte
}

func NewIssuer(iss, secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		Iss:      iss,
		TokenTTL: ttl,
		secret:   []byte(secret),
	}
}

// Sign firma un MapClaims arbitrario con HS256. El header queda fijo en
// {"alg":"HS256","typ":"JWT"}; mismos claims ⇒ mismo token.
func (i *Issuer) Sign(claims map[string]any) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims(claims))
	return tk.SignedString(i.secret)
}

// IssueAccess emite el access token del exchange: identidad del usuario
// como subject, client como audience.
func (i *Issuer) IssueAccess(sub, aud, email, name string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.TokenTTL)

	claims := map[string]any{
		"iss":   i.Iss,
		"sub":   sub,
		"email": email,
		"name":  name,
		"aud":   aud,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := i.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
