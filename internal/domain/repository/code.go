package repository

import (
	"context"
	"time"
)

// AuthCode es un código de autorización de un solo uso, ligado a la tripleta
// (user, client_id, redirect_uri) con la que fue emitido.
type AuthCode struct {
	Code        string
	UserID      int64
	ClientID    string
	RedirectURI string
	ExpiresAt   time.Time
}

// AuthCodeRepository define operaciones sobre códigos de autorización.
type AuthCodeRepository interface {
	// Create persiste un código recién emitido.
	Create(ctx context.Context, code AuthCode) error

	// Consume elimina el código y lo retorna en una sola operación
	// (DELETE ... RETURNING). De dos exchanges concurrentes del mismo
	// código, exactamente uno recibe la fila; el otro ErrNotFound.
	// El caller valida expiración y binding después de consumir.
	Consume(ctx context.Context, code string) (*AuthCode, error)

	// DeleteExpired limpia códigos vencidos (higiene, fuera del hot path).
	DeleteExpired(ctx context.Context) (int, error)
}
