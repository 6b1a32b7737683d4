package repository

import (
	"context"
	"time"
)

// Session es una sesión interactiva: cookie opaca -> (user, expiración).
type Session struct {
	SessionID string
	UserID    int64
	ExpiresAt time.Time
}

// SessionRepository define operaciones sobre sesiones.
//
// La expiración es lazy: no hay sweeper en el hot path. Resolve borra la
// fila vencida al encontrarla y responde ErrNotFound.
type SessionRepository interface {
	// Create persiste una sesión nueva.
	Create(ctx context.Context, session Session) error

	// Resolve busca una sesión vigente. Si la fila existe pero ya venció,
	// la elimina y retorna ErrNotFound.
	Resolve(ctx context.Context, sessionID string) (*Session, error)

	// Delete elimina una sesión (logout). Borrar una sesión inexistente
	// no es error.
	Delete(ctx context.Context, sessionID string) error

	// DeleteExpired limpia sesiones vencidas (higiene).
	DeleteExpired(ctx context.Context) (int, error)
}
