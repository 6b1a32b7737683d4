package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/aerogate/internal/domain/repository"
)

type sessionRepo struct{ pool *pgxpool.Pool }

func (r *sessionRepo) Create(ctx context.Context, s repository.Session) error {
	const q = `
INSERT INTO sessions (session_id, user_id, expires_at)
VALUES ($1, $2, $3)`
	_, err := r.pool.Exec(ctx, q, s.SessionID, s.UserID, s.ExpiresAt)
	return err
}

// Resolve con expiración lazy: la fila vencida se borra al leerla y el
// caller recibe ErrNotFound, como si nunca hubiera existido.
func (r *sessionRepo) Resolve(ctx context.Context, sessionID string) (*repository.Session, error) {
	const q = `
SELECT session_id, user_id, expires_at
FROM sessions
WHERE session_id = $1
LIMIT 1`
	var s repository.Session
	err := r.pool.QueryRow(ctx, q, sessionID).Scan(&s.SessionID, &s.UserID, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if !time.Now().Before(s.ExpiresAt) {
		_, _ = r.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *sessionRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	return err
}

func (r *sessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
