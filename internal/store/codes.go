package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/aerogate/internal/domain/repository"
)

type codeRepo struct{ pool *pgxpool.Pool }

func (r *codeRepo) Create(ctx context.Context, ac repository.AuthCode) error {
	const q = `
INSERT INTO auth_codes (code, user_id, client_id, redirect_uri, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, q, ac.Code, ac.UserID, ac.ClientID, ac.RedirectURI, ac.ExpiresAt)
	return err
}

// Consume borra y retorna la fila en una sola sentencia. El DELETE es el
// punto de serialización: de dos exchanges concurrentes solo uno recibe
// RETURNING, el otro ve ErrNotFound.
func (r *codeRepo) Consume(ctx context.Context, code string) (*repository.AuthCode, error) {
	const q = `
DELETE FROM auth_codes
WHERE code = $1
RETURNING code, user_id, client_id, redirect_uri, expires_at`
	var ac repository.AuthCode
	err := r.pool.QueryRow(ctx, q, code).
		Scan(&ac.Code, &ac.UserID, &ac.ClientID, &ac.RedirectURI, &ac.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &ac, nil
}

func (r *codeRepo) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM auth_codes WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
