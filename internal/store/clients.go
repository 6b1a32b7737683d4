package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/aerogate/internal/domain/repository"
)

type clientRepo struct{ pool *pgxpool.Pool }

// Upsert: re-registrar un client pisa secret y redirect_uri, igual que el
// alta original. created_at se conserva.
func (r *clientRepo) Upsert(ctx context.Context, c repository.Client) error {
	const q = `
INSERT INTO clients (client_id, client_secret, redirect_uri)
VALUES ($1, $2, $3)
ON CONFLICT (client_id)
DO UPDATE SET client_secret = EXCLUDED.client_secret,
              redirect_uri  = EXCLUDED.redirect_uri`
	_, err := r.pool.Exec(ctx, q, c.ClientID, c.ClientSecret, c.RedirectURI)
	return err
}

func (r *clientRepo) Get(ctx context.Context, clientID string) (*repository.Client, error) {
	const q = `
SELECT client_id, client_secret, redirect_uri, created_at
FROM clients
WHERE client_id = $1
LIMIT 1`
	var c repository.Client
	err := r.pool.QueryRow(ctx, q, clientID).
		Scan(&c.ClientID, &c.ClientSecret, &c.RedirectURI, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
