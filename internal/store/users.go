package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/aerogate/internal/domain/repository"
)

type userRepo struct{ pool *pgxpool.Pool }

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	const q = `
INSERT INTO users (username, password_hash, email, name)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`

	u := repository.User{
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Email:        in.Email,
		Name:         in.Name,
	}
	err := r.pool.QueryRow(ctx, q, in.Username, in.PasswordHash, in.Email, in.Name).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	const q = `
SELECT id, username, password_hash, email, name, created_at
FROM users
WHERE username = $1
LIMIT 1`
	return r.scanOne(r.pool.QueryRow(ctx, q, username))
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*repository.User, error) {
	const q = `
SELECT id, username, password_hash, email, name, created_at
FROM users
WHERE id = $1
LIMIT 1`
	return r.scanOne(r.pool.QueryRow(ctx, q, id))
}

func (r *userRepo) UpdatePasswordHash(ctx context.Context, id int64, newHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, newHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) scanOne(row pgx.Row) (*repository.User, error) {
	var u repository.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
