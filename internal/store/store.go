// Package store implementa los repositorios del dominio sobre Postgres
// (pgx/v5 + pgxpool). Una sola base, cuatro tablas: users, clients,
// auth_codes, sessions.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/aerogate/internal/domain/repository"
)

// Options afina el pool. Cero valores ⇒ defaults conservadores.
type Options struct {
	MaxConns        int
	ConnMaxLifetime string
}

type Store struct {
	pool *pgxpool.Pool
}

// New abre el pool y hace un ping de arranque. Un ping fallido no tumba el
// servicio: la base puede estar levantándose todavía (compose, CI).
func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = int32(opts.MaxConns)
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 8
	}
	if opts.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(opts.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (migraciones, health checks).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Accessors de repositorios. Los services dependen de las interfaces de
// domain/repository, nunca de *Store.

func (s *Store) Users() repository.UserRepository {
	return &userRepo{pool: s.pool}
}

func (s *Store) Clients() repository.ClientRepository {
	return &clientRepo{pool: s.pool}
}

func (s *Store) AuthCodes() repository.AuthCodeRepository {
	return &codeRepo{pool: s.pool}
}

func (s *Store) Sessions() repository.SessionRepository {
	return &sessionRepo{pool: s.pool}
}
