package repository

import (
	"context"
	"time"
)

// User representa un usuario del IDP. El password_hash pertenece al esquema
// configurado (sha256 heredado o argon2id); nunca sale por la API.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	Name         string
	CreatedAt    time.Time
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	Username     string
	PasswordHash string
	Email        string
	Name         string
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// Create crea un usuario. Retorna ErrConflict si el username ya existe.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// GetByUsername busca por username. Retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID busca por ID. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id int64) (*User, error)

	// UpdatePasswordHash reemplaza el hash (reset administrativo).
	UpdatePasswordHash(ctx context.Context, id int64, newHash string) error
}
