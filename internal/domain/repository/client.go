package repository

import (
	"context"
	"time"
)

// Client representa una aplicación relying registrada ante el IDP.
// El secret solo se expone en la llamada de registro; después queda
// únicamente para comparación en el exchange.
type Client struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	CreatedAt    time.Time
}

// ClientRepository define operaciones sobre clients OAuth.
type ClientRepository interface {
	// Upsert registra un client. Re-registrar un client_id existente
	// sobreescribe secret y redirect_uri.
	Upsert(ctx context.Context, client Client) error

	// Get busca un client. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, clientID string) (*Client, error)
}
