// Package admin implementa el provisioning administrativo: alta de
// usuarios y registro de clients OAuth. El gate por X-Admin-Token vive
// en el middleware; acá solo semántica.
package admin

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/aerogate/internal/domain/repository"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
	"github.com/dropDatabas3/aerogate/internal/security/password"
	"github.com/dropDatabas3/aerogate/internal/util"
	"go.uber.org/zap"
)

// Service define las operaciones de provisioning.
type Service interface {
	// RegisterUser crea un usuario. Username duplicado responde
	// ErrUsernameTaken.
	RegisterUser(ctx context.Context, in RegisterUserInput) (*repository.User, error)

	// RegisterClient registra (o re-registra) un client. Re-registrar
	// un client_id existente pisa secret y redirect_uri.
	RegisterClient(ctx context.Context, in RegisterClientInput) error
}

// RegisterUserInput contiene los datos de alta de usuario.
type RegisterUserInput struct {
	Username string
	Password string
	Email    string
	Name     string
}

// RegisterClientInput contiene los datos de registro de client.
type RegisterClientInput struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Deps contiene las dependencias del service.
type Deps struct {
	Users   repository.UserRepository
	Clients repository.ClientRepository
	Hasher  password.Hasher
}

type service struct {
	users   repository.UserRepository
	clients repository.ClientRepository
	hasher  password.Hasher
}

// New crea el Service de provisioning.
func New(deps Deps) Service {
	return &service{
		users:   deps.Users,
		clients: deps.Clients,
		hasher:  deps.Hasher,
	}
}

// Errores del service.
var (
	ErrMissingUsername     = errors.New("username is required")
	ErrMissingPassword     = errors.New("password is required")
	ErrUsernameTaken       = errors.New("username already registered")
	ErrMissingClientID     = errors.New("client_id is required")
	ErrMissingClientSecret = errors.New("client_secret is required")
	ErrMissingRedirectURI  = errors.New("redirect_uri is required")
)

func (s *service) RegisterUser(ctx context.Context, in RegisterUserInput) (*repository.User, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("admin"),
		logger.Op("RegisterUser"),
	)

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, ErrMissingUsername
	}
	if in.Password == "" {
		return nil, ErrMissingPassword
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		log.Error("password hashing failed", logger.Err(err))
		return nil, err
	}

	user, err := s.users.Create(ctx, repository.CreateUserInput{
		Username:     username,
		PasswordHash: hash,
		Email:        strings.TrimSpace(in.Email),
		Name:         strings.TrimSpace(in.Name),
	})
	if err != nil {
		if repository.IsConflict(err) {
			log.Debug("username taken", zap.String("username", username))
			return nil, ErrUsernameTaken
		}
		log.Error("user insert failed", logger.Err(err))
		return nil, err
	}

	log.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("email", util.MaskEmail(user.Email)),
	)
	return user, nil
}

func (s *service) RegisterClient(ctx context.Context, in RegisterClientInput) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("admin"),
		logger.Op("RegisterClient"),
	)

	clientID := strings.TrimSpace(in.ClientID)
	if clientID == "" {
		return ErrMissingClientID
	}
	if in.ClientSecret == "" {
		return ErrMissingClientSecret
	}
	redirectURI := strings.TrimSpace(in.RedirectURI)
	if redirectURI == "" {
		return ErrMissingRedirectURI
	}

	err := s.clients.Upsert(ctx, repository.Client{
		ClientID:     clientID,
		ClientSecret: in.ClientSecret,
		RedirectURI:  redirectURI,
	})
	if err != nil {
		log.Error("client upsert failed", logger.Err(err))
		return err
	}

	log.Info("client registered", zap.String("client_id", clientID))
	return nil
}
