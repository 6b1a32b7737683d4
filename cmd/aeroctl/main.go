// aeroctl: CLI administrativa de aerogate. user/client pegan a los
// endpoints de provisioning con X-Admin-Token; token/db trabajan en
// local con la misma config del servicio.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/aerogate/internal/config"
	adminsvc "github.com/dropDatabas3/aerogate/internal/http/services/admin"
	jwtx "github.com/dropDatabas3/aerogate/internal/jwt"
	"github.com/dropDatabas3/aerogate/internal/security/password"
	"github.com/dropDatabas3/aerogate/internal/store"
)

type client struct {
	BaseURL    string
	AdminToken string
	OutFormat  string // "json" | "text"
	HTTP       *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-Token", c.AdminToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

// loadCfg comparte la carga de config con el servicio: .env, YAML
// opcional y overrides de entorno.
func loadCfg(path string) (*config.Config, error) {
	_ = godotenv.Load()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return config.Load(path)
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if cfg.Storage.DSN == "" {
		return nil, fmt.Errorf("storage.dsn (DATABASE_URL) es requerido")
	}
	return store.New(ctx, cfg.Storage.DSN, store.Options{
		MaxConns:        cfg.Storage.Postgres.MaxConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
}

func main() {
	var (
		baseURL = envOr("AEROGATE_URL", "http://localhost:4180")
		token   = envOr("IDP_ADMIN_TOKEN", "")
		out     = envOr("AEROGATE_OUT", "text")
		cfgPath string
	)

	root := &cobra.Command{
		Use:   "aeroctl",
		Short: "CLI admin para aerogate (provisioning, tokens, db)",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env AEROGATE_URL)")
	root.PersistentFlags().StringVar(&token, "admin-token", token, "Valor de X-Admin-Token (env IDP_ADMIN_TOKEN)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config.yaml para token/db (fallback: $CONFIG_PATH)")

	httpClient := &http.Client{Timeout: 30 * time.Second}
	// Los flags se parsean en Execute; el cliente se arma recién ahí.
	newClient := func() (*client, error) {
		if token == "" {
			return nil, fmt.Errorf("falta admin token (flag --admin-token o env IDP_ADMIN_TOKEN)")
		}
		return &client{BaseURL: baseURL, AdminToken: token, OutFormat: out, HTTP: httpClient}, nil
	}

	// ─── user add ───
	var uUser, uPass, uEmail, uName string
	userAddCmd := &cobra.Command{
		Use:   "add",
		Short: "Alta de usuario (POST /idp/register_user)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := newClient()
			if err != nil {
				return err
			}
			if uUser == "" || uPass == "" {
				return fmt.Errorf("--username y --password son requeridos")
			}
			b, _ := json.Marshal(map[string]string{
				"username": uUser,
				"password": uPass,
				"email":    uEmail,
				"name":     uName,
			})
			status, body, err := cl.do("POST", "/idp/register_user", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("user add fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	userAddCmd.Flags().StringVar(&uUser, "username", "", "Username (requerido)")
	userAddCmd.Flags().StringVar(&uPass, "password", "", "Password (requerido)")
	userAddCmd.Flags().StringVar(&uEmail, "email", "", "Email (opcional)")
	userAddCmd.Flags().StringVar(&uName, "name", "", "Nombre para mostrar (opcional)")

	// ─── client add ───
	var cID, cSecret, cRedirect string
	clientAddCmd := &cobra.Command{
		Use:   "add",
		Short: "Registra un client OAuth (POST /idp/register_client)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := newClient()
			if err != nil {
				return err
			}
			if cID == "" || cSecret == "" || cRedirect == "" {
				return fmt.Errorf("--id, --secret y --redirect-uri son requeridos")
			}
			b, _ := json.Marshal(map[string]string{
				"client_id":     cID,
				"client_secret": cSecret,
				"redirect_uri":  cRedirect,
			})
			status, body, err := cl.do("POST", "/idp/register_client", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("client add fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	clientAddCmd.Flags().StringVar(&cID, "id", "", "client_id (requerido)")
	clientAddCmd.Flags().StringVar(&cSecret, "secret", "", "client_secret (requerido)")
	clientAddCmd.Flags().StringVar(&cRedirect, "redirect-uri", "", "redirect_uri exacta (requerido)")

	// ─── token verify ───
	tokenVerifyCmd := &cobra.Command{
		Use:   "verify <jwt>",
		Short: "Verifica un access token con el secreto del servicio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg(cfgPath)
			if err != nil {
				return err
			}
			issuer := jwtx.NewIssuer(cfg.IDP.Issuer, cfg.IDP.Secret, config.Dur(cfg.IDP.TokenTTL))
			claims, err := issuer.Verify(args[0])
			if err != nil {
				return fmt.Errorf("token inválido: %w", err)
			}
			p, _ := json.MarshalIndent(claims, "", "  ")
			fmt.Println(string(p))
			return nil
		},
	}

	// ─── db migrate / db seed ───
	dbMigrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones embebidas sobre Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg(cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(ctx); err != nil {
				return err
			}
			fmt.Println("migrations ok")
			return nil
		},
	}

	var seedUser, seedPass, seedClientID, seedClientSecret, seedRedirect string
	dbSeedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Crea usuario y client de desarrollo (idempotente)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg(cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(ctx); err != nil {
				return err
			}

			hasher, err := password.New(cfg.IDP.PasswordScheme, cfg.IDP.PasswordSalt)
			if err != nil {
				return err
			}
			svc := adminsvc.New(adminsvc.Deps{
				Users:   st.Users(),
				Clients: st.Clients(),
				Hasher:  hasher,
			})

			_, err = svc.RegisterUser(ctx, adminsvc.RegisterUserInput{
				Username: seedUser,
				Password: seedPass,
				Name:     "Dev User",
			})
			switch {
			case errors.Is(err, adminsvc.ErrUsernameTaken):
				fmt.Printf("user %q ya existe\n", seedUser)
			case err != nil:
				return err
			default:
				fmt.Printf("user %q creado\n", seedUser)
			}

			if err := svc.RegisterClient(ctx, adminsvc.RegisterClientInput{
				ClientID:     seedClientID,
				ClientSecret: seedClientSecret,
				RedirectURI:  seedRedirect,
			}); err != nil {
				return err
			}
			fmt.Printf("client %q registrado\n", seedClientID)
			return nil
		},
	}
	dbSeedCmd.Flags().StringVar(&seedUser, "username", "admin", "Username del usuario de desarrollo")
	dbSeedCmd.Flags().StringVar(&seedPass, "password", "admin", "Password del usuario de desarrollo")
	dbSeedCmd.Flags().StringVar(&seedClientID, "client-id", "local-client", "client_id de desarrollo")
	dbSeedCmd.Flags().StringVar(&seedClientSecret, "client-secret", "local-secret", "client_secret de desarrollo")
	dbSeedCmd.Flags().StringVar(&seedRedirect, "redirect-uri", "http://localhost:3000/callback", "redirect_uri de desarrollo")

	// wiring
	userCmd := &cobra.Command{Use: "user", Short: "Operaciones sobre usuarios"}
	userCmd.AddCommand(userAddCmd)

	clientCmd := &cobra.Command{Use: "client", Short: "Operaciones sobre clients OAuth"}
	clientCmd.AddCommand(clientAddCmd)

	tokenCmd := &cobra.Command{Use: "token", Short: "Operaciones sobre tokens"}
	tokenCmd.AddCommand(tokenVerifyCmd)

	dbCmd := &cobra.Command{Use: "db", Short: "Operaciones directas sobre la base"}
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbSeedCmd)

	root.AddCommand(userCmd)
	root.AddCommand(clientCmd)
	root.AddCommand(tokenCmd)
	root.AddCommand(dbCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
