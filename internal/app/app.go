// Package app arma la aplicación completa: infraestructura (Postgres,
// cache, blob cache), clientes upstream (LLM, RAG, OCR), services,
// controllers y router. main solo carga config, llama New y sirve.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/aerogate/internal/blobcache"
	"github.com/dropDatabas3/aerogate/internal/cache"
	"github.com/dropDatabas3/aerogate/internal/config"
	httpx "github.com/dropDatabas3/aerogate/internal/http"
	adminctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/admin"
	apictrl "github.com/dropDatabas3/aerogate/internal/http/controllers/api"
	healthctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/oauth"
	sessionctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/session"
	mw "github.com/dropDatabas3/aerogate/internal/http/middlewares"
	"github.com/dropDatabas3/aerogate/internal/http/router"
	adminsvc "github.com/dropDatabas3/aerogate/internal/http/services/admin"
	oauthsvc "github.com/dropDatabas3/aerogate/internal/http/services/oauth"
	sessionsvc "github.com/dropDatabas3/aerogate/internal/http/services/session"
	jwtx "github.com/dropDatabas3/aerogate/internal/jwt"
	"github.com/dropDatabas3/aerogate/internal/llm"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
	"github.com/dropDatabas3/aerogate/internal/ocr"
	"github.com/dropDatabas3/aerogate/internal/rag"
	"github.com/dropDatabas3/aerogate/internal/rate"
	"github.com/dropDatabas3/aerogate/internal/security/password"
	"github.com/dropDatabas3/aerogate/internal/store"
)

// App es la aplicación armada, lista para servir.
type App struct {
	Handler http.Handler
	Store   *store.Store
	Cache   cache.Client
	Blobs   *blobcache.Store
	Issuer  *jwtx.Issuer
}

// New construye la aplicación a partir de la configuración. Abre el pool
// de Postgres y corre las migraciones embebidas; un fallo en cualquier
// dependencia cierra lo ya abierto y devuelve error.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// ─── Storage ───
	if cfg.Storage.DSN == "" {
		return nil, fmt.Errorf("app: storage.dsn (DATABASE_URL) is required")
	}
	st, err := store.New(ctx, cfg.Storage.DSN, store.Options{
		MaxConns:        cfg.Storage.Postgres.MaxConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("app: migrate: %w", err)
	}

	// ─── Cache ───
	cacheClient, err := cache.New(cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: config.Dur(cfg.Cache.Memory.DefaultTTL),
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("app: open cache: %w", err)
	}

	// ─── Rate limiter (login + token exchange) ───
	// Con backend redis el limiter comparte la conexión del cache, así
	// el conteo vale para todas las réplicas.
	var limiter rate.Limiter
	if cfg.IDP.RateLimitMax > 0 {
		window := config.Dur(cfg.IDP.RateLimitWindow)
		if raw, ok := cacheClient.(interface{ Raw() *redis.Client }); ok {
			limiter = rate.NewRedisLimiter(raw.Raw(), "rl:", cfg.IDP.RateLimitMax, window)
		} else {
			limiter = rate.NewMemoryLimiter("rl:", cfg.IDP.RateLimitMax, window)
		}
	}

	// ─── IDP ───
	hasher, err := password.New(cfg.IDP.PasswordScheme, cfg.IDP.PasswordSalt)
	if err != nil {
		_ = cacheClient.Close()
		st.Close()
		return nil, fmt.Errorf("app: password hasher: %w", err)
	}
	issuer := jwtx.NewIssuer(cfg.IDP.Issuer, cfg.IDP.Secret, config.Dur(cfg.IDP.TokenTTL))

	sessions := sessionsvc.New(sessionsvc.Deps{
		Users:    st.Users(),
		Sessions: st.Sessions(),
		Hasher:   hasher,
		TTL:      config.Dur(cfg.IDP.SessionTTL),
		Cookie: sessionsvc.CookieConfig{
			Name:     cfg.IDP.Session.CookieName,
			Domain:   cfg.IDP.Session.Domain,
			SameSite: cfg.IDP.Session.SameSite,
			Secure:   cfg.IDP.Session.Secure,
		},
	})
	oauth := oauthsvc.New(oauthsvc.Deps{
		Clients: st.Clients(),
		Codes:   st.AuthCodes(),
		Users:   st.Users(),
		Issuer:  issuer,
		CodeTTL: config.Dur(cfg.IDP.CodeTTL),
	})
	admin := adminsvc.New(adminsvc.Deps{
		Users:   st.Users(),
		Clients: st.Clients(),
		Hasher:  hasher,
	})

	// ─── Gateway ───
	// Un solo http.Client para los tres upstreams. El timeout cubre cada
	// request individual; el polling largo del OCR corre sobre su context.
	upstream := &http.Client{Timeout: 60 * time.Second}

	llmClient := llm.New(upstream, cacheClient, llm.Config{
		BaseURL:         cfg.LLM.BaseURL,
		APIKey:          cfg.LLM.APIKey,
		ModelKey:        cfg.LLM.ModelKey,
		PluginKey:       cfg.RAG.PluginKey,
		Temperature:     cfg.LLM.Temperature,
		TopP:            cfg.LLM.TopP,
		MaxConcurrent:   cfg.LLM.MaxConcurrent,
		RequestDelay:    config.Dur(cfg.LLM.RequestDelay),
		CustomPrompt:    cfg.LLM.CustomPrompt,
		NormalizePrompt: cfg.LLM.NormalizePrompt,
		CacheTTL:        config.Dur(cfg.LLM.CacheTTL),
	})
	ragClient := rag.New(upstream, cacheClient, rag.Config{
		BaseURL:       cfg.LLM.BaseURL,
		APIKey:        cfg.LLM.APIKey,
		ModelKey:      cfg.LLM.ModelKey,
		PluginKey:     cfg.RAG.PluginKey,
		MaxConcurrent: cfg.RAG.MaxConcurrent,
		RequestDelay:  config.Dur(cfg.RAG.RequestDelay),
		CacheTTL:      config.Dur(cfg.RAG.CacheTTL),
	})
	ocrClient := ocr.New(upstream, ocr.Config{
		BaseURL:      cfg.OCR.BaseURL,
		APIKey:       cfg.OCR.APIKey,
		PollInterval: config.Dur(cfg.OCR.PollInterval),
		PollTimeout:  config.Dur(cfg.OCR.PollTimeout),
	})

	blobs, err := blobcache.New(cfg.BlobCache.Dir)
	if err != nil {
		_ = cacheClient.Close()
		st.Close()
		return nil, fmt.Errorf("app: blob cache: %w", err)
	}

	// ─── Métricas ───
	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{
		Pool: st.Pool,
	})
	if err != nil {
		_ = cacheClient.Close()
		st.Close()
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	handler := router.New(router.Deps{
		Health:    healthctrl.NewController(st.Pool(), cacheClient),
		Login:     sessionctrl.NewLoginController(sessions),
		Logout:    sessionctrl.NewLogoutController(sessions),
		Register:  adminctrl.NewRegisterController(admin),
		Authorize: oauthctrl.NewAuthorizeController(oauth, sessions),
		Token:     oauthctrl.NewTokenController(oauth),
		Userinfo:  oauthctrl.NewUserinfoController(oauth),

		Config:    apictrl.NewConfigController(),
		Translate: apictrl.NewTranslateController(llmClient, ragClient),
		Search:    apictrl.NewSearchController(ragClient),
		Normalize: apictrl.NewNormalizeController(llmClient),
		Document:  apictrl.NewDocumentController(ocrClient, blobs),

		Verifier: issuer,
		Gatekeeper: mw.GatekeeperOptions{
			TrustProxyHeaders: cfg.IDP.TrustProxyHeaders,
			AllowAnonymous:    cfg.IDP.AllowAnonymous,
		},
		AdminToken: cfg.IDP.AdminToken,
		Limiter:    limiter,
		Metrics:    metricsHandler,

		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		CORSAllowAll:       cfg.Server.CORSAllowAll,
	})

	logger.L().Info("application wired",
		logger.String("cache", cfg.Cache.Kind),
		logger.String("password_scheme", cfg.IDP.PasswordScheme),
		logger.Bool("rate_limit", limiter != nil),
		logger.Bool("trust_proxy_headers", cfg.IDP.TrustProxyHeaders),
		logger.Bool("allow_anonymous", cfg.IDP.AllowAnonymous),
	)

	return &App{
		Handler: handler,
		Store:   st,
		Cache:   cacheClient,
		Blobs:   blobs,
		Issuer:  issuer,
	}, nil
}

// Close libera las conexiones de infraestructura. Idempotente.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
}
