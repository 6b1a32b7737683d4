package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Valores de desarrollo. Si aparecen en runtime hay que gritarlo en los
// logs de arranque (main usa InsecureDefaults).
const (
	DevSecret       = "change_this"
	DevPasswordSalt = "salt"
)

type Config struct {
	App struct {
		// dev | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		ReadTimeout        string   `yaml:"read_timeout"`
		WriteTimeout       string   `yaml:"write_timeout"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		CORSAllowAll       bool     `yaml:"cors_allow_all"`
	} `yaml:"server"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	IDP struct {
		Issuer         string `yaml:"issuer"`
		Secret         string `yaml:"secret"`
		AdminToken     string `yaml:"admin_token"`
		PasswordSalt   string `yaml:"password_salt"`
		PasswordScheme string `yaml:"password_scheme"` // sha256 | argon2id
		SessionTTL     string `yaml:"session_ttl"`
		CodeTTL        string `yaml:"code_ttl"`
		TokenTTL       string `yaml:"token_ttl"`

		Session struct {
			CookieName string `yaml:"cookie_name"`
			Domain     string `yaml:"domain"`
			SameSite   string `yaml:"samesite"`
			Secure     bool   `yaml:"secure"`
		} `yaml:"session"`

		// Gatekeeper. Ambos apagados por defecto: TrustProxyHeaders solo
		// detrás de un proxy perimetral, AllowAnonymous solo en dev local.
		TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
		AllowAnonymous    bool `yaml:"allow_anonymous"`

		// Rate limit por IP sobre login y token exchange. Un valor
		// negativo lo apaga; 0 toma el default.
		RateLimitMax    int    `yaml:"rate_limit_max"`
		RateLimitWindow string `yaml:"rate_limit_window"`
	} `yaml:"idp"`

	LLM struct {
		BaseURL         string  `yaml:"base_url"`
		APIKey          string  `yaml:"api_key"`
		ModelKey        string  `yaml:"model_key"`
		Temperature     float64 `yaml:"temperature"`
		TopP            float64 `yaml:"top_p"`
		MaxTokens       int     `yaml:"max_tokens"`
		MaxConcurrent   int     `yaml:"max_concurrent"`
		RequestDelay    string  `yaml:"request_delay"`
		CustomPrompt    string  `yaml:"custom_prompt"`
		NormalizePrompt string  `yaml:"normalize_prompt"`
		CacheTTL        string  `yaml:"cache_ttl"`
	} `yaml:"llm"`

	RAG struct {
		PluginKey     string `yaml:"plugin_key"`
		MaxConcurrent int    `yaml:"max_concurrent"`
		RequestDelay  string `yaml:"request_delay"`
		CacheTTL      string `yaml:"cache_ttl"`
	} `yaml:"rag"`

	OCR struct {
		BaseURL      string `yaml:"base_url"`
		APIKey       string `yaml:"api_key"`
		PollInterval string `yaml:"poll_interval"`
		PollTimeout  string `yaml:"poll_timeout"`
	} `yaml:"ocr"`

	BlobCache struct {
		Dir string `yaml:"dir"`
	} `yaml:"blob_cache"`
}

// Load lee el YAML (opcional: path vacío o inexistente ⇒ solo defaults+env),
// aplica sane defaults y pisa con variables de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":4180"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "30s"
	}
	if c.Server.WriteTimeout == "" {
		// upload-pdf espera el polling de OCR dentro del mismo request
		c.Server.WriteTimeout = "6m"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "1h"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "aerogate:"
	}
	if c.IDP.Issuer == "" {
		c.IDP.Issuer = "http://localhost:4180"
	}
	if c.IDP.Secret == "" {
		c.IDP.Secret = DevSecret
	}
	if c.IDP.PasswordSalt == "" {
		c.IDP.PasswordSalt = DevPasswordSalt
	}
	if c.IDP.PasswordScheme == "" {
		c.IDP.PasswordScheme = "sha256"
	}
	if c.IDP.SessionTTL == "" {
		c.IDP.SessionTTL = "1h"
	}
	if c.IDP.CodeTTL == "" {
		c.IDP.CodeTTL = "5m"
	}
	if c.IDP.TokenTTL == "" {
		c.IDP.TokenTTL = "30m"
	}
	if c.IDP.Session.CookieName == "" {
		c.IDP.Session.CookieName = "aerogate_session"
	}
	if c.IDP.Session.SameSite == "" {
		c.IDP.Session.SameSite = "Lax"
	}
	if c.IDP.RateLimitMax == 0 {
		c.IDP.RateLimitMax = 30
	}
	if c.IDP.RateLimitWindow == "" {
		c.IDP.RateLimitWindow = "1m"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.TopP == 0 {
		c.LLM.TopP = 0.95
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 800
	}
	if c.LLM.MaxConcurrent == 0 {
		c.LLM.MaxConcurrent = 6
	}
	if c.LLM.RequestDelay == "" {
		c.LLM.RequestDelay = "600ms"
	}
	if c.LLM.ModelKey == "" {
		c.LLM.ModelKey = "1"
	}
	if c.LLM.CacheTTL == "" {
		c.LLM.CacheTTL = "1h"
	}
	if c.RAG.MaxConcurrent == 0 {
		c.RAG.MaxConcurrent = 6
	}
	if c.RAG.RequestDelay == "" {
		c.RAG.RequestDelay = "400ms"
	}
	if c.RAG.CacheTTL == "" {
		c.RAG.CacheTTL = "30m"
	}
	if c.OCR.BaseURL == "" {
		c.OCR.BaseURL = "https://api.inside.ai/v1"
	}
	if c.OCR.PollInterval == "" {
		c.OCR.PollInterval = "5s"
	}
	if c.OCR.PollTimeout == "" {
		c.OCR.PollTimeout = "5m"
	}
	if c.BlobCache.Dir == "" {
		c.BlobCache.Dir = "./data/ocr-cache"
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvFloat(key string) (float64, bool) {
	if s, ok := getEnvStr(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// getEnvSeconds lee un entero de segundos (formato heredado de despliegues
// previos: IDP_SESSION_TTL=3600) y lo expone como string de duración.
func getEnvSeconds(key string) (string, bool) {
	if i, ok := getEnvInt(key); ok && i > 0 {
		return (time.Duration(i) * time.Second).String(), true
	}
	return "", false
}

// getEnvDelay lee un float de segundos (LLM_REQUEST_DELAY=0.6).
func getEnvDelay(key string) (string, bool) {
	if f, ok := getEnvFloat(key); ok && f >= 0 {
		return time.Duration(f * float64(time.Second)).String(), true
	}
	return "", false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides pisa el YAML con variables de entorno. Los nombres
// heredados del despliegue original (INTERNAL_JWT_SECRET, IDP_*,
// SOFTBANK_*, DX_SUITE_*) se respetan tal cual.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("FRONTEND_URL"); ok {
		c.Server.CORSAllowedOrigins = append(c.Server.CORSAllowedOrigins, v)
	}
	if v, ok := getEnvCSV("CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvBool("CORS_ALLOW_ALL"); ok {
		c.Server.CORSAllowAll = v
	}

	// STORAGE
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvSeconds("CACHE_TTL"); ok {
		c.LLM.CacheTTL = v
		c.Cache.Memory.DefaultTTL = v
	}

	// IDP
	if v, ok := getEnvStr("IDP_ISSUER"); ok {
		c.IDP.Issuer = v
	}
	if v, ok := getEnvStr("INTERNAL_JWT_SECRET"); ok {
		c.IDP.Secret = v
	}
	if v, ok := getEnvStr("IDP_ADMIN_TOKEN"); ok {
		c.IDP.AdminToken = v
	}
	if v, ok := getEnvStr("IDP_PASSWORD_SALT"); ok {
		c.IDP.PasswordSalt = v
	}
	if v, ok := getEnvStr("IDP_PASSWORD_SCHEME"); ok {
		c.IDP.PasswordScheme = strings.ToLower(v)
	}
	if v, ok := getEnvSeconds("IDP_SESSION_TTL"); ok {
		c.IDP.SessionTTL = v
	}
	if v, ok := getEnvSeconds("IDP_CODE_TTL"); ok {
		c.IDP.CodeTTL = v
	}
	if v, ok := getEnvSeconds("JWT_EXPIRE_SECONDS"); ok {
		c.IDP.TokenTTL = v
	}
	if v, ok := getEnvStr("IDP_SESSION_COOKIE_NAME"); ok {
		c.IDP.Session.CookieName = v
	}
	if v, ok := getEnvBool("IDP_SESSION_SECURE"); ok {
		c.IDP.Session.Secure = v
	}
	if v, ok := getEnvBool("TRUST_PROXY_HEADERS"); ok {
		c.IDP.TrustProxyHeaders = v
	}
	if v, ok := getEnvBool("ALLOW_ANONYMOUS"); ok {
		c.IDP.AllowAnonymous = v
	}
	if v, ok := getEnvInt("IDP_RATE_LIMIT_MAX"); ok {
		c.IDP.RateLimitMax = v
	}
	if v, ok := getEnvSeconds("IDP_RATE_LIMIT_WINDOW"); ok {
		c.IDP.RateLimitWindow = v
	}

	// LLM (SoftBank gateway)
	if v, ok := getEnvStr("SOFTBANK_API_BASE_URL"); ok {
		c.LLM.BaseURL = v
	}
	if v, ok := getEnvStr("SOFTBANK_API_KEY"); ok {
		c.LLM.APIKey = v
	}
	if v, ok := getEnvStr("SOFTBANK_GPT_MODEL_KEY"); ok {
		c.LLM.ModelKey = v
	}
	if v, ok := getEnvFloat("TEMPERATURE"); ok {
		c.LLM.Temperature = v
	}
	if v, ok := getEnvFloat("TOP_P"); ok {
		c.LLM.TopP = v
	}
	if v, ok := getEnvInt("MAX_TOKENS"); ok {
		c.LLM.MaxTokens = v
	}
	if v, ok := getEnvInt("LLM_MAX_CONCURRENT"); ok {
		c.LLM.MaxConcurrent = v
	}
	if v, ok := getEnvDelay("LLM_REQUEST_DELAY"); ok {
		c.LLM.RequestDelay = v
	}
	if v, ok := getEnvStr("CUSTOM_PROMPT"); ok {
		c.LLM.CustomPrompt = v
	}
	if v, ok := getEnvStr("CUSTOM_NORMALIZE_PROMPT"); ok {
		c.LLM.NormalizePrompt = v
	}

	// RAG
	if v, ok := getEnvStr("SOFTBANK_PLUGIN_KEY"); ok {
		c.RAG.PluginKey = v
	}
	if v, ok := getEnvInt("RAG_MAX_CONCURRENT"); ok {
		c.RAG.MaxConcurrent = v
	}
	if v, ok := getEnvDelay("RAG_REQUEST_DELAY"); ok {
		c.RAG.RequestDelay = v
	}
	if v, ok := getEnvSeconds("RAG_CACHE_TTL"); ok {
		c.RAG.CacheTTL = v
	}

	// OCR (DX Suite)
	if v, ok := getEnvStr("DX_SUITE_API_URL"); ok {
		c.OCR.BaseURL = v
	}
	if v, ok := getEnvStr("DX_SUITE_API_KEY"); ok {
		c.OCR.APIKey = v
	}

	// BLOB CACHE
	if v, ok := getEnvStr("BLOB_CACHE_DIR"); ok {
		c.BlobCache.Dir = v
	}
}

// Validate revisa que las duraciones declaradas parseen.
func (c *Config) Validate() error {
	durs := map[string]string{
		"server.read_timeout":      c.Server.ReadTimeout,
		"server.write_timeout":     c.Server.WriteTimeout,
		"cache.memory.default_ttl": c.Cache.Memory.DefaultTTL,
		"idp.session_ttl":          c.IDP.SessionTTL,
		"idp.code_ttl":             c.IDP.CodeTTL,
		"idp.token_ttl":            c.IDP.TokenTTL,
		"idp.rate_limit_window":    c.IDP.RateLimitWindow,
		"llm.request_delay":        c.LLM.RequestDelay,
		"llm.cache_ttl":            c.LLM.CacheTTL,
		"rag.request_delay":        c.RAG.RequestDelay,
		"rag.cache_ttl":            c.RAG.CacheTTL,
		"ocr.poll_interval":        c.OCR.PollInterval,
		"ocr.poll_timeout":         c.OCR.PollTimeout,
	}
	for name, v := range durs {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return fmt.Errorf("config: storage.postgres.conn_max_lifetime: %w", err)
		}
	}
	switch c.IDP.PasswordScheme {
	case "sha256", "argon2id":
	default:
		return fmt.Errorf("config: idp.password_scheme: unknown scheme %q", c.IDP.PasswordScheme)
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: cache.kind: unknown kind %q", c.Cache.Kind)
	}
	return nil
}

// Dur parsea una duración ya validada.
func Dur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// InsecureDefaults lista los valores críticos que siguen en su default de
// desarrollo. main los loguea en warn al arrancar.
func (c *Config) InsecureDefaults() []string {
	var out []string
	if c.IDP.Secret == DevSecret {
		out = append(out, "idp.secret (INTERNAL_JWT_SECRET) is the development default")
	}
	if c.IDP.PasswordSalt == DevPasswordSalt {
		out = append(out, "idp.password_salt (IDP_PASSWORD_SALT) is the development default")
	}
	if c.IDP.AdminToken == "" {
		out = append(out, "idp.admin_token (IDP_ADMIN_TOKEN) unset; registration endpoints disabled")
	}
	if c.IDP.AllowAnonymous {
		out = append(out, "idp.allow_anonymous is enabled; unauthenticated API access permitted")
	}
	return out
}
