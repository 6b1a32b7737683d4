// aerogate: identity provider embebido + gateway de documentos.
// Carga .env y config YAML, arma la aplicación y sirve HTTP con
// apagado ordenado en SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/aerogate/internal/app"
	"github.com/dropDatabas3/aerogate/internal/config"
	httpx "github.com/dropDatabas3/aerogate/internal/http"
	healthctrl "github.com/dropDatabas3/aerogate/internal/http/controllers/health"
	"github.com/dropDatabas3/aerogate/internal/observability/logger"
	"github.com/dropDatabas3/aerogate/internal/util"
)

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
	)
	flag.Parse()

	if *flagEnvFile != "" {
		// .env ausente no es error: en producción todo viene del entorno.
		_ = godotenv.Load(*flagEnvFile)
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		// logger todavía no existe; stderr directo.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "aerogate",
		Version:     healthctrl.Version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	for _, warn := range cfg.InsecureDefaults() {
		log.Warn("insecure default", logger.String("setting", warn))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("wiring failed", logger.Err(err))
	}
	defer a.Close()

	srv := httpx.NewServer(cfg.Server.Addr, a.Handler, httpx.ServerOptions{
		ReadTimeout:  config.Dur(cfg.Server.ReadTimeout),
		WriteTimeout: config.Dur(cfg.Server.WriteTimeout),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			logger.String("addr", cfg.Server.Addr),
			logger.String("issuer", cfg.IDP.Issuer),
			logger.String("db", util.MaskDSN(cfg.Storage.DSN)),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", logger.Err(err))
		}
	case <-ctx.Done():
		stop()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown incomplete", logger.Err(err))
		}
	}
}
