// Package logger provides a singleton Zap logger with context-based scoping.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada request lleva su propio logger "scoped" con
//     campos adicionales (request_id, user_id) sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Levels: debug, info, warn, error (configurable via LOG_LEVEL).
//
// # Usage
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   cfg.Env,       // "dev" o "prod"
//	    Level: cfg.LogLevel,  // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// En controllers/services (con contexto):
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token"))
//	log.Info("code exchanged", logger.ClientID(clientID))
//
// Sin contexto (fallback al singleton):
//
//	logger.L().Info("service started")
package logger
