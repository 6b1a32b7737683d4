package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar HTTP.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }

// Bytes crea un campo para bytes escritos en la respuesta.
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// UserAgent crea un campo para el User-Agent del cliente.
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

// Campos de negocio.

// UserID crea un campo para el ID del usuario.
func UserID(v string) zap.Field { return zap.String("user_id", v) }

// Username crea un campo para el nombre de usuario.
func Username(v string) zap.Field { return zap.String("username", v) }

// ClientID crea un campo para el ID del cliente OAuth.
func ClientID(v string) zap.Field { return zap.String("client_id", v) }

// Email crea un campo para el email (usar con cuidado en prod).
func Email(v string) zap.Field { return zap.String("email", v) }

// Campos de sistema.

// Op crea un campo para la operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer crea un campo para la capa (controller, service, store).
func Layer(v string) zap.Field { return zap.String("layer", v) }

// Component crea un campo para el componente dentro de la capa.
func Component(v string) zap.Field { return zap.String("component", v) }

// Err crea un campo para un error.
func Err(err error) zap.Field { return zap.Error(err) }

// Campos genéricos.

func Count(v int) zap.Field             { return zap.Int("count", v) }
func Key(v string) zap.Field            { return zap.String("key", v) }
func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
