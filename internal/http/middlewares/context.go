package middlewares

import "context"

type ctxKey string

const (
	ctxRequestIDKey ctxKey = "request_id"
	ctxIdentityKey  ctxKey = "identity"
)

// Identity es el resultado del gatekeeper: quién hace el request.
// Subject es el user id del token (o el usuario forwardeado por el proxy).
type Identity struct {
	Subject string
	Email   string
	Name    string
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request id del contexto, o "" si no hay.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithIdentity inyecta la identidad autenticada en el contexto.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}

// IdentityFrom obtiene la identidad del contexto. ok es false si el
// gatekeeper no corrió (ruta sin proteger).
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxIdentityKey).(Identity)
	return id, ok
}
