// Package httperrors define el catálogo de errores HTTP de aerogate.
//
// Todas las superficies comparten el mismo wire format:
//
//	{"error": "<code>", "error_description": "...", "request_id": "..."}
//
// Los endpoints OAuth usan códigos RFC 6749 (invalid_client, invalid_grant,
// ...); el resto de la API usa códigos propios en el mismo formato. El
// detalle de QUÉ falló exactamente (secret vs redirect, código vencido vs
// inexistente) vive solo en los logs del servidor, nunca en la respuesta.
package httperrors

import (
	"fmt"
	"net/http"
)

// AppError es el error estándar de la aplicación: código estable para el
// cliente, descripción corta y status HTTP. Err guarda la causa original
// para logs; no se serializa.
type AppError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	HTTPStatus  int    `json:"-"`
	Err         error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Description)
}

func (e *AppError) Unwrap() error { return e.Err }

// New crea un AppError ad-hoc.
func New(status int, code, description string) *AppError {
	return &AppError{Code: code, Description: description, HTTPStatus: status}
}

// WithDetail devuelve una COPIA con otra descripción, para no mutar las
// variables globales del catálogo.
func (e *AppError) WithDetail(description string) *AppError {
	out := *e
	out.Description = description
	return &out
}

// WithCause devuelve una COPIA que envuelve la causa original.
func (e *AppError) WithCause(err error) *AppError {
	out := *e
	out.Err = err
	return &out
}

// FromError normaliza cualquier error a *AppError. Errores desconocidos se
// convierten en internal_error conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// Catálogo genérico.
var (
	ErrBadRequest = &AppError{
		Code:       "bad_request",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrInvalidJSON = &AppError{
		Code:        "invalid_json",
		Description: "request body must be valid JSON",
		HTTPStatus:  http.StatusBadRequest,
	}
	ErrUnauthorized = &AppError{
		Code:       "unauthorized",
		HTTPStatus: http.StatusUnauthorized,
	}
	ErrForbidden = &AppError{
		Code:       "forbidden",
		HTTPStatus: http.StatusForbidden,
	}
	ErrNotFound = &AppError{
		Code:       "not_found",
		HTTPStatus: http.StatusNotFound,
	}
	ErrMethodNotAllowed = &AppError{
		Code:       "method_not_allowed",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
	ErrConflict = &AppError{
		Code:       "conflict",
		HTTPStatus: http.StatusConflict,
	}
	ErrPayloadTooLarge = &AppError{
		Code:       "payload_too_large",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
	ErrRateLimited = &AppError{
		Code:        "rate_limit_exceeded",
		Description: "too many requests, slow down",
		HTTPStatus:  http.StatusTooManyRequests,
	}
	ErrInternal = &AppError{
		Code:       "internal_error",
		HTTPStatus: http.StatusInternalServerError,
	}
	ErrServiceUnavailable = &AppError{
		Code:       "service_unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
	ErrBadGateway = &AppError{
		Code:        "bad_gateway",
		Description: "upstream service failed",
		HTTPStatus:  http.StatusBadGateway,
	}
)

// Catálogo OAuth (RFC 6749 §4.1.2.1 y §5.2, más los códigos del IDP).
var (
	ErrUnsupportedResponseType = &AppError{
		Code:        "unsupported_response_type",
		Description: "only response_type=code is supported",
		HTTPStatus:  http.StatusBadRequest,
	}
	// ErrInvalidClientAuthorize: cliente desconocido en /oauth/authorize.
	ErrInvalidClientAuthorize = &AppError{
		Code:        "invalid_client",
		Description: "unknown client",
		HTTPStatus:  http.StatusBadRequest,
	}
	// ErrInvalidClient: fallo de autenticación del cliente en /oauth/token.
	// Indiferenciado a propósito: cubre client desconocido, secret y
	// redirect_uri.
	ErrInvalidClient = &AppError{
		Code:        "invalid_client",
		Description: "client authentication failed",
		HTTPStatus:  http.StatusUnauthorized,
	}
	ErrInvalidRedirectURI = &AppError{
		Code:        "invalid_redirect_uri",
		Description: "redirect_uri does not match the registered value",
		HTTPStatus:  http.StatusBadRequest,
	}
	ErrUnsupportedGrantType = &AppError{
		Code:        "unsupported_grant_type",
		Description: "only grant_type=authorization_code is supported",
		HTTPStatus:  http.StatusBadRequest,
	}
	ErrInvalidGrant = &AppError{
		Code:        "invalid_grant",
		Description: "authorization code is invalid or expired",
		HTTPStatus:  http.StatusBadRequest,
	}
	ErrInvalidToken = &AppError{
		Code:        "invalid_token",
		Description: "access token is invalid or expired",
		HTTPStatus:  http.StatusUnauthorized,
	}
	ErrInvalidRequest = &AppError{
		Code:       "invalid_request",
		HTTPStatus: http.StatusBadRequest,
	}
)
