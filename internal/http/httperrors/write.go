package httperrors

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

// WriteError serializa un error al wire format estándar. El request id se
// toma del header de respuesta (lo puso WithRequestID).
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Error:            appErr.Code,
		ErrorDescription: appErr.Description,
		RequestID:        w.Header().Get("X-Request-ID"),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteJSON: respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodifica JSON de forma tolerante (NO falla por campos
// desconocidos). Valida Content-Type y limita el body a 1MB. Escribe la
// respuesta de error por su cuenta; el caller solo corta en false.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, ErrInvalidJSON.WithDetail("Content-Type must be application/json"))
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, ErrInvalidJSON)
		return false
	}
	return true
}
