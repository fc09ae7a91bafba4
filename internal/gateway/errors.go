package gateway

import (
	"errors"
	"fmt"

	"pdf-audio/internal/domain"
)

// User-facing messages for each failure kind.
const (
	MsgCatalogUnavailable = "Error al cargar las voces."
	MsgExtractionFailed   = "Error al extraer el texto del PDF."
	MsgSynthesisFailed    = "Error al generar el audio."
	MsgSynthesisUnknown   = "Ocurrió un error desconocido al generar el audio."
	MsgDownloadFailed     = "Error al descargar el audio."
)

// Error is a classified backend failure. Message is safe to show to the user;
// Err carries the underlying transport or decoding cause.
type Error struct {
	Kind       domain.ErrorKind `json:"kind"`
	Op         string           `json:"op"`
	Message    string           `json:"message"`
	StatusCode int              `json:"statusCode,omitempty"`
	Err        error            `json:"-"`
}

// Error formats gateway failures for logs.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", e.Op, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status=%d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the kind of a gateway error, or fallback for any other error.
func KindOf(err error, fallback domain.ErrorKind) domain.ErrorKind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return fallback
}

// MessageOf returns the user-facing message of a gateway error, or fallback.
func MessageOf(err error, fallback string) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return fallback
}
