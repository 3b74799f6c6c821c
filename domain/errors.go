package domain

import (
	"errors"
	"fmt"
)

// ErrorCode representa un código de error estable del dominio de copiado.
type ErrorCode string

// Códigos de error estándar
const (
	// ErrNoError indica éxito (sin error)
	ErrNoError ErrorCode = "NO_ERROR"

	// Errores de autenticación/resolución
	ErrUnauthorized ErrorCode = "UNAUTHORIZED" // Credencial inválida o cuenta inexistente
	ErrNotFound     ErrorCode = "NOT_FOUND"    // Sin master activo / cuenta / token

	// Errores de request
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrInvalidIntentData    ErrorCode = "INVALID_INTENT_DATA"

	// Errores de ejecución
	ErrDedupeConflict ErrorCode = "DEDUPE_CONFLICT" // Idempotency key duplicada (no-op)
	ErrPartialFailure ErrorCode = "PARTIAL_FAILURE" // Batch completado con fallas por fila

	// Errores de sistema
	ErrUnknown ErrorCode = "UNKNOWN"
)

// CopyError representa un error del dominio de copiado con contexto.
type CopyError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implementa la interfaz error.
func (e *CopyError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implementa la interfaz errors.Unwrap.
func (e *CopyError) Unwrap() error {
	return e.Wrapped
}

// WithDetail agrega un detalle al error.
func (e *CopyError) WithDetail(key string, value interface{}) *CopyError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewError crea un nuevo CopyError.
//
// Example:
//
//	err := domain.NewError(domain.ErrNotFound, "no active master account")
func NewError(code ErrorCode, message string) *CopyError {
	return &CopyError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError envuelve un error existente con contexto de copiado.
//
// Example:
//
//	err := domain.WrapError(domain.ErrUnknown, "storage lookup failed", originalErr)
func WrapError(code ErrorCode, message string, wrapped error) *CopyError {
	return &CopyError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: wrapped,
	}
}

// NewValidationError crea un CopyError de validación con el campo y valor
// ofensivos como detalles.
func NewValidationError(field string, value interface{}, message string) *CopyError {
	return &CopyError{
		Code:    ErrInvalidRequest,
		Message: fmt.Sprintf("%s: %s", field, message),
		Details: map[string]interface{}{
			"field": field,
			"value": value,
		},
	}
}

// CodeOf extrae el ErrorCode de un error arbitrario.
//
// Retorna ErrUnknown si el error no es un CopyError (ni envuelve uno):
// los errores de storage nunca exponen su texto más allá del fallback
// genérico.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrNoError
	}
	var ce *CopyError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrUnknown
}

// IsCode indica si err porta el código dado.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
