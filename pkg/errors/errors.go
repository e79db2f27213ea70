// Package errors defines the coded error type shared by services and handlers. A
// Code decides the HTTP status and the public message; the wrapped cause only reaches
// the logs.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodePermission    Code = "PERMISSION_DENIED"
	CodeStoreClosed   Code = "STORE_CLOSED"
	CodeSubmission    Code = "SUBMISSION_FAILED"
	CodeRateLimit     Code = "RATE_LIMITED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code surfaces over HTTP. PublicMessage is shown to customers
// and operators, so it is written in Portuguese.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	retryable   = true
	withDetails = true
)

func meta(status int, retry bool, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retry, PublicMessage: public, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, false, "Dados inválidos.", withDetails),
	CodeUnauthorized:  meta(http.StatusUnauthorized, false, "Faça login para continuar.", false),
	CodeForbidden:     meta(http.StatusForbidden, false, "Acesso negado.", false),
	CodeNotFound:      meta(http.StatusNotFound, false, "Não encontrado.", false),
	CodeConflict:      meta(http.StatusConflict, false, "Conflito com o estado atual.", false),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, false, "Mudança de status não permitida.", withDetails),
	CodeIdempotency:   meta(http.StatusConflict, false, "Chave de idempotência reutilizada.", withDetails),
	CodePermission:    meta(http.StatusForbidden, false, "Permissão negada.", false),
	CodeStoreClosed:   meta(http.StatusUnprocessableEntity, false, "A loja está fechada no momento.", withDetails),
	CodeSubmission:    meta(http.StatusServiceUnavailable, retryable, "Erro ao enviar pedido. Tente novamente.", withDetails),
	CodeRateLimit:     meta(http.StatusTooManyRequests, retryable, "Muitas tentativas. Aguarde um pouco.", false),
	CodeInternal:      meta(http.StatusInternalServerError, retryable, "Erro interno. Tente novamente.", false),
	CodeDependency:    meta(http.StatusServiceUnavailable, retryable, "Serviço indisponível. Tente novamente.", withDetails),
}

// MetadataFor returns the transport metadata for code, falling back to CodeInternal.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error carries a code, an internal message, optional client-safe details and the
// cause. Error() omits the cause; use errors.Unwrap or LogFields to reach it.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost *Error in err's chain carries code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
