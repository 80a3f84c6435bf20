package domain

import (
	"errors"
	"fmt"
)

// Kind classifica falhas de negócio em categorias legíveis por máquina.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindForbidden   Kind = "forbidden"
	KindBadRequest  Kind = "bad_request"
	KindRateLimited Kind = "rate_limited"
	KindInternal    Kind = "internal"
)

// Error carrega o tipo da falha, a mensagem para o cliente e a causa opcional.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is casa com erros sentinela que carregam apenas o tipo.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrBadRequest   = &Error{Kind: KindBadRequest}
	ErrBlocked      = &Error{Kind: KindRateLimited}
	ErrInternal     = &Error{Kind: KindInternal}
	ErrUnauthorized = errors.New("no valid session")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPlanNotFound        = errors.New("plan not found")
	ErrGatewayOrderMissing = errors.New("gateway order not found")
)

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// RateLimited monta a rejeição devolvida quando a admissão é negada.
func RateLimited(retryAfter int) *Error {
	return &Error{Kind: KindRateLimited, Message: "too many requests", RetryAfter: retryAfter}
}

// KindOf informa o tipo de err; o que não for classificado é internal.
func KindOf(err error) Kind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsBlockedError(err error) bool {
	return errors.Is(err, ErrBlocked)
}
