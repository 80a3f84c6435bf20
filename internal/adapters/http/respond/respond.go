// Package respond escreve respostas JSON e traduz erros de domínio para HTTP.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
)

type errorBody struct {
	Error      domain.Kind `json:"error"`
	Message    string      `json:"message,omitempty"`
	RetryAfter int         `json:"retryAfter,omitempty"`
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// StatusFor traduz o tipo do erro para o status HTTP.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindBadRequest:
		return http.StatusBadRequest
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error escreve err como {"error", "message", "retryAfter"}. Causas internas vão para o log, nunca para a resposta.
func Error(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	body := errorBody{Error: kind}

	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		body.Message = domainErr.Message
		body.RetryAfter = domainErr.RetryAfter
	}

	switch kind {
	case domain.KindInternal:
		log.Error().Err(err).Msg("request failed")
		if body.Message == "" {
			body.Message = "internal error"
		}
	case domain.KindRateLimited:
		if body.RetryAfter < 1 {
			body.RetryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}

	JSON(w, StatusFor(kind), body)
}
