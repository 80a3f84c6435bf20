// Package handlers agrupa os handlers HTTP da API de pagamentos.
package handlers

import (
	"context"
	"net/http"

	"github.com/JeanGrijp/settlement-guard/internal/adapters/http/respond"
)

// HealthCheck informa se uma dependência está acessível.
type HealthCheck func(ctx context.Context) error

// HealthHandler responde com o estado das dependências registradas.
func HealthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		respond.JSON(w, status, map[string]any{"status": http.StatusText(status), "checks": results})
	}
}
