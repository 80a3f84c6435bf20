package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/JeanGrijp/settlement-guard/internal/core/ports"
)

// RedirectCompleter finaliza o login OAuth enviando o navegador a uma página fixa.
// A troca do código com o provedor de identidade acontece antes, fora deste serviço.
type RedirectCompleter struct {
	successURL string
}

var _ ports.LoginCompleter = (*RedirectCompleter)(nil)

func NewRedirectCompleter(successURL string) *RedirectCompleter {
	if successURL == "" {
		successURL = "/"
	}
	return &RedirectCompleter{successURL: successURL}
}

func (c *RedirectCompleter) SuccessURL() string {
	return c.successURL
}

func (c *RedirectCompleter) Complete(_ context.Context, code, state string) (string, error) {
	if strings.TrimSpace(code) == "" || strings.TrimSpace(state) == "" {
		return "", fmt.Errorf("code and state are required")
	}
	return c.successURL, nil
}
