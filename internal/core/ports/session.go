package ports

import (
	"context"
	"net/http"

	"github.com/JeanGrijp/settlement-guard/internal/core/domain"
)

// SessionService resolve o usuário autenticado; emitir sessões fica fora do núcleo.
type SessionService interface {
	CurrentUser(r *http.Request) (*domain.User, error)
}

// LoginCompleter finaliza o login OAuth e devolve o destino do redirecionamento.
// O destino não é guardado junto da entrada de replay: entregas repetidas
// redirecionam para a URL de sucesso configurada no handler.
type LoginCompleter interface {
	Complete(ctx context.Context, code, state string) (string, error)
}
