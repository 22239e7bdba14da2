package domain

// Camada de domínio do rate limit por janela fixa.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

// Key identifica o cliente contado pelo limiter. No servidor de feedback é
// sempre o endereço de transporte, nunca um header.
type Key string

// Window é o estado de uma janela após registrar um hit.
//
// A janela começa no primeiro hit de uma chave e dura um período fixo; quando
// expira a contagem volta a zero sem intervenção manual.
type Window struct {
	// Count já inclui o hit atual.
	Count   int
	Limit   int
	ResetAt time.Time
}

// Exceeded indica que o hit atual passou do limite da janela.
func (w Window) Exceeded() bool { return w.Count > w.Limit }

// Remaining é quanto ainda cabe na janela (nunca negativo).
func (w Window) Remaining() int {
	if r := w.Limit - w.Count; r > 0 {
		return r
	}
	return 0
}

// WindowStore registra um hit para a chave e devolve a janela resultante.
// Implementações: memória (processo) ou Redis (compartilhado).
type WindowStore interface {
	Hit(ctx context.Context, key Key) (Window, error)
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
	// Degraded indica que o store falhou e a decisão foi fail-open.
	Degraded bool
}
