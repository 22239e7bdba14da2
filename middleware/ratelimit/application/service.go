package application

import (
	"context"
	"time"

	"feedback-drop/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store domain.WindowStore
	// Now é injetável para testes; nil usa time.Now.
	Now func() time.Time
}

// Decide registra o hit da chave e decide se o request passa.
//
// Sem store, ou com falha do store, o request passa: o limite é uma medida
// anti-abuso, não uma fronteira de segurança.
func (s Service) Decide(ctx context.Context, key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}

	win, err := s.Store.Hit(ctx, key)
	if err != nil {
		return domain.Decision{Allowed: true, Degraded: true}
	}

	dec := domain.Decision{
		Allowed:   !win.Exceeded(),
		Limit:     win.Limit,
		Remaining: win.Remaining(),
		ResetAt:   win.ResetAt,
	}
	if dec.Allowed {
		return dec
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	dec.RetryAfter = win.ResetAt.Sub(now())
	if dec.RetryAfter < time.Second {
		dec.RetryAfter = time.Second
	}
	return dec
}
