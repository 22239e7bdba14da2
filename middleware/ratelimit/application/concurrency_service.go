package application

import (
	"context"
	"time"

	"feedback-drop/middleware/ratelimit/domain"
)

// InFlightService decide se um request ganha uma vaga de processamento.
// Não sabe nada sobre HTTP.
type InFlightService struct {
	Pool domain.SlotPool
	// Wait é quanto um request espera por vaga; <= 0 espera até o ctx do request encerrar.
	Wait time.Duration
}

// Acquire retorna (release, ok). Com ok=false nenhuma vaga foi ocupada e
// release é nil.
func (s InFlightService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.Wait <= 0 {
		return s.Pool.Acquire(ctx)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.Wait)
	defer cancel()
	return s.Pool.Acquire(waitCtx)
}
