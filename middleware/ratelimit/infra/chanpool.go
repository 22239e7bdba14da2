package infra

import (
	"context"

	"feedback-drop/middleware/ratelimit/domain"
)

// semaphore é um SlotPool de capacidade fixa sobre um channel bufferizado.
type semaphore chan struct{}

// NewSlotPool cria um pool com `max` vagas.
func NewSlotPool(max int) domain.SlotPool {
	return make(semaphore, max)
}

func (s semaphore) Acquire(ctx context.Context) (func(), bool) {
	select {
	case s <- struct{}{}:
		return func() { <-s }, true
	case <-ctx.Done():
		return nil, false
	}
}
