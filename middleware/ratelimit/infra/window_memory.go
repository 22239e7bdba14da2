package infra

import (
	"context"
	"sync"
	"time"

	"feedback-drop/middleware/ratelimit/domain"
)

// MemoryWindowStore conta hits por chave em janelas fixas, em memória do
// processo. Reiniciar o processo zera todas as janelas.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[domain.Key]*windowEntry

	limit        int
	window       time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

type MemoryWindowOption func(*MemoryWindowStore)

func WithCleanupEvery(d time.Duration) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.cleanupEvery = d }
}

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.now = now }
}

func NewMemoryWindowStore(limit int, window time.Duration, opts ...MemoryWindowOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		windows:      make(map[domain.Key]*windowEntry),
		limit:        limit,
		window:       window,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryWindowStore) Limit() int             { return s.limit }
func (s *MemoryWindowStore) Window() time.Duration { return s.window }

// Hit implementa domain.WindowStore.
func (s *MemoryWindowStore) Hit(_ context.Context, key domain.Key) (domain.Window, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.windows[key]
	if !ok || !now.Before(ent.resetAt) {
		ent = &windowEntry{resetAt: now.Add(s.window)}
		s.windows[key] = ent
	}
	// depois de estourar não conta mais: a janela não se estende por insistência
	if ent.count <= s.limit {
		ent.count++
	}

	return domain.Window{Count: ent.count, Limit: s.limit, ResetAt: ent.resetAt}, nil
}

// Len é o número de janelas vivas (inclui expiradas ainda não coletadas).
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Cleanup remove janelas expiradas.
func (s *MemoryWindowStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.windows {
		if !now.Before(ent.resetAt) {
			delete(s.windows, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa janelas expiradas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryWindowStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
