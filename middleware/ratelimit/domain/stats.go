package domain

import (
	"context"
	"time"
)

// StatsEvent representa um evento de decisão do rate limit.
//
// Propositalmente não carrega a Key: o endereço do cliente não pode sair do
// contador da janela. Route é o padrão da rota (ex.: "POST /api/feedback"),
// não o path cru, para manter a cardinalidade baixa.
type StatsEvent struct {
	Allowed bool
	Route   string
	At      time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// Implementações podem armazenar em Redis, memória, etc.
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
