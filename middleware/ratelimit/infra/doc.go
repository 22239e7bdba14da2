// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
//   - MemoryWindowStore: janelas fixas por chave em memória, com janitor
//   - RedisWindowStore: janelas fixas compartilhadas (INCR + PEXPIRE)
//   - MemoryStatsStore / RedisStatsStore: contadores allow/deny
//   - NewSlotPool: semáforo para limite de requests em processamento
package infra
