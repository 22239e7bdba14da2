// Package ratelimit fornece adapters HTTP (net/http) para rate limit por janela
// fixa e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janelas em memória/Redis, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo:
//
//  1. Extrai a chave do cliente (host de RemoteAddr)
//  2. Chama a camada application para registrar o hit e obter a decisão
//  3. Seta RateLimit-Limit/Remaining/Reset
//  4. Se bloqueado, seta Retry-After e delega a resposta para OnReject (429)
//  5. Se permitido, chama o próximo handler
package ratelimit
