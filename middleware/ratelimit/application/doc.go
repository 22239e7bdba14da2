// Package application contém os casos de uso (regras de aplicação) para rate limit
// e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key) registra o hit e retorna uma Decision
// (allow/deny, restante na janela, retry-after).
package application
