// Package domain define contratos e tipos de domínio para rate limit por janela
// fixa e limite de concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
package domain
