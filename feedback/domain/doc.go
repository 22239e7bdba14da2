// Package domain define o formato das mensagens de feedback aceitas e das
// entradas do log append-only.
//
// O servidor nunca vê material de chave: a validação é apenas estrutural.
package domain
