// Package infra guarda o feedback em disco e lê a chave pública provisionada
// pelo operador.
//
//   - AppendLog: log append-only em arquivo texto, um único writer
//   - KeyFile: chave pública armored, só leitura
package infra
