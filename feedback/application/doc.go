// Package application orquestra os casos de uso do feedback: validar e gravar
// uma submissão, servir a chave pública. Não conhece HTTP.
package application
