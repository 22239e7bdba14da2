package domain

import "errors"

var (
	// ErrInvalidMessage: o candidato não é um envelope aceitável.
	ErrInvalidMessage = errors.New("invalid encrypted message")
	// ErrStorageFull: o dispositivo do log não tem espaço (ou a cota acabou).
	ErrStorageFull = errors.New("feedback storage full")
	// ErrStoreClosed: append depois de Close.
	ErrStoreClosed = errors.New("feedback store closed")

	ErrKeyNotFound  = errors.New("public key not available")
	ErrKeyMalformed = errors.New("public key has invalid format")

	ErrMalformedLog = errors.New("malformed feedback log")
)
