package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"feedback-drop/feedback/domain"
)

// KeyFile lê a chave pública armored provisionada pelo operador. O arquivo
// é relido a cada chamada para que uma troca de chave não exija restart.
type KeyFile struct {
	path string
}

func NewKeyFile(path string) KeyFile { return KeyFile{path: path} }

func (k KeyFile) Path() string { return k.path }

// Load devolve o conteúdo verbatim. Arquivo ausente: domain.ErrKeyNotFound;
// sem o marcador de bloco de chave pública: domain.ErrKeyMalformed.
func (k KeyFile) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(k.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %v", domain.ErrKeyNotFound, err)
		}
		return "", fmt.Errorf("read public key: %w", err)
	}

	key := string(data)
	if !strings.Contains(key, domain.PublicKeyMarker) {
		return "", domain.ErrKeyMalformed
	}
	return key, nil
}
