package application

import (
	"context"
	"errors"
	"log/slog"

	"feedback-drop/feedback/domain"
)

// Outcome é o rótulo de resultado usado nas métricas.
type Outcome string

const (
	OutcomeAccepted    Outcome = "accepted"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeStorageFull Outcome = "storage_full"
	OutcomeError       Outcome = "error"

	OutcomeServed    Outcome = "served"
	OutcomeMissing   Outcome = "missing"
	OutcomeMalformed Outcome = "malformed"
)

// Appender é o contrato do log append-only.
type Appender interface {
	Append(ctx context.Context, payload string) error
}

type KeySource interface {
	Load(ctx context.Context) (string, error)
}

// Recorder recebe o resultado de cada operação. nil desliga.
type Recorder interface {
	Submission(Outcome)
	PublicKey(Outcome)
}

type Service struct {
	Validator domain.Validator
	Store     Appender
	Keys      KeySource
	Recorder  Recorder
	Log       *slog.Logger
}

// Submit valida o candidato e só então o grava.
//
// Erros: domain.ErrInvalidMessage, domain.ErrStorageFull, ou qualquer outra
// falha interna (já logada aqui, do lado do operador).
func (s *Service) Submit(ctx context.Context, candidate any) error {
	if !s.Validator.Validate(candidate) {
		s.record(OutcomeInvalid)
		return domain.ErrInvalidMessage
	}

	err := s.Store.Append(ctx, candidate.(string))
	switch {
	case err == nil:
		s.record(OutcomeAccepted)
	case errors.Is(err, domain.ErrInvalidMessage):
		// envelope válido, mas com linha que o log leria como delimitador
		s.record(OutcomeInvalid)
	case errors.Is(err, domain.ErrStorageFull):
		s.Log.Error("Feedback storage full", "err", err)
		s.record(OutcomeStorageFull)
	default:
		s.Log.Error("Failed to append feedback", "err", err)
		s.record(OutcomeError)
	}
	return err
}

// PublicKey devolve a chave armored verbatim.
func (s *Service) PublicKey(ctx context.Context) (string, error) {
	key, err := s.Keys.Load(ctx)
	switch {
	case err == nil:
		s.recordKey(OutcomeServed)
	case errors.Is(err, domain.ErrKeyNotFound):
		s.Log.Warn("Public key not provisioned", "err", err)
		s.recordKey(OutcomeMissing)
	case errors.Is(err, domain.ErrKeyMalformed):
		s.Log.Error("Public key file is malformed")
		s.recordKey(OutcomeMalformed)
	default:
		s.Log.Error("Failed to load public key", "err", err)
		s.recordKey(OutcomeError)
	}
	return key, err
}

func (s *Service) record(o Outcome) {
	if s.Recorder != nil {
		s.Recorder.Submission(o)
	}
}

func (s *Service) recordKey(o Outcome) {
	if s.Recorder != nil {
		s.Recorder.PublicKey(o)
	}
}
