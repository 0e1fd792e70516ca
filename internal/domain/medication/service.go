// Package medication verifies drug units against the medication ledger.
package medication

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medchain/medchain/internal/apperr"
)

// CredentialChecker confirms a scanned payload is a valid credential.
// *scan.Pipeline satisfies it.
type CredentialChecker interface {
	Verify(ctx context.Context, payload string) error
}

type Service struct {
	ledger  Ledger
	checker CredentialChecker
	logger  zerolog.Logger
}

func NewService(ledger Ledger, checker CredentialChecker, logger zerolog.Logger) *Service {
	return &Service{
		ledger:  ledger,
		checker: checker,
		logger:  logger.With().Str("component", "medication").Logger(),
	}
}

// Verify looks up a payload that has already passed credential
// verification.
func (s *Service) Verify(ctx context.Context, payload string) (*Medication, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, apperr.NewValidationError("payload")
	}
	m, err := s.ledger.Lookup(ctx, payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("payload", payload).Msg("medication lookup failed")
		return nil, err
	}
	s.logger.Info().Str("medication_id", m.ID).Str("lot", m.LotNumber).Msg("medication verified")
	return m, nil
}

// VerifyScanned checks the credential first and only then reads the
// ledger. Both steps see the same trimmed payload.
func (s *Service) VerifyScanned(ctx context.Context, payload string) (*Medication, error) {
	payload = strings.TrimSpace(payload)
	if err := s.checker.Verify(ctx, payload); err != nil {
		return nil, err
	}
	return s.Verify(ctx, payload)
}
