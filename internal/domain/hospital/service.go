package hospital

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/medchain/medchain/internal/apperr"
)

type Service struct {
	net    Network
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(net Network, logger zerolog.Logger) *Service {
	return &Service{
		net:    net,
		logger: logger.With().Str("component", "hospital").Logger(),
		now:    time.Now,
	}
}

// Register creates the hospital's network account. Nothing is stored: the
// returned private key is the administrator's only copy.
func (s *Service) Register(ctx context.Context, r Registration) (*Hospital, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	op, err := ParseOperator(r.OperatorAccountID, r.OperatorPrivateKey)
	if err != nil {
		return nil, err
	}

	acct, err := s.net.CreateAccount(ctx, op, InitialBalance)
	if err != nil {
		s.logger.Error().Err(err).
			Str("hospital", r.HospitalName).
			Str("operator", op.AccountID.String()).
			Msg("hospital registration failed")
		return nil, &apperr.LedgerError{Op: "create account", Err: err}
	}

	s.logger.Info().
		Str("hospital", r.HospitalName).
		Str("account_id", acct.AccountID).
		Msg("hospital registered")

	return &Hospital{
		ID:         acct.AccountID,
		Name:       r.HospitalName,
		CreatedAt:  s.now().UTC(),
		PublicKey:  acct.PublicKey,
		PrivateKey: acct.PrivateKey,
	}, nil
}

func (s *Service) Balance(ctx context.Context, r BalanceRequest) (*Balance, error) {
	op, err := ParseOperator(r.OperatorAccountID, r.OperatorPrivateKey)
	if err != nil {
		return nil, err
	}
	id, err := ParseAccountID("accountId", r.AccountID)
	if err != nil {
		return nil, err
	}
	tinybars, err := s.net.Balance(ctx, op, id)
	if err != nil {
		return nil, &apperr.LedgerError{Op: "balance query", Err: err}
	}
	return &Balance{AccountID: id.String(), Tinybars: tinybars}, nil
}
