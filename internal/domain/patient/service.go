package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medchain/medchain/internal/apperr"
	"github.com/medchain/medchain/internal/gateway"
)

// DefaultRecentLimit is how many enrollments the dashboard lists.
const DefaultRecentLimit = 3

type DIDCreator interface {
	CreateDID(ctx context.Context, req gateway.CreateDIDRequest) (*gateway.CreateDIDResponse, error)
}

type CredentialIssuer interface {
	IssueMedicalVC(ctx context.Context, req gateway.IssueMedicalVCRequest) (json.RawMessage, error)
}

// Service implements enrollment and the record workflows on top of a
// Repository and the remote identity service.
type Service struct {
	repo     Repository
	dids     DIDCreator
	issuer   CredentialIssuer
	hospital string
	now      func() time.Time
	logger   zerolog.Logger

	inflight sync.WaitGroup
}

func NewService(repo Repository, dids DIDCreator, issuer CredentialIssuer, hospital string, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		dids:     dids,
		issuer:   issuer,
		hospital: hospital,
		now:      time.Now,
		logger:   logger.With().Str("component", "patient").Logger(),
	}
}

// Enroll asks the identity service for a DID and stores the intake under
// it. Nothing is written locally unless the DID was issued.
func (s *Service) Enroll(ctx context.Context, req *EnrollRequest) (string, error) {
	if missing := req.missingFields(); len(missing) > 0 {
		return "", apperr.NewValidationError(missing...)
	}

	resp, err := s.dids.CreateDID(ctx, gateway.CreateDIDRequest{Name: req.Name, NPI: req.NPI})
	if err != nil {
		return "", &apperr.EnrollmentError{Err: err}
	}
	if resp == nil || strings.TrimSpace(resp.DID) == "" {
		return "", &apperr.EnrollmentError{Err: errors.New("identity service returned no did")}
	}

	now := s.now()
	rec := &Record{
		ID:               resp.DID,
		Name:             req.Name,
		DOB:              req.DOB,
		NPI:              req.NPI,
		Allergies:        req.Allergies,
		BloodGroup:       req.BloodGroup,
		EmergencyContact: req.EmergencyContact,
		Weight:           req.Weight,
		Height:           req.Height,
		MedicalHistory: []Entry{{
			ID:        newEntryID(),
			Date:      now.Format(DateLayout),
			Hospital:  s.hospital,
			Type:      EntryNote,
			Details:   req.FirstEntry,
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("store enrolled patient: %w", err)
	}

	s.logger.Info().Str("patient_id", rec.ID).Msg("patient enrolled")
	return rec.ID, nil
}

// Get returns the record for id. An unknown id that follows the generated
// pattern yields a stored placeholder instead of an error.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	var nf *apperr.RecordNotFoundError
	if !errors.As(err, &nf) || !IsGeneratedID(id) {
		return nil, err
	}

	ph := placeholder(id, s.now())
	if err := s.repo.Create(ctx, ph); err != nil {
		// Lost a race with a concurrent lookup of the same id.
		if existing, getErr := s.repo.Get(ctx, id); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	s.logger.Info().Str("patient_id", id).Msg("placeholder record created")
	return ph, nil
}

// UpdateProfile merges upd into the stored record. Last write wins.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd *ProfileUpdate) (*Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	upd.apply(rec)
	var missing []string
	if strings.TrimSpace(rec.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(rec.DOB) == "" {
		missing = append(missing, "dob")
	}
	if strings.TrimSpace(rec.NPI) == "" {
		missing = append(missing, "npi")
	}
	if len(missing) > 0 {
		return nil, apperr.NewValidationError(missing...)
	}

	rec.Placeholder = false
	rec.UpdatedAt = s.now()
	if err := s.repo.UpdateProfile(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// AddEntry appends a stamped entry and requests its credential in the
// background. An issuance failure is recorded on the entry and never
// removes it.
func (s *Service) AddEntry(ctx context.Context, id string, ne *NewEntry) (*Entry, error) {
	if strings.TrimSpace(ne.Details) == "" {
		return nil, apperr.NewValidationError("details")
	}
	typ := ne.Type
	if typ == "" {
		typ = EntryNote
	}
	if !validEntryTypes[typ] {
		return nil, &apperr.ValidationError{Fields: []string{"type"}, Message: fmt.Sprintf("unknown entry type %q", typ)}
	}

	now := s.now()
	entry := Entry{
		ID:        newEntryID(),
		Date:      now.Format(DateLayout),
		Hospital:  s.hospital,
		Type:      typ,
		Details:   ne.Details,
		CreatedAt: now,
	}
	if s.issuer != nil {
		entry.Issuance = IssuancePending
	}
	if err := s.repo.AppendEntry(ctx, id, entry); err != nil {
		return nil, err
	}

	if s.issuer != nil {
		s.inflight.Add(1)
		go s.issue(context.WithoutCancel(ctx), id, entry)
	}
	return &entry, nil
}

func (s *Service) issue(ctx context.Context, id string, entry Entry) {
	defer s.inflight.Done()

	log := s.logger.With().Str("patient_id", id).Str("entry_id", entry.ID).Logger()
	status, msg := IssuanceIssued, ""
	_, err := s.issuer.IssueMedicalVC(ctx, gateway.IssueMedicalVCRequest{PatientDID: id, MedicalEntry: entry})
	if err != nil {
		status, msg = IssuanceFailed, err.Error()
		log.Error().Err(err).Msg("medical credential issuance failed")
	} else {
		log.Info().Msg("medical credential issued")
	}

	if err := s.repo.SetEntryIssuance(ctx, id, entry.ID, status, msg); err != nil {
		log.Error().Err(err).Msg("record issuance status")
	}
}

// Wait blocks until every background issuance has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// FindByNPI returns the id of the first record carrying npi.
func (s *Service) FindByNPI(ctx context.Context, npi string) (string, error) {
	if strings.TrimSpace(npi) == "" {
		return "", apperr.NewValidationError("npi")
	}
	return s.repo.FindByNPI(ctx, npi)
}

// RecentEnrollments lists records with generated ids, newest first.
func (s *Service) RecentEnrollments(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	type stamped struct {
		rec *Record
		ts  int64
	}
	var recent []stamped
	for _, rec := range all {
		if ts, ok := generatedTimestamp(rec.ID); ok {
			recent = append(recent, stamped{rec, ts})
		}
	}
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].ts > recent[j].ts })

	out := make([]*Record, 0, limit)
	for i := 0; i < len(recent) && i < limit; i++ {
		out = append(out, recent[i].rec)
	}
	return out, nil
}

// RequestEmergencyAccess grants break-glass access to the patient with npi.
func (s *Service) RequestEmergencyAccess(ctx context.Context, npi string) (string, error) {
	id, err := s.FindByNPI(ctx, npi)
	if err != nil {
		return "", err
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	s.logger.Warn().Str("patient_id", id).Msg("emergency access granted")
	return fmt.Sprintf("Emergency access granted for %s.", rec.Name), nil
}

func newEntryID() string {
	return "entry-" + uuid.NewString()
}
