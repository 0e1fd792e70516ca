package patient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medchain/medchain/internal/apperr"
	"github.com/medchain/medchain/internal/gateway"
)

type fakeDIDs struct {
	mu    sync.Mutex
	did   string
	err   error
	calls int
}

func (f *fakeDIDs) CreateDID(_ context.Context, req gateway.CreateDIDRequest) (*gateway.CreateDIDResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.CreateDIDResponse{DID: f.did}, nil
}

type fakeIssuer struct {
	mu   sync.Mutex
	err  error
	reqs []gateway.IssueMedicalVCRequest
}

func (f *fakeIssuer) IssueMedicalVC(_ context.Context, req gateway.IssueMedicalVCRequest) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"vc":"issued"}`), nil
}

const testHospital = "Hôpital Actuel (Simulé)"

func newTestService(dids *fakeDIDs, issuer *fakeIssuer) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo(0)
	var ci CredentialIssuer
	if issuer != nil {
		ci = issuer
	}
	svc := NewService(repo, dids, ci, testHospital, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC) }
	return svc, repo
}

func validEnrollment() *EnrollRequest {
	return &EnrollRequest{
		Name:       "Alice Martin",
		DOB:        "1990-01-01",
		NPI:        "555000111",
		BloodGroup: "B+",
		Weight:     62,
		FirstEntry: "Première consultation.",
	}
}

func TestEnroll_Success(t *testing.T) {
	dids := &fakeDIDs{did: "did:hedera:testnet:abc"}
	svc, repo := newTestService(dids, nil)

	id, err := svc.Enroll(context.Background(), validEnrollment())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "did:hedera:testnet:abc" {
		t.Errorf("expected returned DID, got %s", id)
	}

	rec, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("expected stored record: %v", err)
	}
	if rec.Name != "Alice Martin" || rec.BloodGroup != "B+" || rec.Weight != 62 {
		t.Errorf("intake not stored: %+v", rec)
	}
	if len(rec.MedicalHistory) != 1 {
		t.Fatalf("expected one seeded entry, got %d", len(rec.MedicalHistory))
	}
	first := rec.MedicalHistory[0]
	if first.Details != "Première consultation." || first.Type != EntryNote {
		t.Errorf("unexpected seeded entry: %+v", first)
	}
	if first.Date != "2024-05-06" || first.Hospital != testHospital {
		t.Errorf("entry not stamped: %+v", first)
	}
}

func TestEnroll_MissingFieldsMakesNoRemoteCall(t *testing.T) {
	dids := &fakeDIDs{did: "did:x"}
	svc, _ := newTestService(dids, nil)

	req := validEnrollment()
	req.NPI = ""
	req.FirstEntry = "  "

	_, err := svc.Enroll(context.Background(), req)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Fields) != 2 || ve.Fields[0] != "npi" || ve.Fields[1] != "firstEntry" {
		t.Errorf("expected npi and firstEntry reported, got %v", ve.Fields)
	}
	if dids.calls != 0 {
		t.Errorf("expected no create-did call, got %d", dids.calls)
	}
}

func TestEnroll_RemoteFailureLeavesNoRecord(t *testing.T) {
	dids := &fakeDIDs{err: &apperr.TransportError{Op: gateway.OpCreateDID, Status: 500, Message: "ledger down"}}
	svc, repo := newTestService(dids, nil)

	_, err := svc.Enroll(context.Background(), validEnrollment())
	var ee *apperr.EnrollmentError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EnrollmentError, got %v", err)
	}
	var te *apperr.TransportError
	if !errors.As(err, &te) || te.Message != "ledger down" {
		t.Errorf("expected wrapped transport error, got %v", err)
	}

	all, _ := repo.List(context.Background())
	if len(all) != 0 {
		t.Errorf("expected no local record, got %d", len(all))
	}
}

func TestEnroll_EmptyDIDIsEnrollmentError(t *testing.T) {
	svc, repo := newTestService(&fakeDIDs{did: ""}, nil)

	_, err := svc.Enroll(context.Background(), validEnrollment())
	var ee *apperr.EnrollmentError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EnrollmentError, got %v", err)
	}
	all, _ := repo.List(context.Background())
	if len(all) != 0 {
		t.Errorf("expected no local record, got %d", len(all))
	}
}

func TestGet_GeneratedIDYieldsPlaceholder(t *testing.T) {
	svc, repo := newTestService(&fakeDIDs{}, nil)

	rec, err := svc.Get(context.Background(), "patient-1700000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Name != "Patient 1700..." {
		t.Errorf("unexpected placeholder name %q", rec.Name)
	}
	if rec.Allergies != "" || rec.BloodGroup != "" || rec.EmergencyContact != "" || rec.Weight != 0 || rec.Height != 0 {
		t.Errorf("expected empty clinical fields, got %+v", rec)
	}
	if len(rec.MedicalHistory) != 0 || !rec.Placeholder {
		t.Errorf("expected empty placeholder history, got %+v", rec)
	}

	if _, err := repo.Get(context.Background(), "patient-1700000000000"); err != nil {
		t.Errorf("expected placeholder to be kept for the session: %v", err)
	}
}

func TestGet_UnknownIDIsNotFound(t *testing.T) {
	svc, repo := newTestService(&fakeDIDs{}, nil)

	for _, id := range []string{"did:hedera:missing", "patient-", "PATIENT-123"} {
		_, err := svc.Get(context.Background(), id)
		var nf *apperr.RecordNotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("%s: expected RecordNotFoundError, got %v", id, err)
		}
	}
	all, _ := repo.List(context.Background())
	if len(all) != 0 {
		t.Errorf("expected nothing stored, got %d", len(all))
	}
}

func TestUpdateProfile_MergeKeepsUnsetFields(t *testing.T) {
	svc, repo := newTestService(&fakeDIDs{}, nil)
	Seed(context.Background(), repo)

	allergies := "Pénicilline"
	weight := 80.0
	rec, err := svc.UpdateProfile(context.Background(), "patient-1665504000000", &ProfileUpdate{
		Allergies: &allergies,
		Weight:    &weight,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Allergies != "Pénicilline" || rec.Weight != 80 {
		t.Errorf("expected update applied, got %+v", rec)
	}

	stored, _ := repo.Get(context.Background(), "patient-1665504000000")
	if stored.Name != "John Doe" || stored.DOB != "1985-04-12" || stored.NPI != "123456789" {
		t.Errorf("expected untouched fields kept, got %+v", stored)
	}
	if stored.BloodGroup != "A+" || stored.EmergencyContact != "Jane Doe (555-1234)" || stored.Height != 175 {
		t.Errorf("expected untouched clinical fields kept, got %+v", stored)
	}
	if len(stored.MedicalHistory) != 2 {
		t.Errorf("expected history untouched, got %d entries", len(stored.MedicalHistory))
	}
}

func TestUpdateProfile_RequiredFieldsStayNonEmpty(t *testing.T) {
	svc, repo := newTestService(&fakeDIDs{}, nil)
	Seed(context.Background(), repo)

	empty := ""
	_, err := svc.UpdateProfile(context.Background(), "patient-12345", &ProfileUpdate{Name: &empty})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	stored, _ := repo.Get(context.Background(), "patient-12345")
	if stored.Name != "Jane Smith" {
		t.Errorf("expected name unchanged, got %q", stored.Name)
	}
}

func TestUpdateProfile_UnknownID(t *testing.T) {
	svc, _ := newTestService(&fakeDIDs{}, nil)
	name := "X"
	_, err := svc.UpdateProfile(context.Background(), "did:none", &ProfileUpdate{Name: &name})
	var nf *apperr.RecordNotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected RecordNotFoundError, got %v", err)
	}
}

func TestAddEntry_EmptyDetails(t *testing.T) {
	issuer := &fakeIssuer{}
	svc, repo := newTestService(&fakeDIDs{}, issuer)
	Seed(context.Background(), repo)

	_, err := svc.AddEntry(context.Background(), "patient-12345", &NewEntry{Type: EntryNote, Details: "   "})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	svc.Wait()
	if len(issuer.reqs) != 0 {
		t.Errorf("expected no issuance, got %d", len(issuer.reqs))
	}
}

func TestAddEntry_UnknownType(t *testing.T) {
	svc, repo := newTestService(&fakeDIDs{}, nil)
	Seed(context.Background(), repo)

	_, err := svc.AddEntry(context.Background(), "patient-12345", &NewEntry{Type: "Chirurgie", Details: "x"})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestAddEntry_IssuedCredential(t *testing.T) {
	issuer := &fakeIssuer{}
	svc, repo := newTestService(&fakeDIDs{}, issuer)
	Seed(context.Background(), repo)

	entry, err := svc.AddEntry(context.Background(), "patient-12345", &NewEntry{Type: EntryOrdonnance, Details: "Amoxicilline 1g"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Issuance != IssuancePending {
		t.Errorf("expected pending issuance, got %q", entry.Issuance)
	}
	svc.Wait()

	if len(issuer.reqs) != 1 || issuer.reqs[0].PatientDID != "patient-12345" {
		t.Fatalf("expected one issuance for the patient, got %+v", issuer.reqs)
	}

	rec, _ := repo.Get(context.Background(), "patient-12345")
	last := rec.MedicalHistory[len(rec.MedicalHistory)-1]
	if last.ID != entry.ID || last.Issuance != IssuanceIssued {
		t.Errorf("expected entry marked issued, got %+v", last)
	}
	if last.Hospital != testHospital || last.Date != "2024-05-06" {
		t.Errorf("entry not stamped: %+v", last)
	}
}

func TestAddEntry_IssuanceFailureKeepsEntry(t *testing.T) {
	issuer := &fakeIssuer{err: &apperr.TransportError{Op: gateway.OpIssueMedicalVC, Status: 503}}
	svc, repo := newTestService(&fakeDIDs{}, issuer)
	Seed(context.Background(), repo)

	entry, err := svc.AddEntry(context.Background(), "patient-12345", &NewEntry{Type: EntryExamen, Details: "Radio thorax"})
	if err != nil {
		t.Fatalf("issuance failure must not fail the operation: %v", err)
	}
	svc.Wait()

	rec, _ := repo.Get(context.Background(), "patient-12345")
	if len(rec.MedicalHistory) != 2 {
		t.Fatalf("expected entry kept, got %d entries", len(rec.MedicalHistory))
	}
	last := rec.MedicalHistory[1]
	if last.ID != entry.ID || last.Issuance != IssuanceFailed {
		t.Errorf("expected entry marked failed, got %+v", last)
	}
	if last.IssuanceError == "" {
		t.Error("expected issuance error recorded")
	}
}

func TestAddEntry_SurvivesCancelledRequest(t *testing.T) {
	issuer := &fakeIssuer{}
	svc, repo := newTestService(&fakeDIDs{}, issuer)
	Seed(context.Background(), repo)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := svc.AddEntry(ctx, "patient-12345", &NewEntry{Details: "Note libre"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()
	svc.Wait()

	rec, _ := repo.Get(context.Background(), "patient-12345")
	if rec.MedicalHistory[1].Issuance != IssuanceIssued {
		t.Errorf("expected issuance to complete after cancel, got %q", rec.MedicalHistory[1].Issuance)
	}
}

func TestAddEntry_UnknownPatient(t *testing.T) {
	issuer := &fakeIssuer{}
	svc, _ := newTestService(&fakeDIDs{}, issuer)

	_, err := svc.AddEntry(context.Background(), "did:none", &NewEntry{Details: "x"})
	var nf *apperr.RecordNotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected RecordNotFoundError, got %v", err)
	}
	svc.Wait()
	if len(issuer.reqs) != 0 {
		t.Error("expected no issuance for a failed append")
	}
}

func TestFindByNPI(t *testing.T) {
	svc, repo := newTestService(&fakeDIDs{}, nil)
	Seed(context.Background(), repo)

	id, err := svc.FindByNPI(context.Background(), "987654321")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "patient-12345" {
		t.Errorf("expected patient-12345, got %s", id)
	}

	_, err = svc.FindByNPI(context.Background(), "000")
	var nf *apperr.RecordNotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected RecordNotFoundError, got %v", err)
	}
}

func TestFindByNPI_FirstMatchWins(t *testing.T) {
	svc, repo := newTestService(&fakeDIDs{}, nil)
	ctx := context.Background()
	repo.Create(ctx, &Record{ID: "did:a", Name: "A", DOB: "x", NPI: "42"})
	repo.Create(ctx, &Record{ID: "did:b", Name: "B", DOB: "x", NPI: "42"})

	id, err := svc.FindByNPI(ctx, "42")
	if err != nil || id != "did:a" {
		t.Errorf("expected did:a, got %s (%v)", id, err)
	}
}

func TestRecentEnrollments(t *testing.T) {
	svc, repo := newTestService(&fakeDIDs{}, nil)
	ctx := context.Background()
	Seed(ctx, repo)
	repo.Create(ctx, &Record{ID: "patient-1700000000000", Name: "Newest"})
	repo.Create(ctx, &Record{ID: "did:hedera:enrolled", Name: "Not generated"})
	repo.Create(ctx, &Record{ID: "patient-1600000000000", Name: "Older"})

	recent, err := svc.RecentEnrollments(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != DefaultRecentLimit {
		t.Fatalf("expected %d records, got %d", DefaultRecentLimit, len(recent))
	}
	want := []string{"patient-1700000000000", "patient-1665504000000", "patient-1600000000000"}
	for i, id := range want {
		if recent[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, recent[i].ID)
		}
	}
}

func TestRequestEmergencyAccess(t *testing.T) {
	svc, repo := newTestService(&fakeDIDs{}, nil)
	Seed(context.Background(), repo)

	msg, err := svc.RequestEmergencyAccess(context.Background(), "123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "Emergency access granted for John Doe." {
		t.Errorf("unexpected message %q", msg)
	}

	_, err = svc.RequestEmergencyAccess(context.Background(), "nope")
	var nf *apperr.RecordNotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected RecordNotFoundError, got %v", err)
	}
}

func TestSeed_Idempotent(t *testing.T) {
	repo := NewMemoryRepo(0)
	n, err := Seed(context.Background(), repo)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 seeded, got %d (%v)", n, err)
	}
	n, err = Seed(context.Background(), repo)
	if err != nil || n != 0 {
		t.Errorf("expected re-seed to skip, got %d (%v)", n, err)
	}
}

func TestMemoryRepo_ClonesAreIsolated(t *testing.T) {
	repo := NewMemoryRepo(0)
	ctx := context.Background()
	Seed(ctx, repo)

	rec, _ := repo.Get(ctx, "patient-12345")
	rec.Name = "Mutated"
	rec.MedicalHistory[0].Details = "Mutated"

	again, _ := repo.Get(ctx, "patient-12345")
	if again.Name != "Jane Smith" || again.MedicalHistory[0].Details != "Vaccin contre la grippe." {
		t.Errorf("stored record leaked through a clone: %+v", again)
	}
}

func TestMemoryRepo_HonoursContext(t *testing.T) {
	repo := NewMemoryRepo(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := repo.Get(ctx, "patient-12345"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRecord_HistoryNewestFirst(t *testing.T) {
	rec := &Record{MedicalHistory: []Entry{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	got := rec.HistoryNewestFirst()
	if got[0].ID != "c" || got[2].ID != "a" {
		t.Errorf("unexpected order %+v", got)
	}
	if rec.MedicalHistory[0].ID != "a" {
		t.Error("stored order must not change")
	}
}
