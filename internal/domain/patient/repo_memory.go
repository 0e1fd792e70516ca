package patient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/medchain/medchain/internal/apperr"
	"github.com/medchain/medchain/internal/platform/latency"
)

// MemoryRepo is the in-process registry standing in for the remote ledger.
// Every call waits for the configured latency first.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
	delay   time.Duration
}

func NewMemoryRepo(delay time.Duration) *MemoryRepo {
	return &MemoryRepo{records: make(map[string]*Record), delay: delay}
}

func (r *MemoryRepo) Create(ctx context.Context, rec *Record) error {
	if err := latency.Sleep(ctx, r.delay); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return fmt.Errorf("patient %q already exists", rec.ID)
	}
	r.records[rec.ID] = rec.Clone()
	r.order = append(r.order, rec.ID)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (*Record, error) {
	if err := latency.Sleep(ctx, r.delay); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, &apperr.RecordNotFoundError{Kind: "patient", ID: id}
	}
	return rec.Clone(), nil
}

func (r *MemoryRepo) UpdateProfile(ctx context.Context, rec *Record) error {
	if err := latency.Sleep(ctx, r.delay); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.records[rec.ID]
	if !ok {
		return &apperr.RecordNotFoundError{Kind: "patient", ID: rec.ID}
	}
	next := rec.Clone()
	next.MedicalHistory = cur.MedicalHistory
	next.CreatedAt = cur.CreatedAt
	r.records[rec.ID] = next
	return nil
}

func (r *MemoryRepo) AppendEntry(ctx context.Context, id string, e Entry) error {
	if err := latency.Sleep(ctx, r.delay); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return &apperr.RecordNotFoundError{Kind: "patient", ID: id}
	}
	// Copy on write so clones handed out earlier never observe the append.
	history := make([]Entry, len(rec.MedicalHistory), len(rec.MedicalHistory)+1)
	copy(history, rec.MedicalHistory)
	rec.MedicalHistory = append(history, e)
	rec.UpdatedAt = e.CreatedAt
	return nil
}

func (r *MemoryRepo) SetEntryIssuance(ctx context.Context, id, entryID string, status IssuanceStatus, issuanceErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return &apperr.RecordNotFoundError{Kind: "patient", ID: id}
	}
	for i := range rec.MedicalHistory {
		if rec.MedicalHistory[i].ID != entryID {
			continue
		}
		history := append([]Entry(nil), rec.MedicalHistory...)
		history[i].Issuance = status
		history[i].IssuanceError = issuanceErr
		rec.MedicalHistory = history
		return nil
	}
	return &apperr.RecordNotFoundError{Kind: "entry", ID: entryID}
}

func (r *MemoryRepo) FindByNPI(ctx context.Context, npi string) (string, error) {
	if err := latency.Sleep(ctx, r.delay); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if r.records[id].NPI == npi {
			return id, nil
		}
	}
	return "", &apperr.RecordNotFoundError{Kind: "patient", ID: npi}
}

func (r *MemoryRepo) List(ctx context.Context) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].Clone())
	}
	return out, nil
}
