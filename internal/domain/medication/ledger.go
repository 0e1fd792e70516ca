package medication

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/medchain/medchain/internal/apperr"
	"github.com/medchain/medchain/internal/platform/latency"
)

// Ledger looks up a medication by the identifier carried in its QR code.
type Ledger interface {
	Lookup(ctx context.Context, id string) (*Medication, error)
}

// FixtureLedger is an in-memory ledger with simulated lookup latency.
type FixtureLedger struct {
	mu    sync.RWMutex
	meds  map[string]*Medication
	delay time.Duration
}

func NewFixtureLedger(delay time.Duration, meds ...*Medication) *FixtureLedger {
	l := &FixtureLedger{meds: make(map[string]*Medication, len(meds)), delay: delay}
	for _, m := range meds {
		l.meds[m.ID] = m.clone()
	}
	return l
}

func (l *FixtureLedger) Lookup(ctx context.Context, id string) (*Medication, error) {
	if err := latency.Sleep(ctx, l.delay); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.meds[id]
	if !ok {
		return nil, &apperr.MedicationNotFoundError{ID: id}
	}
	return m.clone(), nil
}

// Resolver is the DID resolution half of the gateway.
type Resolver interface {
	ResolveDID(ctx context.Context, did string) (json.RawMessage, error)
}

// RemoteLedger treats the payload as a DID and reads the medication out of
// the resolved document.
type RemoteLedger struct {
	resolver Resolver
}

func NewRemoteLedger(resolver Resolver) *RemoteLedger {
	return &RemoteLedger{resolver: resolver}
}

func (l *RemoteLedger) Lookup(ctx context.Context, id string) (*Medication, error) {
	raw, err := l.resolver.ResolveDID(ctx, id)
	if err != nil {
		var te *apperr.TransportError
		if errors.As(err, &te) && te.Status == http.StatusNotFound {
			return nil, &apperr.MedicationNotFoundError{ID: id, Err: err}
		}
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, &apperr.MedicationNotFoundError{ID: id}
	}

	var m Medication
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &apperr.MedicationNotFoundError{ID: id, Err: err}
	}
	if m.ID == "" {
		m.ID = id
	}
	return &m, nil
}
