package patient

import "context"

// Repository is the storage behind the patient registry. Implementations
// must be safe for concurrent use and keep MedicalHistory append-only.
type Repository interface {
	// Create stores a new record. It fails if the id is already taken.
	Create(ctx context.Context, rec *Record) error
	// Get returns a copy of the record or a RecordNotFoundError.
	Get(ctx context.Context, id string) (*Record, error)
	// UpdateProfile writes the demographic fields of rec. History is not touched.
	UpdateProfile(ctx context.Context, rec *Record) error
	// AppendEntry adds e to the end of the record's history.
	AppendEntry(ctx context.Context, id string, e Entry) error
	// SetEntryIssuance records the credential outcome for one entry.
	SetEntryIssuance(ctx context.Context, id, entryID string, status IssuanceStatus, issuanceErr string) error
	// FindByNPI returns the id of the first record, in insertion order,
	// whose NPI equals npi.
	FindByNPI(ctx context.Context, npi string) (string, error)
	// List returns every record in insertion order.
	List(ctx context.Context) ([]*Record, error)
}
