package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/medchain/medchain/internal/apperr"
	"github.com/medchain/medchain/internal/platform/db"
)

// RepoPG keeps patient records in PostgreSQL. Entries live in their own
// table and are ordered by an insertion sequence.
type RepoPG struct {
	pool db.Pool
}

func NewRepoPG(pool db.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const recordCols = `id, name, dob, npi, allergies, blood_group, emergency_contact,
	weight, height, placeholder, created_at, updated_at`

const entryCols = `id, entry_date, hospital, entry_type, details, issuance, issuance_error, created_at`

func (r *RepoPG) Create(ctx context.Context, rec *Record) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)
		_, err := q.Exec(ctx, `
			INSERT INTO patient_record (`+recordCols+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			rec.ID, rec.Name, rec.DOB, rec.NPI, rec.Allergies, rec.BloodGroup, rec.EmergencyContact,
			rec.Weight, rec.Height, rec.Placeholder, rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert patient %s: %w", rec.ID, err)
		}
		for _, e := range rec.MedicalHistory {
			if err := r.insertEntry(ctx, q, rec.ID, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *RepoPG) insertEntry(ctx context.Context, q db.Queryable, id string, e Entry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO medical_entry (patient_id, `+entryCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, e.ID, e.Date, e.Hospital, string(e.Type), e.Details, string(e.Issuance), e.IssuanceError, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", e.ID, err)
	}
	return nil
}

func (r *RepoPG) Get(ctx context.Context, id string) (*Record, error) {
	q := db.Conn(ctx, r.pool)
	rec, err := scanRecord(q.QueryRow(ctx, `SELECT `+recordCols+` FROM patient_record WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.RecordNotFoundError{Kind: "patient", ID: id}
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT `+entryCols+` FROM medical_entry WHERE patient_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		rec.MedicalHistory = append(rec.MedicalHistory, e)
	}
	return rec, rows.Err()
}

func (r *RepoPG) UpdateProfile(ctx context.Context, rec *Record) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE patient_record SET
			name = $2, dob = $3, npi = $4, allergies = $5, blood_group = $6,
			emergency_contact = $7, weight = $8, height = $9, placeholder = $10, updated_at = $11
		WHERE id = $1`,
		rec.ID, rec.Name, rec.DOB, rec.NPI, rec.Allergies, rec.BloodGroup,
		rec.EmergencyContact, rec.Weight, rec.Height, rec.Placeholder, rec.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &apperr.RecordNotFoundError{Kind: "patient", ID: rec.ID}
	}
	return nil
}

func (r *RepoPG) AppendEntry(ctx context.Context, id string, e Entry) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)
		tag, err := q.Exec(ctx, `UPDATE patient_record SET updated_at = $2 WHERE id = $1`, id, e.CreatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return &apperr.RecordNotFoundError{Kind: "patient", ID: id}
		}
		return r.insertEntry(ctx, q, id, e)
	})
}

func (r *RepoPG) SetEntryIssuance(ctx context.Context, id, entryID string, status IssuanceStatus, issuanceErr string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE medical_entry SET issuance = $3, issuance_error = $4
		WHERE patient_id = $1 AND id = $2`,
		id, entryID, string(status), issuanceErr,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &apperr.RecordNotFoundError{Kind: "entry", ID: entryID}
	}
	return nil
}

func (r *RepoPG) FindByNPI(ctx context.Context, npi string) (string, error) {
	var id string
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id FROM patient_record WHERE npi = $1 ORDER BY seq LIMIT 1`, npi).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &apperr.RecordNotFoundError{Kind: "patient", ID: npi}
	}
	return id, err
}

func (r *RepoPG) List(ctx context.Context) ([]*Record, error) {
	q := db.Conn(ctx, r.pool)
	rows, err := q.Query(ctx, `SELECT `+recordCols+` FROM patient_record ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	var records []*Record
	byID := make(map[string]*Record)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
		byID[rec.ID] = rec
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries, err := q.Query(ctx, `SELECT patient_id, `+entryCols+` FROM medical_entry ORDER BY patient_id, seq`)
	if err != nil {
		return nil, err
	}
	defer entries.Close()
	for entries.Next() {
		var patientID string
		e, err := scanEntry(entries, &patientID)
		if err != nil {
			return nil, err
		}
		if rec, ok := byID[patientID]; ok {
			rec.MedicalHistory = append(rec.MedicalHistory, e)
		}
	}
	return records, entries.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.DOB, &rec.NPI, &rec.Allergies, &rec.BloodGroup, &rec.EmergencyContact,
		&rec.Weight, &rec.Height, &rec.Placeholder, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.MedicalHistory = []Entry{}
	return &rec, nil
}

// scanEntry reads entryCols, preceded by any extra destinations.
func scanEntry(row pgx.Row, prefix ...any) (Entry, error) {
	var (
		e        Entry
		typ      string
		issuance string
	)
	dest := append(prefix, &e.ID, &e.Date, &e.Hospital, &typ, &e.Details, &issuance, &e.IssuanceError, &e.CreatedAt)
	if err := row.Scan(dest...); err != nil {
		return Entry{}, err
	}
	e.Type = EntryType(typ)
	e.Issuance = IssuanceStatus(issuance)
	return e, nil
}
