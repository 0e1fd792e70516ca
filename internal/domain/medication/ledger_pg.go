package medication

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/medchain/medchain/internal/apperr"
	"github.com/medchain/medchain/internal/platform/db"
)

// LedgerPG is a local ledger replica kept in PostgreSQL.
type LedgerPG struct {
	pool db.Pool
}

func NewLedgerPG(pool db.Pool) *LedgerPG {
	return &LedgerPG{pool: pool}
}

const medicationCols = `id, name, manufacturer, lot_number, manufacturing_date, expiry_date`

func (l *LedgerPG) Lookup(ctx context.Context, id string) (*Medication, error) {
	q := db.Conn(ctx, l.pool)
	var m Medication
	err := q.QueryRow(ctx, `SELECT `+medicationCols+` FROM medication WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.Manufacturer, &m.LotNumber, &m.ManufacturingDate, &m.ExpiryDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.MedicationNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("read medication %s: %w", id, err)
	}

	rows, err := q.Query(ctx, `
		SELECT status, location, event_time FROM custody_event
		WHERE medication_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("read custody of %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var ev CustodyEvent
		if err := rows.Scan(&ev.Status, &ev.Location, &ev.Timestamp); err != nil {
			return nil, err
		}
		m.History = append(m.History, ev)
	}
	return &m, rows.Err()
}

// Register writes m and replaces its custody history. Registering the same
// id twice leaves one copy.
func (l *LedgerPG) Register(ctx context.Context, m *Medication) error {
	return db.WithTx(ctx, l.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, l.pool)
		_, err := q.Exec(ctx, `
			INSERT INTO medication (`+medicationCols+`)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				manufacturer = EXCLUDED.manufacturer,
				lot_number = EXCLUDED.lot_number,
				manufacturing_date = EXCLUDED.manufacturing_date,
				expiry_date = EXCLUDED.expiry_date`,
			m.ID, m.Name, m.Manufacturer, m.LotNumber, m.ManufacturingDate, m.ExpiryDate,
		)
		if err != nil {
			return fmt.Errorf("upsert medication %s: %w", m.ID, err)
		}
		if _, err := q.Exec(ctx, `DELETE FROM custody_event WHERE medication_id = $1`, m.ID); err != nil {
			return fmt.Errorf("clear custody of %s: %w", m.ID, err)
		}
		for _, ev := range m.History {
			if _, err := q.Exec(ctx, `
				INSERT INTO custody_event (medication_id, status, location, event_time)
				VALUES ($1, $2, $3, $4)`,
				m.ID, ev.Status, ev.Location, ev.Timestamp,
			); err != nil {
				return fmt.Errorf("insert custody event for %s: %w", m.ID, err)
			}
		}
		return nil
	})
}
