package medication

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/medchain/medchain/internal/apperr"
)

func newPGLedger(t *testing.T) (*LedgerPG, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewLedgerPG(mock), mock
}

func TestLedgerPG_Lookup(t *testing.T) {
	l, mock := newPGLedger(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT .+ FROM medication WHERE id = \$1`).
		WithArgs("MED-XYZ-123").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "manufacturer", "lot_number", "manufacturing_date", "expiry_date"}).
			AddRow("MED-XYZ-123", "Aspirin 500mg", "Pharma Inc.", "LOT-A456", "2024-01-15", "2026-01-14"))
	mock.ExpectQuery(`SELECT status, location, event_time FROM custody_event`).
		WithArgs("MED-XYZ-123").
		WillReturnRows(pgxmock.NewRows([]string{"status", "location", "event_time"}).
			AddRow("Manufactured", "Factory A", "2024-01-15T08:00:00Z").
			AddRow("Shipped", "Distributor B", "2024-01-20T14:30:00Z"))

	m, err := l.Lookup(context.Background(), "MED-XYZ-123")
	require.NoError(t, err)
	require.Equal(t, "LOT-A456", m.LotNumber)
	require.Len(t, m.History, 2)
	require.Equal(t, "Shipped", m.History[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerPG_LookupNotFound(t *testing.T) {
	l, mock := newPGLedger(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT .+ FROM medication WHERE id = \$1`).
		WithArgs("MED-FAKE").
		WillReturnError(pgx.ErrNoRows)

	_, err := l.Lookup(context.Background(), "MED-FAKE")
	var nf *apperr.MedicationNotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "MED-FAKE", nf.ID)
}

func TestLedgerPG_Register(t *testing.T) {
	l, mock := newPGLedger(t)
	defer mock.Close()

	m := Fixtures()[1]

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO medication`).
		WithArgs(m.ID, m.Name, m.Manufacturer, m.LotNumber, m.ManufacturingDate, m.ExpiryDate).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM custody_event WHERE medication_id = \$1`).
		WithArgs(m.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	for _, ev := range m.History {
		mock.ExpectExec(`INSERT INTO custody_event`).
			WithArgs(m.ID, ev.Status, ev.Location, ev.Timestamp).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, l.Register(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerPG_RegisterRollsBack(t *testing.T) {
	l, mock := newPGLedger(t)
	defer mock.Close()

	m := Fixtures()[0]

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO medication`).
		WithArgs(m.ID, m.Name, m.Manufacturer, m.LotNumber, m.ManufacturingDate, m.ExpiryDate).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := l.Register(context.Background(), m)
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}
