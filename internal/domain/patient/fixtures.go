package patient

import (
	"context"
	"errors"
	"time"

	"github.com/medchain/medchain/internal/apperr"
)

// Fixtures are the demo patients the simulated registry starts with.
func Fixtures() []*Record {
	created := time.Date(2022, 10, 11, 16, 0, 0, 0, time.UTC)
	return []*Record{
		{
			ID:               "patient-1665504000000",
			Name:             "John Doe",
			DOB:              "1985-04-12",
			NPI:              "123456789",
			Allergies:        "Pollen, Arachides",
			BloodGroup:       "A+",
			EmergencyContact: "Jane Doe (555-1234)",
			Weight:           75,
			Height:           175,
			MedicalHistory: []Entry{
				{ID: "entry-1", Date: "2023-10-10", Hospital: "Hôpital Central", Type: EntryConsultation, Details: "Consultation générale, patient en bonne santé.", CreatedAt: created},
				{ID: "entry-2", Date: "2024-03-22", Hospital: "Clinique du Parc", Type: EntryExamen, Details: "Analyse de sang. Résultats normaux.", CreatedAt: created},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
		{
			ID:               "patient-12345",
			Name:             "Jane Smith",
			DOB:              "1992-09-20",
			NPI:              "987654321",
			Allergies:        "Aucune",
			BloodGroup:       "O-",
			EmergencyContact: "John Smith (555-5678)",
			Weight:           60,
			Height:           165,
			MedicalHistory: []Entry{
				{ID: "entry-4", Date: "2024-08-10", Hospital: "Clinique du Sud", Type: EntryVaccin, Details: "Vaccin contre la grippe.", CreatedAt: created},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
	}
}

// Seed loads Fixtures into repo, skipping ids that already exist.
func Seed(ctx context.Context, repo Repository) (int, error) {
	n := 0
	for _, rec := range Fixtures() {
		_, err := repo.Get(ctx, rec.ID)
		if err == nil {
			continue
		}
		var nf *apperr.RecordNotFoundError
		if !errors.As(err, &nf) {
			return n, err
		}
		if err := repo.Create(ctx, rec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
