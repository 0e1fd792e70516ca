package patient

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-date form used for entry dates and birth dates.
const DateLayout = "2006-01-02"

// GeneratedIDPrefix marks identifiers minted by earlier client builds. QR
// codes carrying such an id may predate the record's sync, so lookups on
// them are lenient.
const GeneratedIDPrefix = "patient-"

// Labels shown on a placeholder record until the real data is synced.
const (
	UnknownDOB = "Inconnue"
	UnknownNPI = "Inconnu"
)

type EntryType string

const (
	EntryConsultation EntryType = "Consultation"
	EntryExamen       EntryType = "Examen"
	EntryOrdonnance   EntryType = "Ordonnance"
	EntryNote         EntryType = "Note"
	EntryVaccin       EntryType = "Vaccin"
)

var validEntryTypes = map[EntryType]bool{
	EntryConsultation: true,
	EntryExamen:       true,
	EntryOrdonnance:   true,
	EntryNote:         true,
	EntryVaccin:       true,
}

// IssuanceStatus tracks the credential requested for an entry.
type IssuanceStatus string

const (
	IssuanceNone    IssuanceStatus = ""
	IssuancePending IssuanceStatus = "pending"
	IssuanceIssued  IssuanceStatus = "issued"
	IssuanceFailed  IssuanceStatus = "failed"
)

// Entry is one immutable event in a patient's history.
type Entry struct {
	ID            string         `json:"id"`
	Date          string         `json:"date"`
	Hospital      string         `json:"hospital"`
	Type          EntryType      `json:"type"`
	Details       string         `json:"details"`
	Issuance      IssuanceStatus `json:"issuance,omitempty"`
	IssuanceError string         `json:"issuanceError,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Record is a patient's demographic and medical data keyed by DID.
type Record struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	DOB              string    `json:"dob"`
	NPI              string    `json:"npi"`
	Allergies        string    `json:"allergies"`
	BloodGroup       string    `json:"bloodGroup"`
	EmergencyContact string    `json:"emergencyContact"`
	Weight           float64   `json:"weight,omitempty"`
	Height           float64   `json:"height,omitempty"`
	Placeholder      bool      `json:"placeholder,omitempty"`
	MedicalHistory   []Entry   `json:"medicalHistory"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share the stored history slice.
func (r *Record) Clone() *Record {
	c := *r
	c.MedicalHistory = append([]Entry(nil), r.MedicalHistory...)
	return &c
}

// HistoryNewestFirst returns the entries in display order.
func (r *Record) HistoryNewestFirst() []Entry {
	out := make([]Entry, len(r.MedicalHistory))
	for i, e := range r.MedicalHistory {
		out[len(out)-1-i] = e
	}
	return out
}

// EnrollRequest is the intake form.
type EnrollRequest struct {
	Name             string  `json:"name"`
	DOB              string  `json:"dob"`
	NPI              string  `json:"npi"`
	Allergies        string  `json:"allergies"`
	BloodGroup       string  `json:"bloodGroup"`
	EmergencyContact string  `json:"emergencyContact"`
	Weight           float64 `json:"weight"`
	Height           float64 `json:"height"`
	FirstEntry       string  `json:"firstEntry"`
}

func (r *EnrollRequest) missingFields() []string {
	var missing []string
	if strings.TrimSpace(r.NPI) == "" {
		missing = append(missing, "npi")
	}
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.DOB) == "" {
		missing = append(missing, "dob")
	}
	if strings.TrimSpace(r.FirstEntry) == "" {
		missing = append(missing, "firstEntry")
	}
	return missing
}

// ProfileUpdate carries the fields to merge; nil leaves a field untouched.
type ProfileUpdate struct {
	Name             *string  `json:"name,omitempty"`
	DOB              *string  `json:"dob,omitempty"`
	NPI              *string  `json:"npi,omitempty"`
	Allergies        *string  `json:"allergies,omitempty"`
	BloodGroup       *string  `json:"bloodGroup,omitempty"`
	EmergencyContact *string  `json:"emergencyContact,omitempty"`
	Weight           *float64 `json:"weight,omitempty"`
	Height           *float64 `json:"height,omitempty"`
}

// apply merges u into r.
func (u *ProfileUpdate) apply(r *Record) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&r.Name, u.Name)
	set(&r.DOB, u.DOB)
	set(&r.NPI, u.NPI)
	set(&r.Allergies, u.Allergies)
	set(&r.BloodGroup, u.BloodGroup)
	set(&r.EmergencyContact, u.EmergencyContact)
	if u.Weight != nil {
		r.Weight = *u.Weight
	}
	if u.Height != nil {
		r.Height = *u.Height
	}
}

// NewEntry is what a caller supplies when adding to the history; id, date
// and hospital are stamped by the service.
type NewEntry struct {
	Type    EntryType `json:"type"`
	Details string    `json:"details"`
}

// IsGeneratedID reports whether id follows the client-generated pattern.
func IsGeneratedID(id string) bool {
	return strings.HasPrefix(id, GeneratedIDPrefix) && len(id) > len(GeneratedIDPrefix)
}

// generatedTimestamp returns the numeric suffix of a generated id.
func generatedTimestamp(id string) (int64, bool) {
	if !IsGeneratedID(id) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(id, GeneratedIDPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// placeholder synthesizes the empty record served for a generated id that
// has not been synced yet.
func placeholder(id string, now time.Time) *Record {
	suffix := strings.TrimPrefix(id, GeneratedIDPrefix)
	if len(suffix) > 4 {
		suffix = suffix[:4]
	}
	return &Record{
		ID:             id,
		Name:           "Patient " + suffix + "...",
		DOB:            UnknownDOB,
		NPI:            UnknownNPI,
		Placeholder:    true,
		MedicalHistory: []Entry{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
