package medication

// CustodyEvent is one hop in a drug unit's supply chain.
type CustodyEvent struct {
	Status    string `json:"status"`
	Location  string `json:"location"`
	Timestamp string `json:"timestamp"`
}

// Medication is a traceable drug unit as recorded on the ledger.
type Medication struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Manufacturer      string         `json:"manufacturer"`
	LotNumber         string         `json:"lotNumber"`
	ManufacturingDate string         `json:"manufacturingDate"`
	ExpiryDate        string         `json:"expiryDate"`
	History           []CustodyEvent `json:"history"`
}

func (m *Medication) clone() *Medication {
	c := *m
	c.History = append([]CustodyEvent(nil), m.History...)
	return &c
}

// Fixtures is the simulated ledger content.
func Fixtures() []*Medication {
	return []*Medication{
		{
			ID:                "MED-XYZ-123",
			Name:              "Aspirin 500mg",
			Manufacturer:      "Pharma Inc.",
			LotNumber:         "LOT-A456",
			ManufacturingDate: "2024-01-15",
			ExpiryDate:        "2026-01-14",
			History: []CustodyEvent{
				{Status: "Manufactured", Location: "Factory A", Timestamp: "2024-01-15T08:00:00Z"},
				{Status: "Shipped", Location: "Distributor B", Timestamp: "2024-01-20T14:30:00Z"},
				{Status: "Received", Location: "Pharmacy C", Timestamp: "2024-01-25T10:00:00Z"},
			},
		},
		{
			ID:                "MED-ABC-789",
			Name:              "Paracetamol 1000mg",
			Manufacturer:      "Health Corp.",
			LotNumber:         "LOT-B789",
			ManufacturingDate: "2023-11-10",
			ExpiryDate:        "2025-11-09",
			History: []CustodyEvent{
				{Status: "Manufactured", Location: "Factory D", Timestamp: "2023-11-10T09:00:00Z"},
				{Status: "Shipped", Location: "Distributor E", Timestamp: "2023-11-15T16:00:00Z"},
				{Status: "Received", Location: "Hospital F", Timestamp: "2023-11-20T11:00:00Z"},
			},
		},
	}
}
