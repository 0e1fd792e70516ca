package gateway

import "encoding/json"

type CreateDIDRequest struct {
	Name string `json:"name"`
	NPI  string `json:"npi"`
}

type CreateDIDResponse struct {
	DID string `json:"did"`
}

type IssueMedicalVCRequest struct {
	PatientDID   string `json:"patientDid"`
	MedicalEntry any    `json:"medicalEntry"`
}

// VerifyRequest carries the payload under both keys the service has accepted
// across client versions.
type VerifyRequest struct {
	VC         string `json:"vc"`
	Credential string `json:"credential"`
}

type VerifyResult struct {
	IsValid bool            `json:"isValid"`
	Raw     json.RawMessage `json:"-"`
}

type LoginRequest struct {
	HospitalID string `json:"hospitalId"`
	PrivateKey string `json:"privateKey"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}
