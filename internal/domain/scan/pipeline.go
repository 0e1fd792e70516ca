// Package scan turns a scanned or pasted QR payload into a disclosed record:
// the payload is verified as a credential by the remote service first, and
// only a valid credential is resolved to its DID document.
package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medchain/medchain/internal/apperr"
	"github.com/medchain/medchain/internal/gateway"
)

type Verifier interface {
	VerifyVC(ctx context.Context, payload string) (*gateway.VerifyResult, error)
}

type Resolver interface {
	ResolveDID(ctx context.Context, did string) (json.RawMessage, error)
}

const (
	KindPatient    = "patient"
	KindMedication = "medication"
)

// Document is the resolved DID document, exactly as the service returned it.
type Document json.RawMessage

func (d Document) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

// Kind guesses what the document describes so a view can pick its route.
// Medication documents carry lot or manufacturer data; anything else is
// treated as a patient.
func (d Document) Kind() string {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(d, &probe); err != nil {
		return KindPatient
	}
	for _, k := range []string{"lotNumber", "manufacturer"} {
		if _, ok := probe[k]; ok {
			return KindMedication
		}
	}
	return KindPatient
}

type Pipeline struct {
	verifier Verifier
	resolver Resolver
	logger   zerolog.Logger
}

func NewPipeline(verifier Verifier, resolver Resolver, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		verifier: verifier,
		resolver: resolver,
		logger:   logger.With().Str("component", "scan").Logger(),
	}
}

// Verify runs the verification half of the pipeline. It returns nil only
// when the remote service answered isValid=true.
func (p *Pipeline) Verify(ctx context.Context, payload string) error {
	if strings.TrimSpace(payload) == "" {
		return apperr.NewValidationError("payload")
	}

	res, err := p.verifier.VerifyVC(ctx, payload)
	if err != nil {
		return err
	}
	if res == nil || !res.IsValid {
		p.logger.Warn().Msg("credential rejected by verifier")
		return &apperr.CredentialInvalidError{}
	}
	return nil
}

// Run verifies payload and, only if it is valid, resolves it. Nothing is
// cached: the same payload scanned twice is verified twice.
func (p *Pipeline) Run(ctx context.Context, payload string) (Document, error) {
	if err := p.Verify(ctx, payload); err != nil {
		return nil, err
	}

	raw, err := p.resolver.ResolveDID(ctx, payload)
	if err != nil {
		var te *apperr.TransportError
		if errors.As(err, &te) && te.Status == http.StatusNotFound {
			return nil, &apperr.RecordNotFoundError{Kind: "document", ID: payload, Err: err}
		}
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &apperr.RecordNotFoundError{Kind: "document", ID: payload}
	}
	if !json.Valid(trimmed) {
		return nil, &apperr.TransportError{Op: gateway.OpResolveDID, Message: "resolved document is not valid JSON"}
	}

	doc := Document(raw)
	p.logger.Info().Str("kind", doc.Kind()).Msg("credential verified and resolved")
	return doc, nil
}
