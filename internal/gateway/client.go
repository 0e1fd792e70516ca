// Package gateway is the HTTP client for the remote DID / verifiable
// credential service. Every call is a single request/response round trip:
// no retries, no caching, and no timeout beyond what the caller's context
// or the configured http.Client impose.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medchain/medchain/internal/apperr"
)

const (
	OpCreateDID      = "create-did"
	OpResolveDID     = "resolve-did"
	OpIssueMedicalVC = "issue-medical-vc"
	OpVerifyVC       = "verify-vc"
	OpLogin          = "login"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout of zero leaves outbound calls unbounded.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to one remote base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New validates the base URL and returns a ready Client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway base url scheme must be http or https, got %q", u.Scheme)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    base,
		httpClient: hc,
		logger:     logger.With().Str("component", "gateway").Logger(),
	}, nil
}

// BaseURL returns the remote service root this client calls.
func (c *Client) BaseURL() string { return c.baseURL }

// CreateDID asks the identity service for a new decentralized identifier.
func (c *Client) CreateDID(ctx context.Context, req CreateDIDRequest) (*CreateDIDResponse, error) {
	var resp CreateDIDResponse
	if err := c.doJSON(ctx, OpCreateDID, http.MethodPost, "/create-did", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveDID returns the document the service holds for did, byte for byte.
func (c *Client) ResolveDID(ctx context.Context, did string) (json.RawMessage, error) {
	body, err := c.do(ctx, OpResolveDID, http.MethodGet, "/resolve-did/"+url.PathEscape(did), nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// IssueMedicalVC requests a credential for one medical entry. The response
// shape belongs to the remote service and is returned as-is.
func (c *Client) IssueMedicalVC(ctx context.Context, req IssueMedicalVCRequest) (json.RawMessage, error) {
	body, err := c.do(ctx, OpIssueMedicalVC, http.MethodPost, "/issue-medical-vc", req)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// VerifyVC submits a scanned payload for remote verification.
func (c *Client) VerifyVC(ctx context.Context, payload string) (*VerifyResult, error) {
	body, err := c.do(ctx, OpVerifyVC, http.MethodPost, "/verify-vc", VerifyRequest{VC: payload, Credential: payload})
	if err != nil {
		return nil, err
	}

	var probe struct {
		IsValid *bool `json:"isValid"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, &apperr.TransportError{Op: OpVerifyVC, Message: "malformed verification response", Err: err}
	}
	if probe.IsValid == nil {
		return nil, &apperr.TransportError{Op: OpVerifyVC, Message: "verification response carries no isValid flag"}
	}
	return &VerifyResult{IsValid: *probe.IsValid, Raw: json.RawMessage(body)}, nil
}

// Login exchanges hospital credentials for a bearer token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.doJSON(ctx, OpLogin, http.MethodPost, "/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	body, err := c.do(ctx, op, method, path, in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &apperr.TransportError{Op: op, Message: "malformed response body", Err: err}
	}
	return nil
}

// do performs one round trip and returns the raw success body. Non-2xx
// answers become TransportError with the server's detail message if any.
func (c *Client) do(ctx context.Context, op, method, path string, in any) ([]byte, error) {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &apperr.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("op", op).Dur("latency", time.Since(start)).Msg("gateway call failed")
		return nil, &apperr.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr := &apperr.TransportError{Op: op, Status: resp.StatusCode, Message: detailMessage(body)}
		c.logger.Error().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("detail", terr.Message).
			Dur("latency", time.Since(start)).
			Msg("gateway call failed")
		return nil, terr
	}

	c.logger.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("latency", time.Since(start)).Msg("gateway call")
	return body, nil
}

// detailMessage extracts the "detail" field of an error body. String details
// are returned verbatim; structured ones (validation error lists) as JSON.
func detailMessage(body []byte) string {
	var e errorBody
	if err := json.Unmarshal(body, &e); err != nil || len(e.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}
	if string(e.Detail) == "null" {
		return ""
	}
	return string(e.Detail)
}
