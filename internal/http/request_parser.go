// Package http provides HTTP server and handler implementations.
//
// This file turns form and JSON request bodies into calculator updates. Values
// from the range controls are clamped and snapped here, the way the browser
// controls would, before they reach the calculator.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"emicalc/internal/core"
)

// Calculator controls addressable under /calculator/{input}.
const (
	InputPrincipal    = "principal"
	InputDownPayment  = "down-payment"
	InputInterestRate = "interest-rate"
	InputTenure       = "tenure"
)

var errUnknownInput = errors.New("unknown calculator input")

// ControlUpdate is one parsed control change.
type ControlUpdate struct {
	Input string
	Value float64
	Years int
}

// ParseControlUpdate reads the "value" field for the given control.
// Non-numeric values are rejected, never coerced to zero.
func ParseControlUpdate(input string, form url.Values) (ControlUpdate, error) {
	raw := sanitizeInput(form.Get("value"))
	switch input {
	case InputTenure:
		years, err := core.ParseTenure(raw)
		if err != nil {
			return ControlUpdate{}, err
		}
		return ControlUpdate{Input: input, Years: years}, nil
	case InputPrincipal, InputDownPayment, InputInterestRate:
		v, err := core.ParseNumber(raw)
		if err != nil {
			return ControlUpdate{}, err
		}
		return ControlUpdate{Input: input, Value: v}, nil
	default:
		return ControlUpdate{}, errUnknownInput
	}
}

// Apply returns the calculator mutation for the update, with the value
// clamped to the control's range. The down payment range depends on the
// principal, so it is resolved against the calculator being mutated.
func (u ControlUpdate) Apply(limits core.Limits) func(*core.Calculator) error {
	return func(c *core.Calculator) error {
		switch u.Input {
		case InputPrincipal:
			return c.SetPrincipal(limits.ClampPrincipal(u.Value))
		case InputDownPayment:
			principal := c.Snapshot().Inputs.Principal
			return c.SetDownPayment(limits.ClampDownPayment(u.Value, principal))
		case InputInterestRate:
			return c.SetInterestRate(limits.ClampRate(u.Value))
		case InputTenure:
			return c.SetTenure(u.Years)
		default:
			return errUnknownInput
		}
	}
}

// QuoteRequest is the body of the stateless quote API.
type QuoteRequest struct {
	LoanAmount   float64
	InterestRate float64
	TenureYears  int
}

// ParseQuoteRequest reads loan_amount, interest_rate and tenure_years from a
// JSON or form-encoded body.
func ParseQuoteRequest(r *http.Request) (QuoteRequest, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return QuoteRequest{}, err
	}

	var req QuoteRequest
	var err error
	if req.LoanAmount, err = core.ParseNumber(p.Get("loan_amount")); err != nil {
		return QuoteRequest{}, err
	}
	if req.InterestRate, err = core.ParseNumber(p.Get("interest_rate")); err != nil {
		return QuoteRequest{}, err
	}
	if req.TenureYears, err = core.ParseTenure(p.Get("tenure_years")); err != nil {
		return QuoteRequest{}, err
	}
	return req, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(r.Body)
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireGET allows GET and HEAD.
func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
