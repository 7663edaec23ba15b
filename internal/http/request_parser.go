// Package http serves the JSON API.
//
// This file parses request bodies and query strings. Bodies may be JSON or
// form encoded; both are read through the same accessor so handlers do not
// care which one the client sent.
package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"spendy/internal/core"
	"spendy/internal/storage"
)

const maxBodyBytes = 1 << 20

// RequestBodyParser reads a request body once and exposes its fields.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("%w: request body too large", core.ErrValidation)
	}
	return p
}

// Parse decodes the body as JSON when it looks like an object, as a form
// otherwise.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: malformed JSON body", core.ErrValidation)
		}
		return p.err
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	if p.err != nil {
		p.err = fmt.Errorf("%w: malformed form body", core.ErrValidation)
	}
	return p.err
}

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns the trimmed, sanitized string form of key.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if v, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(v))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Bool accepts JSON booleans and the strings true/false/1/0/on/off.
func (p *RequestBodyParser) Bool(key string) (bool, error) {
	if v, ok := p.jsonData[key].(bool); ok {
		return v, nil
	}
	s := strings.ToLower(p.Get(key))
	switch s {
	case "":
		return false, nil
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", core.ErrValidation, key)
	}
	return b, nil
}

// Amount parses a required positive decimal amount.
func (p *RequestBodyParser) Amount(key string) (core.Money, error) {
	return core.ParseAmount(p.Get(key))
}

// OptionalAmount returns nil when key is absent or empty. A zero amount is
// allowed, which clears an optional monthly budget.
func (p *RequestBodyParser) OptionalAmount(key string) (*core.Money, error) {
	s := p.Get(key)
	if s == "" {
		return nil, nil
	}
	m, err := core.ParseAmount(s)
	if err == nil {
		return &m, nil
	}
	if d, derr := decimal.NewFromString(s); derr == nil && d.IsZero() {
		return &core.Money{}, nil
	}
	return nil, err
}

// Date parses an optional YYYY-MM-DD field; absent yields the zero Date.
func (p *RequestBodyParser) Date(key string) (core.Date, error) {
	s := p.Get(key)
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseMonthParam reads month=YYYY-MM, defaulting to def.
func ParseMonthParam(query url.Values, def core.Month) (core.Month, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return def, nil
	}
	return core.ParseMonth(v)
}

// ParseActivityFilter builds an activity query from the URL. Paging values
// outside their range are clamped.
func ParseActivityFilter(query url.Values, userID string) (storage.ActivityFilter, error) {
	f := storage.ActivityFilter{
		UserID:          userID,
		RelatedTable:    sanitizeInput(query.Get("related_table")),
		RelatedRecordID: sanitizeInput(query.Get("related_record_id")),
		ActionType:      sanitizeInput(query.Get("action_type")),
	}

	var err error
	if v := query.Get("start_date"); v != "" {
		if f.StartDate, err = core.ParseDate(v); err != nil {
			return f, err
		}
	}
	if v := query.Get("end_date"); v != "" {
		if f.EndDate, err = core.ParseDate(v); err != nil {
			return f, err
		}
	}
	if v := query.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			return f, fmt.Errorf("%w: limit must be a number", core.ErrValidation)
		}
	}
	if v := query.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil {
			return f, fmt.Errorf("%w: offset must be a number", core.ErrValidation)
		}
	}
	return f.Normalize(), nil
}
