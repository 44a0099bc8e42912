// Package form reads loosely typed request payloads (JSON objects or
// form-encoded bodies) while remembering which keys were sent, so partial
// updates can tell "absent" from "explicitly null".
package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/assacalos/megvie/internal/normalize"
)

const DateLayout = "2006-01-02"

// Values maps a key to its raw text; a nil pointer means the key was sent as null.
type Values map[string]*string

// Errors collects field-level validation messages.
type Errors map[string][]string

func (e Errors) Add(field, msg string) { e[field] = append(e[field], msg) }

func (e Errors) Has(field string) bool { return len(e[field]) > 0 }

// Field is an optional input: Set tells whether the key was present at all.
type Field[T any] struct {
	Set   bool
	Value *T
}

func FromJSON(data []byte) (Values, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Values{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode json body: %w", err)
	}
	v := make(Values, len(raw))
	for k, msg := range raw {
		msg = bytes.TrimSpace(msg)
		switch {
		case bytes.Equal(msg, []byte("null")):
			v[k] = nil
		case len(msg) > 0 && msg[0] == '"':
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return nil, fmt.Errorf("decode %s: %w", k, err)
			}
			v[k] = &s
		default:
			s := string(msg)
			v[k] = &s
		}
	}
	return v, nil
}

func FromURLValues(src url.Values) Values {
	v := make(Values, len(src))
	for k, vals := range src {
		if k == "_method" || len(vals) == 0 {
			continue
		}
		s := vals[0]
		v[k] = &s
	}
	return v
}

func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// HasAny reports whether at least one of keys was sent.
func (v Values) HasAny(keys ...string) bool {
	for _, k := range keys {
		if v.Has(k) {
			return true
		}
	}
	return false
}

// Required returns the trimmed value of key, recording an error if it is missing or blank.
func (v Values) Required(key string, errs Errors) string {
	p, ok := v[key]
	if !ok || p == nil || strings.TrimSpace(*p) == "" {
		errs.Add(key, fmt.Sprintf("The %s field is required.", key))
		return ""
	}
	return strings.TrimSpace(*p)
}

// String reads an optional string; blank and null both clear the value.
func (v Values) String(key string, maxLen int, errs Errors) Field[string] {
	p, ok := v[key]
	if !ok {
		return Field[string]{}
	}
	if p == nil {
		return Field[string]{Set: true}
	}
	if maxLen > 0 && len([]rune(*p)) > maxLen {
		errs.Add(key, fmt.Sprintf("The %s field must not be greater than %d characters.", key, maxLen))
	}
	return Field[string]{Set: true, Value: normalize.Text(*p)}
}

func (v Values) Email(key string, errs Errors) Field[string] {
	f := v.String(key, 255, errs)
	if f.Value != nil {
		if _, err := mail.ParseAddress(*f.Value); err != nil || strings.Contains(*f.Value, " ") {
			errs.Add(key, fmt.Sprintf("The %s field must be a valid email address.", key))
		}
	}
	return f
}

func (v Values) Bool(key string, errs Errors) Field[bool] {
	p, ok := v[key]
	if !ok {
		return Field[bool]{}
	}
	if p == nil {
		return Field[bool]{Set: true}
	}
	b, err := normalize.Bool(*p)
	if err != nil {
		errs.Add(key, fmt.Sprintf("The %s field must be true or false.", key))
	}
	return Field[bool]{Set: true, Value: b}
}

func (v Values) Int(key string, errs Errors) Field[int] {
	f, s := v.scalar(key)
	if s == "" {
		return Field[int]{Set: f}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		errs.Add(key, fmt.Sprintf("The %s field must be an integer.", key))
		return Field[int]{Set: true}
	}
	return Field[int]{Set: true, Value: &n}
}

func (v Values) Float(key string, errs Errors) Field[float64] {
	f, s := v.scalar(key)
	if s == "" {
		return Field[float64]{Set: f}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		errs.Add(key, fmt.Sprintf("The %s field must be a number.", key))
		return Field[float64]{Set: true}
	}
	return Field[float64]{Set: true, Value: &n}
}

// ID reads a foreign key. An empty string clears the relationship.
func (v Values) ID(key string, errs Errors) Field[uint] {
	f, s := v.scalar(key)
	if s == "" {
		return Field[uint]{Set: f}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		errs.Add(key, fmt.Sprintf("The selected %s is invalid.", key))
		return Field[uint]{Set: true}
	}
	id := uint(n)
	return Field[uint]{Set: true, Value: &id}
}

// Date parses YYYY-MM-DD (a full RFC 3339 timestamp is accepted too) into UTC midnight.
func (v Values) Date(key string, errs Errors) Field[time.Time] {
	f, s := v.scalar(key)
	if s == "" {
		return Field[time.Time]{Set: f}
	}
	d, err := ParseDate(s)
	if err != nil {
		errs.Add(key, fmt.Sprintf("The %s field must be a valid date.", key))
		return Field[time.Time]{Set: true}
	}
	return Field[time.Time]{Set: true, Value: &d}
}

func (v Values) Enum(key string, allowed []string, errs Errors) Field[string] {
	f := v.String(key, 0, errs)
	if f.Value == nil {
		return f
	}
	for _, a := range allowed {
		if *f.Value == a {
			return f
		}
	}
	errs.Add(key, fmt.Sprintf("The selected %s is invalid.", key))
	return Field[string]{Set: true}
}

func (v Values) scalar(key string) (bool, string) {
	p, ok := v[key]
	if !ok {
		return false, ""
	}
	if p == nil {
		return true, ""
	}
	return true, strings.TrimSpace(*p)
}

func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(DateLayout, s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
