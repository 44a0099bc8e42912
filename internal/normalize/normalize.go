// Package normalize turns loosely typed form input into canonical values.
package normalize

import (
	"fmt"
	"strings"
	"unicode"
)

// Bool parses the boolean spellings that form-encoded and JSON clients send.
// A blank value means "unknown" and yields nil.
func Bool(s string) (*bool, error) {
	var v bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "1", "true", "on", "yes":
		v = true
	case "0", "false", "off", "no":
		v = false
	default:
		return nil, fmt.Errorf("invalid boolean %q", s)
	}
	return &v, nil
}

// StripSpaces removes every whitespace rune.
func StripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Phone returns the first non-blank candidate with whitespace removed, or "".
func Phone(candidates ...*string) string {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if p := StripSpaces(*c); p != "" {
			return p
		}
	}
	return ""
}

// InternationalPhone rewrites a number into +<country><number> form.
// A leading "00" becomes "+"; numbers without "+" get defaultCode prepended.
func InternationalPhone(raw, defaultCode string) string {
	p := StripSpaces(raw)
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "00") {
		p = "+" + p[2:]
	}
	if !strings.HasPrefix(p, "+") {
		code := StripSpaces(defaultCode)
		if code != "" && !strings.HasPrefix(code, "+") {
			code = "+" + code
		}
		p = code + p
	}
	return p
}

// ZoneTokens splits a comma-separated zone string into lower-cased, trimmed,
// non-empty locality tokens.
func ZoneTokens(zone *string) []string {
	if zone == nil {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(*zone, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Text trims s and returns nil when nothing is left.
func Text(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
