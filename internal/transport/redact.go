package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// RedactionMarker replaces sensitive values in log output.
const RedactionMarker = "[REDACTED]"

// Redactor masks values belonging to sensitive keys in headers, JSON
// bodies, URLs, and free-form text. A key is sensitive when its lowercase
// form contains any configured substring.
type Redactor struct {
	keys []string
	re   *regexp.Regexp
}

// NewRedactor builds a redactor for the given sensitive-name substrings.
func NewRedactor(keys []string) *Redactor {
	lower := make([]string, 0, len(keys))
	quoted := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		lower = append(lower, k)
		quoted = append(quoted, regexp.QuoteMeta(k))
	}
	if len(quoted) == 0 {
		return &Redactor{}
	}
	// Best-effort masking for non-JSON payloads: key=value, key: value,
	// and quoted variants, with the value running to the next delimiter.
	re := regexp.MustCompile(`(?i)("?[\w-]*(?:` + strings.Join(quoted, "|") + `)[\w-]*"?\s*[:=]\s*)("[^"]*"|'[^']*'|[^\s&,;}\]]+)`)
	return &Redactor{keys: lower, re: re}
}

// SensitiveKey reports whether name matches the sensitive set. Hyphens
// count as underscores, so the api_key key also covers X-Api-Key.
func (r *Redactor) SensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	norm := strings.ReplaceAll(lower, "-", "_")
	for _, k := range r.keys {
		if strings.Contains(lower, k) || strings.Contains(norm, k) {
			return true
		}
	}
	return false
}

// Headers returns a loggable copy of h with sensitive values masked.
func (r *Redactor) Headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, vals := range h {
		if r.SensitiveKey(name) {
			out[name] = RedactionMarker
			continue
		}
		out[name] = strings.Join(vals, ", ")
	}
	return out
}

// URL renders u with sensitive query parameter values masked. Userinfo
// passwords are always masked.
func (r *Redactor) URL(u *url.URL) string {
	q := u.Query()
	changed := false
	for name, vals := range q {
		if !r.SensitiveKey(name) {
			continue
		}
		for i := range vals {
			vals[i] = RedactionMarker
		}
		q[name] = vals
		changed = true
	}
	if !changed {
		return u.Redacted()
	}
	masked := *u
	masked.RawQuery = q.Encode()
	return masked.Redacted()
}

// Body masks sensitive fields in a payload, recursing through nested JSON
// when it parses and falling back to pattern replacement otherwise.
func (r *Redactor) Body(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		var v any
		if err := json.Unmarshal(trimmed, &v); err == nil {
			if out, err := json.Marshal(r.mask(v)); err == nil {
				return string(out)
			}
		}
	}
	if r.re == nil {
		return string(body)
	}
	return r.re.ReplaceAllString(string(body), "${1}"+RedactionMarker)
}

func (r *Redactor) mask(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if r.SensitiveKey(k) {
				t[k] = RedactionMarker
			} else {
				t[k] = r.mask(val)
			}
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = r.mask(val)
		}
		return t
	default:
		return v
	}
}
