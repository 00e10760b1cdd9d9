package logger

import (
	"net/http"
	"strings"
)

// DefaultMaskValue replaces sensitive values in log output.
const DefaultMaskValue = "***"

const maxFilterDepth = 8

// FilterConfig defines which keys are considered sensitive.
type FilterConfig struct {
	// SensitiveFields are matched case-insensitively against field and header names.
	SensitiveFields []string
	// MaskValue replaces sensitive data (default: "***").
	MaskValue string
}

// DefaultFilterConfig masks credentials that flow through an API client.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"authorization", "proxy-authorization",
			"api_key", "apikey", "x-api-key",
			"token", "access_token", "refresh_token",
			"secret", "password", "credentials",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks values whose key names a credential.
type SensitiveDataFilter struct {
	fields map[string]struct{}
	mask   string
}

// NewSensitiveDataFilter creates a filter. A nil config selects DefaultFilterConfig.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	mask := config.MaskValue
	if mask == "" {
		mask = DefaultMaskValue
	}
	fields := make(map[string]struct{}, len(config.SensitiveFields))
	for _, f := range config.SensitiveFields {
		fields[strings.ToLower(f)] = struct{}{}
	}
	return &SensitiveDataFilter{fields: fields, mask: mask}
}

// IsSensitive reports whether key names a sensitive field.
func (f *SensitiveDataFilter) IsSensitive(key string) bool {
	_, ok := f.fields[strings.ToLower(key)]
	return ok
}

// FilterString masks value when key is sensitive.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if f.IsSensitive(key) {
		return f.mask
	}
	return value
}

// FilterFields returns a copy of fields with sensitive entries masked.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	return f.filterMap(fields, maxFilterDepth)
}

// FilterValue masks value when key is sensitive and descends into maps and headers.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	return f.filterValue(key, value, maxFilterDepth)
}

// FilterHeaders returns a copy of h with sensitive header values masked.
func (f *SensitiveDataFilter) FilterHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		if f.IsSensitive(k) {
			out[k] = []string{f.mask}
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}

func (f *SensitiveDataFilter) filterValue(key string, value any, depth int) any {
	if f.IsSensitive(key) {
		return f.mask
	}
	if depth <= 0 {
		return value
	}
	switch v := value.(type) {
	case map[string]any:
		return f.filterMap(v, depth-1)
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = f.FilterString(k, s)
		}
		return out
	case http.Header:
		return f.FilterHeaders(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = f.filterValue("", item, depth-1)
		}
		return out
	default:
		return value
	}
}

func (f *SensitiveDataFilter) filterMap(m map[string]any, depth int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = f.filterValue(k, v, depth)
	}
	return out
}
