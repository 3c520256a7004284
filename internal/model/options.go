package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
)

// Options is the free-form mapping forwarded to a decoder. Keys are
// decoder-specific; unknown keys are ignored. Values may be typed or strings.
type Options map[string]any

// ParseOptions builds Options from key=value pairs.
func ParseOptions(pairs []string) (Options, error) {
	opts := make(Options, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, eris.Errorf("options: malformed pair %q (want key=value)", p)
		}
		opts[strings.TrimSpace(k)] = v
	}
	return opts, nil
}

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// String returns the value of the first key present, as a string.
func (o Options) String(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := o[k]; ok {
			s, err := cast.ToStringE(v)
			if err == nil {
				return s, true
			}
		}
	}
	return "", false
}

// Int returns the integer value for key.
func (o Options) Int(key string) (int, bool, error) {
	v, ok := o[key]
	if !ok {
		return 0, false, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, true, eris.Wrapf(err, "options: %s must be an integer", key)
	}
	return n, true, nil
}

// Bool returns the boolean value for key, or false when absent.
func (o Options) Bool(key string) (bool, error) {
	v, ok := o[key]
	if !ok {
		return false, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, eris.Wrapf(err, "options: %s must be a boolean", key)
	}
	return b, nil
}

// Strings returns a list value for key. A string value is split on commas.
func (o Options) Strings(key string) ([]string, bool) {
	v, ok := o[key]
	if !ok {
		return nil, false
	}
	if s, isStr := v.(string); isStr {
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, true
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, false
	}
	return out, true
}
