package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var errNegativeDuration = errors.New("must be >= 0")

// FieldError reports an invalid value at a dotted config path such as
// "retention.max_age".
type FieldError struct {
	Path  string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: invalid value %q: %v", e.Path, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ParseDurationField parses a Go duration string. Blank means zero.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, &FieldError{Path: path, Value: raw, Err: err}
	case d < 0:
		return 0, &FieldError{Path: path, Value: raw, Err: errNegativeDuration}
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for blank or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
