package util

import (
	"strconv"
	"strings"
	"time"
)

const DateAddedLayout = "January 2, 2006"

var zeroLike = map[string]struct{}{"0": {}, "0.0": {}, "0.00": {}}

// NormalizeZero maps zero-like scores to nil: a zero GPA or GRE means the
// applicant left the field blank.
func NormalizeZero(value *string) *string {
	if value == nil {
		return nil
	}
	if _, ok := zeroLike[strings.TrimSpace(*value)]; ok {
		return nil
	}
	return value
}

func ParseFloat(value *string) *float64 {
	if value == nil {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(*value), 64)
	if err != nil {
		return nil
	}
	return &parsed
}

func ParseDateAdded(value *string) *time.Time {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	parsed, err := time.Parse(DateAddedLayout, strings.TrimSpace(*value))
	if err != nil {
		return nil
	}
	return &parsed
}
