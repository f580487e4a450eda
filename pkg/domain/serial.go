package domain

import (
	"strings"

	dErrors "arsenal/pkg/domain-errors"
)

// SerialNumber is a case-normalized physical serial. Uniqueness is global,
// across every weapon model and import group.
type SerialNumber string

// NormalizeSerial trims and upper-cases raw input. It does not validate.
func NormalizeSerial(raw string) SerialNumber {
	return SerialNumber(strings.ToUpper(strings.TrimSpace(raw)))
}

// ParseSerialNumber normalizes and rejects empty input.
func ParseSerialNumber(raw string) (SerialNumber, error) {
	s := NormalizeSerial(raw)
	if s == "" {
		return "", dErrors.WithReason(dErrors.CodeInvalidInput, "empty_serial", "serial number cannot be empty")
	}
	return s, nil
}

func (s SerialNumber) String() string { return string(s) }
