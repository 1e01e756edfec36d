package service

import (
	"regexp"
	"strings"
)

// 4-, 7- and 10-byte MIFARE UIDs as upper-case hex.
var cardIDPattern = regexp.MustCompile(`^[0-9A-F]{8}([0-9A-F]{6}([0-9A-F]{6})?)?$`)

// NormalizeCardID trims and upper-cases a scanned UID and validates its
// length and alphabet.
func NormalizeCardID(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if !cardIDPattern.MatchString(id) {
		return "", ErrInvalidCardID
	}
	return id, nil
}

func normalizeDirection(raw string) (string, error) {
	switch d := strings.ToLower(strings.TrimSpace(raw)); d {
	case "", "entry", "exit":
		return d, nil
	default:
		return "", ErrInvalidDirection
	}
}
