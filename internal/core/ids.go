package core

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	PlanIDPrefix        = "sav"
	TransactionIDPrefix = "log"
)

// FormatDisplayID renders a database sequence value with its display prefix,
// zero padded to three digits (sav001, log042, log1234).
func FormatDisplayID(prefix string, n int64) string {
	return fmt.Sprintf("%s%03d", prefix, n)
}

// ParseDisplayID is the inverse of FormatDisplayID. A bare number is accepted.
func ParseDisplayID(prefix, s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), prefix)
	if s == "" {
		return 0, ErrInvalidID
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidID
	}
	return n, nil
}
