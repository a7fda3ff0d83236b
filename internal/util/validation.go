package util

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// IsValidUUID accepts only the canonical 36 character form the store returns.
func IsValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// ParseTelegramID parses a positive numeric chat user id.
func ParseTelegramID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
