package utils

import "strings"

// NormalizeRoomCode lower-cases a room code and reports whether it is valid:
// 4–8 alphanumeric characters, matched case-insensitively.
func NormalizeRoomCode(code string) (string, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) < 4 || len(code) > 8 {
		return "", false
	}
	for _, r := range code {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", false
		}
	}
	return code, true
}
