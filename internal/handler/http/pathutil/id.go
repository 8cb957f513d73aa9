package pathutil

import (
	"errors"
	"strings"
)

// ErrInvalidID is returned when the ID in the URL path is invalid.
var ErrInvalidID = errors.New("invalid id")

// ExtractID extracts a string ID from a URL path.
// It removes the specified prefix and validates the remaining segment:
// it must be non-empty and must not contain further path separators.
//
// Example:
//
//	id, err := ExtractID("/api/v1/tasks/8f14e45f-ceea-4e02", "/api/v1/tasks/")
//	// Returns: "8f14e45f-ceea-4e02", nil
func ExtractID(path, prefix string) (string, error) {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || id == path || strings.ContainsRune(id, '/') {
		return "", ErrInvalidID
	}
	return id, nil
}
