package errors

import (
	"strings"
	"unicode"
)

// ValidateDatasetName validates a dataset name for safety and correctness.
// Dataset names become path components of cache and checksum files, so the
// rules are intentionally conservative:
//   - No empty names
//   - Lowercase letters, digits and underscores only
//   - Must start with a letter
//   - Maximum length of 64 characters
func ValidateDatasetName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidDataset, "dataset name cannot be empty")
	}
	if len(name) > 64 {
		return New(ErrCodeInvalidDataset, "dataset name too long (max 64 characters)")
	}
	if !unicode.IsLower(rune(name[0])) {
		return New(ErrCodeInvalidDataset, "dataset name must start with a lowercase letter: %q", name)
	}
	for _, r := range name {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) && r != '_' {
			return New(ErrCodeInvalidDataset, "dataset name contains invalid character %q", r)
		}
	}
	return nil
}

// ValidateID validates a record identifier. IDs come from dataset file
// listings and user input, and end up in cache keys and URLs, so anything
// that could be used for path traversal or injection is rejected.
func ValidateID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidID, "id cannot be empty")
	}
	if len(id) > 256 {
		return New(ErrCodeInvalidID, "id too long (max 256 characters)")
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidID, "id contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\\",   // Backslash (Windows path)
		"\x00", // Null byte
	}
	for _, pattern := range dangerousPatterns {
		if strings.Contains(id, pattern) {
			return New(ErrCodeInvalidID, "id contains invalid characters: %q", pattern)
		}
	}
	return nil
}

// ValidateFieldName validates a field name. Field names are declared by
// dataset packages, so this mostly guards against typos in user-supplied
// --fields flags reaching the cache layer.
func ValidateFieldName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidField, "field name cannot be empty")
	}
	for _, r := range name {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) && r != '_' {
			return New(ErrCodeInvalidField, "field name contains invalid character %q", r)
		}
	}
	return nil
}
