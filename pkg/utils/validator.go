package utils

import (
	"fmt"
	"regexp"
)

var (
	identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-]{0,127}$`)
	hexDigestRegex  = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// ValidateIdentifier validates tenant and instance identifiers. They appear
// in URLs, audit entries and chain hashes, so the charset is kept tight.
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier must not be empty")
	}
	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("invalid identifier format: %s", id)
	}
	return nil
}

// ValidateHexDigest validates a lowercase hex SHA-256 digest.
func ValidateHexDigest(digest string) error {
	if !hexDigestRegex.MatchString(digest) {
		return fmt.Errorf("invalid sha256 digest: %s", digest)
	}
	return nil
}

// SanitizeString removes control characters from free-form input before it
// is stored or logged.
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}
