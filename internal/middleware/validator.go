package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var imageNamePattern = regexp.MustCompile(
	`^([a-z0-9]+([._-][a-z0-9]+)*(/[a-z0-9]+([._-][a-z0-9]+)*)*(:[a-zA-Z0-9._-]+)?(@sha256:[a-f0-9]{64})?)$`)

// ValidateImageName validates container image references
func ValidateImageName(image string) error {
	if image == "" {
		return fmt.Errorf("image reference cannot be empty")
	}

	// Image reference pattern: [registry/]name[:tag][@digest]
	if !imageNamePattern.MatchString(strings.ToLower(image)) {
		return fmt.Errorf("invalid image reference format")
	}

	// Block dangerous patterns
	dangerous := []string{"../", "..", "$(", "`", "&", "|", ";", "\n", "\r"}
	for _, d := range dangerous {
		if strings.Contains(image, d) {
			return fmt.Errorf("invalid characters in image reference")
		}
	}

	return nil
}

// SanitizeFilename strips path components and control characters from an
// uploaded file name, keeping only the base name.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}

	var result strings.Builder
	for _, r := range name {
		if r >= 32 {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
