package security

import (
	"fmt"
	"unicode/utf8"
)

// Limits for inbound sources.
const (
	// MaxSourceSize bounds one source text handed to the engine.
	MaxSourceSize = 10 * 1024 * 1024 // 10MB

	// MaxRequestSize bounds one encoded request envelope. Sources are JSON
	// strings, so escaping can grow them.
	MaxRequestSize = 2*MaxSourceSize + 64*1024

	// binarySample is how much of a file IsBinary inspects.
	binarySample = 8192
)

// ValidationError represents a field validation error.
type ValidationError struct {
	Field      string
	Value      interface{}
	Constraint string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s: %s (got: %v)", e.Field, e.Constraint, e.Value)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Constraint)
}

// ValidateSource checks that a source is valid UTF-8 and within MaxSourceSize.
// Range offsets are byte offsets into the text, so a source with invalid
// encoding cannot be addressed consistently.
func ValidateSource(src string) error {
	if len(src) > MaxSourceSize {
		return &ValidationError{
			Field:      "source",
			Value:      formatSize(len(src)),
			Constraint: fmt.Sprintf("maximum size is %s", formatSize(MaxSourceSize)),
		}
	}
	if !utf8.ValidString(src) {
		return &ValidationError{
			Field:      "source",
			Constraint: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateFilePath validates a path reported by the watcher, relative to
// the watched root.
func ValidateFilePath(path string) error {
	if path == "" {
		return &ValidationError{
			Field:      "path",
			Constraint: "required",
		}
	}
	if err := ValidatePath(path); err != nil {
		return &ValidationError{
			Field:      "path",
			Value:      SanitizeForLog(path),
			Constraint: err.Error(),
		}
	}
	return nil
}

// IsBinary reports whether content looks like a binary file: a few null
// bytes, or more than 10% control bytes in the first 8KB.
func IsBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}

	sample := content[:min(len(content), binarySample)]
	nulls, control := 0, 0
	for _, b := range sample {
		switch {
		case b == 0:
			nulls++
			if nulls > 3 {
				return true
			}
		case b < 32 && b != '\t' && b != '\n' && b != '\r':
			control++
		}
	}
	return float64(control)/float64(len(sample)) > 0.1
}

func formatSize(bytes int) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB"}
	if exp >= len(units) {
		exp = len(units) - 1
	}
	return fmt.Sprintf("%.1f%s", float64(bytes)/float64(div), units[exp])
}
