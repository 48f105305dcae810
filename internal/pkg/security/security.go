// Package security provides input validation for sources and paths,
// log sanitization, and sensitive header masking.
package security

import (
	"net/http"
	"path"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxPathLength is the maximum allowed path length.
const MaxPathLength = 1024

// logLimit is the rune budget SanitizeForLog applies.
const logLimit = 200

// PathError reports why a watched-tree path was refused.
type PathError struct {
	Reason string
	Path   string
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return e.Reason + ": " + e.Path
}

// Is matches on Reason so errors.Is works against the sentinels below.
func (e *PathError) Is(target error) bool {
	t, ok := target.(*PathError)
	return ok && t.Reason == e.Reason
}

// Sentinel path errors, usable with errors.Is.
var (
	ErrPathEmpty        = &PathError{Reason: "path is empty"}
	ErrPathNullByte     = &PathError{Reason: "path contains null byte"}
	ErrPathTraversal    = &PathError{Reason: "path traversal detected"}
	ErrPathAbsolute     = &PathError{Reason: "absolute path not allowed"}
	ErrPathTooLong      = &PathError{Reason: "path exceeds maximum length"}
	ErrPathReservedName = &PathError{Reason: "path contains reserved name"}
)

func refuse(sentinel *PathError, shown string) *PathError {
	return &PathError{Reason: sentinel.Reason, Path: shown}
}

// Device names that Windows refuses as file stems.
var deviceStems = []string{
	"aux", "con", "nul", "prn",
	"com1", "com2", "com3", "com4", "com5", "com6", "com7", "com8", "com9",
	"lpt1", "lpt2", "lpt3", "lpt4", "lpt5", "lpt6", "lpt7", "lpt8", "lpt9",
}

// ValidatePath checks a path relative to a watched root. It rejects empty
// and over-long paths, null bytes, absolute paths, components that climb
// above the root, and reserved device names.
func ValidatePath(p string) error {
	switch {
	case p == "":
		return ErrPathEmpty
	case strings.IndexByte(p, 0) >= 0:
		return refuse(ErrPathNullByte, "[contains null byte]")
	case len(p) > MaxPathLength:
		return refuse(ErrPathTooLong, p[:50]+"...")
	case isAbsolute(p):
		return refuse(ErrPathAbsolute, SanitizeForLog(p))
	}

	// Backslashes are separators on Windows sources; treat them as such
	// everywhere so traversal checks see the same components.
	clean := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return refuse(ErrPathTraversal, SanitizeForLog(p))
	}
	for _, part := range strings.Split(clean, "/") {
		if isDeviceName(part) {
			return refuse(ErrPathReservedName, SanitizeForLog(p))
		}
	}
	return nil
}

// isAbsolute recognizes both unix roots and drive letters, independent
// of the host OS.
func isAbsolute(p string) bool {
	if p[0] == '/' || p[0] == '\\' {
		return true
	}
	if len(p) < 3 || p[1] != ':' {
		return false
	}
	r, _ := utf8.DecodeRuneInString(p)
	return unicode.IsLetter(r) && (p[2] == '/' || p[2] == '\\')
}

func isDeviceName(component string) bool {
	stem := strings.ToLower(component)
	if dot := strings.IndexByte(stem, '.'); dot > 0 {
		stem = stem[:dot]
	}
	return slices.Contains(deviceStems, stem)
}

// SanitizeForLog makes s safe for a single log line: newlines and tabs are
// escaped, other control characters dropped, and the result truncated.
func SanitizeForLog(s string) string {
	return SanitizeForLogWithLength(s, logLimit)
}

// SanitizeForLogWithLength is SanitizeForLog with a caller-chosen budget.
// Escapes count as two toward maxLen.
func SanitizeForLogWithLength(s string, maxLen int) string {
	var b strings.Builder
	used := 0
	for _, r := range s {
		if used >= maxLen {
			b.WriteString("...")
			break
		}
		if esc, ok := logEscapes[r]; ok {
			b.WriteString(esc)
			used += len(esc)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		used++
	}
	return b.String()
}

var logEscapes = map[rune]string{
	'\n': `\n`,
	'\r': `\r`,
	'\t': `\t`,
}

const redacted = "[REDACTED]"

// Headers that always carry credentials, in canonical form.
var credentialHeaders = []string{
	"Authorization",
	"Cookie",
	"Proxy-Authorization",
	"Set-Cookie",
}

// Fragments that mark a custom header as credential-bearing.
var credentialHints = []string{"auth", "key", "password", "secret", "token"}

// MaskSensitiveHeaders returns a copy of headers with credential values
// replaced by [REDACTED].
func MaskSensitiveHeaders(headers http.Header) http.Header {
	if headers == nil {
		return nil
	}
	masked := headers.Clone()
	for name := range masked {
		if carriesCredential(name) {
			masked[name] = []string{redacted}
		}
	}
	return masked
}

func carriesCredential(name string) bool {
	if slices.Contains(credentialHeaders, http.CanonicalHeaderKey(name)) {
		return true
	}
	lower := strings.ToLower(name)
	return slices.ContainsFunc(credentialHints, func(hint string) bool {
		return strings.Contains(lower, hint)
	})
}
