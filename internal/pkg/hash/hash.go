// Package hash provides hashing utilities for cache keys.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// SourceKey is a fast in-process key for (language, source). It is not
// collision-free and must only gate work that is re-checked against the
// exact source.
func SourceKey(lang, source string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(lang)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(source)
	return d.Sum64()
}

// SourceKeyString renders SourceKey in base 36.
func SourceKeyString(lang, source string) string {
	return strconv.FormatUint(SourceKey(lang, source), 36)
}

// StorageKey is a stable key for persisting results derived from source in
// shared stores such as Redis or Badger.
func StorageKey(prefix, lang, source string) string {
	return prefix + ":" + lang + ":" + SHA256String(source)
}
