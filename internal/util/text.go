package util

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// NormalizeText lowercases the input and collapses all runs of whitespace
// into single spaces. Used before comparing question text against candidate
// strings so that formatting differences never defeat an exact match.
func NormalizeText(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	return strings.Join(strings.Fields(lowered), " ")
}

// TextHash returns a stable hash key for a text value. Embedding caches are
// keyed by this rather than the raw text to keep map keys short.
func TextHash(value string) string {
	h := fnv.New64a()
	h.Write([]byte(value))
	return strconv.FormatUint(h.Sum64(), 16)
}
