// Package normalizers provides field normalization functions for grouping keys
package normalizers

import (
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("halfwidth", HalfWidth)
	Register("collapse_whitespace", CollapseWhitespace)
	Register("remove_punctuation", RemovePunctuation)
	Register("ntitle", NormalizeTitle)
	Register("norg", NormalizeOrg)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// HalfWidth folds full-width ASCII variants and ideographic spaces to their
// half-width equivalents. Korean portal titles mix both forms freely.
func HalfWidth(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '　': // ideographic space
			result.WriteRune(' ')
		case r >= '！' && r <= '～': // full-width ASCII block
			result.WriteRune(r - 0xFEE0)
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}

// CollapseWhitespace replaces runs of whitespace with a single space
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RemovePunctuation removes punctuation and symbol runes. Letters, digits and
// whitespace survive, so Hangul and Han text passes through untouched.
func RemovePunctuation(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}

// NormalizeTitle produces the clustering key for a program name
func NormalizeTitle(s string) string {
	s = HalfWidth(s)
	s = RemovePunctuation(s)
	s = Lowercase(s)
	return CollapseWhitespace(s)
}

// NormalizeOrg normalizes an organizer name for fuzzy comparison
func NormalizeOrg(s string) string {
	s = HalfWidth(s)
	s = RemovePunctuation(s)
	s = Lowercase(s)
	return CollapseWhitespace(s)
}
