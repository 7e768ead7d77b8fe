package flow

import (
	"sort"
	"strings"
)

// FingerprintSeparator joins tokens; whitespace splitting guarantees it never appears inside one
// unless the text itself contains it.
const FingerprintSeparator = "|"

// NormalizedText lowercases and trims.
func NormalizedText(text string) string {
	return strings.TrimSpace(strings.ToLower(text))
}

// TokenFingerprint returns the sorted unique whitespace tokens of the normalized text joined with
// FingerprintSeparator, or "" when there are none.
func TokenFingerprint(text string) string {
	fields := strings.Fields(NormalizedText(text))
	if len(fields) == 0 {
		return ""
	}
	set := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := set[f]; ok {
			continue
		}
		set[f] = struct{}{}
		tokens = append(tokens, f)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, FingerprintSeparator)
}

// EventFingerprint fingerprints the title and message of an event together.
func EventFingerprint(title, message string) string {
	return TokenFingerprint(title + " " + message)
}

// JaccardSimilarity is |a∩b| / |a∪b| over the token sets of two fingerprints.
// If either fingerprint is empty the result is 0, including when both are.
func JaccardSimilarity(fp1, fp2 string) float64 {
	if fp1 == "" || fp2 == "" {
		return 0.0
	}
	a := tokenSet(fp1)
	b := tokenSet(fp2)
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

func tokenSet(fp string) map[string]struct{} {
	parts := strings.Split(fp, FingerprintSeparator)
	set := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		set[p] = struct{}{}
	}
	return set
}
