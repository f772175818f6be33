// Package enroll provides the enrolled-candidate records a live session
// resolves identifications against. A session loads one snapshot at start
// and treats it as read-only for its lifetime.
package enroll

import (
	"context"
	"strings"
)

// Candidate is a pre-registered identity eligible to receive a payment.
type Candidate struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	WalletAddress   string   `json:"wallet_address"`
	ReferenceImages []string `json:"reference_images,omitempty"`
}

// Store is a read-only source of enrolled candidates.
type Store interface {
	List(ctx context.Context) ([]Candidate, error)
}

// Match resolves a free-text reference (a name or a short description
// containing one) against the candidate snapshot. Matching is a simple
// name lookup: exact case-insensitive name first, then whole-name
// containment in either direction. No match returns false with a zero
// Candidate.
func Match(candidates []Candidate, ref string) (Candidate, bool) {
	ref = normalize(ref)
	if ref == "" {
		return Candidate{}, false
	}

	for _, c := range candidates {
		if normalize(c.Name) == ref {
			return c, true
		}
	}
	for _, c := range candidates {
		name := normalize(c.Name)
		if name == "" {
			continue
		}
		if containsWord(ref, name) || containsWord(name, ref) {
			return c, true
		}
	}
	return Candidate{}, false
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// containsWord reports whether needle appears in haystack on word
// boundaries, so "al" does not match "alice".
func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	idx := 0
	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(needle)
		startOK := start == 0 || haystack[start-1] == ' '
		endOK := end == len(haystack) || haystack[end] == ' '
		if startOK && endOK {
			return true
		}
		idx = start + 1
		if idx >= len(haystack) {
			return false
		}
	}
}
