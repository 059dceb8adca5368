// Package fingerprint derives stable posting identities for deduplication.
//
// The canonical job URL is the primary identity; when a board returns no
// URL the hash falls back to the normalised (title, company, location)
// triple. Either way the result is deterministic: two postings describing
// the same offer hash to the same value regardless of which source or run
// produced them.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/louiscollinsjr/getWork-run/internal/model"
)

// ForPosting returns the hex-encoded identity hash for p.
func ForPosting(p model.Posting) string {
	if u := strings.TrimSpace(p.URL); u != "" {
		return hash(u)
	}
	return FromFields(p.Title, p.Company, p.Location)
}

// FromFields hashes the normalised (title, company, location) triple.
func FromFields(title, company, location string) string {
	key := normalize(title) + "|" + normalize(company) + "|" + normalize(location)
	return hash(key)
}

// normalize lowercases and collapses all whitespace runs to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
