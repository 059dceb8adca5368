package fingerprint_test

import (
	"testing"

	"github.com/louiscollinsjr/getWork-run/internal/fingerprint"
	"github.com/louiscollinsjr/getWork-run/internal/model"
)

// ── Determinism ────────────────────────────────────────────────────────────

func TestForPosting_DeterministicAcrossNormalization(t *testing.T) {
	a := model.Posting{Title: "Software Engineer", Company: "Acme Corp", Location: "Remote"}
	b := model.Posting{Title: "  software   ENGINEER ", Company: "acme corp", Location: "REMOTE"}

	if fingerprint.ForPosting(a) != fingerprint.ForPosting(b) {
		t.Error("postings identical after normalization should share a fingerprint")
	}
}

func TestForPosting_StableAcrossCalls(t *testing.T) {
	p := model.Posting{Title: "Data Engineer", Company: "Initech", Location: "Austin, TX"}
	if fingerprint.ForPosting(p) != fingerprint.ForPosting(p) {
		t.Error("fingerprint must be deterministic for the same posting")
	}
}

// ── Field sensitivity ──────────────────────────────────────────────────────

func TestForPosting_DiffersWhenAnyFieldDiffers(t *testing.T) {
	base := model.Posting{Title: "Backend Developer", Company: "Globex", Location: "Remote"}

	variants := []model.Posting{
		{Title: "Frontend Developer", Company: "Globex", Location: "Remote"},
		{Title: "Backend Developer", Company: "Hooli", Location: "Remote"},
		{Title: "Backend Developer", Company: "Globex", Location: "Boston, MA"},
	}
	for _, v := range variants {
		if fingerprint.ForPosting(base) == fingerprint.ForPosting(v) {
			t.Errorf("posting %+v should not collide with base", v)
		}
	}
}

// ── URL priority ───────────────────────────────────────────────────────────

func TestForPosting_URLTakesPrecedence(t *testing.T) {
	a := model.Posting{Title: "X", Company: "Y", Location: "Z", URL: "https://boards.example.com/jobs/123"}
	b := model.Posting{Title: "completely", Company: "different", Location: "fields", URL: "https://boards.example.com/jobs/123"}

	if fingerprint.ForPosting(a) != fingerprint.ForPosting(b) {
		t.Error("postings with identical canonical URLs should share a fingerprint")
	}
}

func TestForPosting_BlankURLFallsBackToFields(t *testing.T) {
	a := model.Posting{Title: "X", Company: "Y", Location: "Z", URL: "   "}
	b := model.Posting{Title: "X", Company: "Y", Location: "Z"}

	if fingerprint.ForPosting(a) != fingerprint.ForPosting(b) {
		t.Error("whitespace-only URL should fall back to field hashing")
	}
}

func TestFromFields_SeparatorPreventsFieldBleed(t *testing.T) {
	// "ab"+"c" must not collide with "a"+"bc".
	if fingerprint.FromFields("ab", "c", "x") == fingerprint.FromFields("a", "bc", "x") {
		t.Error("field boundaries must be preserved in the hash input")
	}
}
