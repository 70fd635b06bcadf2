package usecase

import (
	"testing"

	"github.com/riskibarqy/team-reconciler/internal/domain/alias"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()

	table, err := alias.NewTable([]alias.Rule{
		{Canonical: "parissaintgermain", Equivalents: []string{"psg", "paris sg"}},
	}, nil)
	if err != nil {
		t.Fatalf("build alias table: %v", err)
	}

	return NewNormalizer(table)
}

func TestNormalizeStripsClubTermsAtEdges(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer(t)

	cases := map[string]string{
		"FC Bayern München":  "bayernmunchen",
		"Bayern Munchen FC":  "bayernmunchen",
		"Arsenal FC":         "arsenal",
		"AFC Bournemouth":    "bournemouth",
		"Club Atlético Boca": "atleticoboca",
		"Nottingham Forest":  "nottinghamforest",
	}
	for raw, want := range cases {
		if got := n.Normalize(raw); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeKeepsIdentityTokens(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer(t)

	// "AC", "Real" and "Inter" are identity, not legal suffixes.
	cases := map[string]string{
		"AC Milan":    "acmilan",
		"Real Madrid": "realmadrid",
		"Inter Milan": "intermilan",
	}
	for raw, want := range cases {
		if got := n.Normalize(raw); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeStripsDiacritics(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer(t)

	if got := n.Normalize("São Paulo"); got != "saopaulo" {
		t.Fatalf("Normalize(São Paulo) = %q", got)
	}
	if got := n.Normalize("Atlético Madrid"); got != "atleticomadrid" {
		t.Fatalf("Normalize(Atlético Madrid) = %q", got)
	}
}

func TestNormalizeAppliesAliasCanonicalForm(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer(t)

	if got := n.Normalize("PSG"); got != "parissaintgermain" {
		t.Fatalf("Normalize(PSG) = %q", got)
	}
	if got := n.Normalize("Paris SG"); got != "parissaintgermain" {
		t.Fatalf("Normalize(Paris SG) = %q", got)
	}
}

func TestNormalizeFallsBackWhenRulesEraseEverything(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer(t)

	// A name made entirely of club terms must not collapse to "".
	if got := n.Normalize("FC"); got != "fc" {
		t.Fatalf("Normalize(FC) = %q", got)
	}
	if got := n.Normalize("  "); got != "" {
		t.Fatalf("Normalize(blank) = %q", got)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer(t)

	for _, raw := range []string{
		"FC Bayern München",
		"PSG",
		"AC Milan",
		"FC",
		"Borussia Mönchengladbach",
		"St. Pauli",
	} {
		once := n.Normalize(raw)
		if twice := n.Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q -> %q", raw, once, twice)
		}
	}
}
