package usecase

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/riskibarqy/team-reconciler/internal/domain/alias"
)

// clubTerms are legal/organizational tokens stripped from name edges only.
// Deliberately short: stripping city or identity words ("ac", "real", "inter")
// would collapse distinct clubs onto each other.
var clubTerms = map[string]struct{}{
	"fc":     {},
	"cf":     {},
	"afc":    {},
	"cfc":    {},
	"fk":     {},
	"sk":     {},
	"bk":     {},
	"if":     {},
	"sv":     {},
	"vfb":    {},
	"vfl":    {},
	"tsv":    {},
	"tsg":    {},
	"spvgg":  {},
	"club":   {},
	"calcio": {},
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalizer canonicalizes a team display name into a compact comparable
// token. Normalize is pure and deterministic; it performs no I/O.
type Normalizer struct {
	aliases alias.Table
}

func NewNormalizer(aliases alias.Table) *Normalizer {
	return &Normalizer{aliases: aliases}
}

// Normalize lower-cases, strips diacritics, drops club terms at word
// boundaries, substitutes alias canonical forms, and removes every remaining
// non-alphanumeric rune. If the rules would reduce the name to nothing the
// lower-cased trimmed original is returned instead, so fully generic names
// never collapse to "".
func (n *Normalizer) Normalize(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	folded := stripDiacritics(trimmed)
	tokens := splitAlphanumeric(folded)
	tokens = trimClubTerms(tokens)

	compact := strings.Join(tokens, "")
	if compact == "" {
		return trimmed
	}

	if canonical, ok := n.aliases.Canonical(compact); ok {
		return canonical
	}

	return compact
}

func stripDiacritics(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return out
}

func splitAlphanumeric(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// trimClubTerms drops club terms from both ends, repeatedly, so forms like
// "FC Bayern" and "Bayern FC" reduce the same way. Interior tokens are kept.
func trimClubTerms(tokens []string) []string {
	start, end := 0, len(tokens)
	for start < end {
		if _, ok := clubTerms[tokens[start]]; !ok {
			break
		}
		start++
	}
	for end > start {
		if _, ok := clubTerms[tokens[end-1]]; !ok {
			break
		}
		end--
	}
	return tokens[start:end]
}
