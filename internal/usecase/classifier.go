package usecase

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
)

const (
	exactBandFloor   = 98.0
	partialBandFloor = 70.0

	// Variant-derived scores are capped below the exact band so an inferred
	// equivalence can never masquerade as a literal one.
	variantScoreCap = 97.0
)

// nameVariants are common linguistic equivalences between club name forms.
// Each pair is applied in both directions to both inputs and the best
// resulting similarity wins, so abbreviation differences are not penalized.
var nameVariants = [][2]string{
	{"united", "utd"},
	{"saint", "st"},
	{"internazionale", "inter"},
	{"borussia", "bor"},
	{"wanderers", "wdrs"},
	{"athletic", "atl"},
	{"atletico", "atl"},
	{"sporting", "sp"},
	{"rovers", "rvs"},
	{"county", "co"},
}

// Classification is the discrete confidence bucket plus its numeric score.
type Classification struct {
	Tier       mapping.Tier
	Confidence float64
}

// Classifier converts a pair of normalized names into a tier and confidence.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify computes a normalized-edit-distance similarity between two already
// normalized names and maps it onto the tier bands. Empty input on either
// side classifies as error with confidence zero.
func (c *Classifier) Classify(a, b string) Classification {
	if a == "" || b == "" {
		return Classification{Tier: mapping.TierError, Confidence: 0}
	}

	best := similarity(a, b)
	if variant := bestVariantScore(a, b); variant > best {
		best = variant
	}

	return Classification{Tier: tierForSimilarity(best), Confidence: best}
}

func tierForSimilarity(score float64) mapping.Tier {
	switch {
	case score >= exactBandFloor:
		return mapping.TierExact
	case score >= partialBandFloor:
		return mapping.TierPartial
	default:
		return mapping.TierSuspicious
	}
}

// similarity is (maxLen - distance) / maxLen * 100 over rune-wise edit distance.
func similarity(a, b string) float64 {
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}

	distance := levenshtein.ComputeDistance(a, b)
	if distance > maxLen {
		distance = maxLen
	}

	return float64(maxLen-distance) / float64(maxLen) * 100
}

// bestVariantScore rewrites both strings with each known variant pair, in
// both directions, and scores the rewritten forms. When a rewrite leaves one
// form contained in the other the score is taken from the containment ratio,
// since distance alone under-rewards a shared stem.
func bestVariantScore(a, b string) float64 {
	best := 0.0
	for _, pair := range nameVariants {
		for _, dir := range [][2]string{{pair[0], pair[1]}, {pair[1], pair[0]}} {
			ra := strings.ReplaceAll(a, dir[0], dir[1])
			rb := strings.ReplaceAll(b, dir[0], dir[1])
			if ra == a && rb == b {
				continue
			}

			score := similarity(ra, rb)
			if contained(ra, rb) {
				if cs := containmentScore(ra, rb); cs > score {
					score = cs
				}
			}
			if score > variantScoreCap {
				score = variantScoreCap
			}
			if score > best {
				best = score
			}
		}
	}

	return best
}

func contained(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// containmentScore lands inside the partial band, scaled by how much of the
// longer form the shorter one covers.
func containmentScore(a, b string) float64 {
	minLen, maxLen := len(a), len(b)
	if minLen > maxLen {
		minLen, maxLen = maxLen, minLen
	}
	if maxLen == 0 {
		return 0
	}

	return partialBandFloor + (variantScoreCap-partialBandFloor)*float64(minLen)/float64(maxLen)
}
