package alias

import (
	"fmt"
	"strings"
)

// Rule declares that a set of equivalent name forms all normalize to one
// canonical form. Forms are compared in their compact normalized shape
// (lower-cased, diacritic-free, alphanumeric only).
type Rule struct {
	Canonical   string
	Equivalents []string
}

// Pin is a manually curated source->target id pair. Pins always win over
// every computed matching strategy.
type Pin struct {
	SourceID string
	TargetID string
}

// Table is the read-only alias configuration for one reconciliation run.
type Table struct {
	canonicalByForm map[string]string
	targetBySource  map[string]string
}

func NewTable(rules []Rule, pins []Pin) (Table, error) {
	canonicalByForm := make(map[string]string, len(rules)*2)
	for _, rule := range rules {
		canonical := compactForm(rule.Canonical)
		if canonical == "" {
			return Table{}, fmt.Errorf("alias rule has empty canonical form")
		}
		for _, form := range rule.Equivalents {
			compact := compactForm(form)
			if compact == "" {
				return Table{}, fmt.Errorf("alias rule %q has empty equivalent form", rule.Canonical)
			}
			if existing, ok := canonicalByForm[compact]; ok && existing != canonical {
				return Table{}, fmt.Errorf("alias form %q maps to both %q and %q", form, existing, canonical)
			}
			canonicalByForm[compact] = canonical
		}
		// A canonical form always resolves to itself so normalization stays idempotent.
		canonicalByForm[canonical] = canonical
	}

	targetBySource := make(map[string]string, len(pins))
	for _, pin := range pins {
		sourceID := strings.TrimSpace(pin.SourceID)
		targetID := strings.TrimSpace(pin.TargetID)
		if sourceID == "" || targetID == "" {
			return Table{}, fmt.Errorf("alias pin must have both source and target ids")
		}
		if existing, ok := targetBySource[sourceID]; ok && existing != targetID {
			return Table{}, fmt.Errorf("alias pin for source %q maps to both %q and %q", sourceID, existing, targetID)
		}
		targetBySource[sourceID] = targetID
	}

	return Table{
		canonicalByForm: canonicalByForm,
		targetBySource:  targetBySource,
	}, nil
}

// Canonical resolves a compact normalized form to its canonical form.
func (t Table) Canonical(form string) (string, bool) {
	canonical, ok := t.canonicalByForm[form]
	return canonical, ok
}

// PinFor returns the manually pinned target id for a source id, if any.
func (t Table) PinFor(sourceID string) (string, bool) {
	targetID, ok := t.targetBySource[sourceID]
	return targetID, ok
}

func (t Table) RuleCount() int {
	return len(t.canonicalByForm)
}

func (t Table) PinCount() int {
	return len(t.targetBySource)
}

// compactForm lower-cases and strips everything but letters and digits.
// Diacritics are left to the normalizer; alias files are expected to hold
// plain ASCII forms.
func compactForm(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
