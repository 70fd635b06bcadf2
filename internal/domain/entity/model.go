package entity

import (
	"fmt"
	"strings"
)

// Provider identifies one of the two external sports-data sources.
type Provider string

const (
	// ProviderScoreline is the fixtures/news source whose team ids drive reconciliation.
	ProviderScoreline Provider = "scoreline"
	// ProviderClubdata is the stats source being mapped against.
	ProviderClubdata Provider = "clubdata"
)

func ParseProvider(raw string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(raw))) {
	case ProviderScoreline:
		return ProviderScoreline, nil
	case ProviderClubdata:
		return ProviderClubdata, nil
	default:
		return "", fmt.Errorf("unknown provider %q", raw)
	}
}

// Record is a point-in-time snapshot of a team as one provider represents it.
// Records are never mutated and never persisted beyond the run that fetched them.
type Record struct {
	Provider Provider
	ID       string
	Name     string
}

func (r Record) Validate() error {
	if r.Provider == "" {
		return fmt.Errorf("record provider is required")
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("record id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("record name is required")
	}

	return nil
}

// Fixture is a transactional record naming two teams. Both providers expose
// fixtures, which makes them usable as a cross-reference signal when the
// counterpart team of an already-mapped opponent resolves to a single id.
type Fixture struct {
	Provider Provider
	ID       string
	HomeID   string
	HomeName string
	AwayID   string
	AwayName string
}

// Opponent returns the other side of the fixture relative to teamID.
func (f Fixture) Opponent(teamID string) (id, name string, ok bool) {
	switch teamID {
	case f.HomeID:
		return f.AwayID, f.AwayName, true
	case f.AwayID:
		return f.HomeID, f.HomeName, true
	default:
		return "", "", false
	}
}
