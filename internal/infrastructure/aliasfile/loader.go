package aliasfile

import (
	"fmt"
	"os"

	"github.com/riskibarqy/team-reconciler/internal/domain/alias"
	"github.com/riskibarqy/team-reconciler/internal/usecase"
	"gopkg.in/yaml.v3"
)

type fileDocument struct {
	Aliases []aliasEntry `yaml:"aliases"`
	Pins    []pinEntry   `yaml:"pins"`
}

type aliasEntry struct {
	Canonical   string   `yaml:"canonical"`
	Equivalents []string `yaml:"equivalents"`
}

type pinEntry struct {
	SourceID string `yaml:"source_id"`
	TargetID string `yaml:"target_id"`
}

// Load reads the curated alias table from a YAML file. A missing path is a
// configuration error; reconciliation without the alias table would silently
// lose every curator decision.
func Load(path string) (alias.Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return alias.Table{}, fmt.Errorf("%w: read alias file %s: %v", usecase.ErrConfiguration, path, err)
	}

	return Parse(raw)
}

// Parse builds the alias table from raw YAML bytes.
func Parse(raw []byte) (alias.Table, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return alias.Table{}, fmt.Errorf("%w: decode alias file: %v", usecase.ErrConfiguration, err)
	}

	rules := make([]alias.Rule, 0, len(doc.Aliases))
	for _, entry := range doc.Aliases {
		rules = append(rules, alias.Rule{
			Canonical:   entry.Canonical,
			Equivalents: entry.Equivalents,
		})
	}

	pins := make([]alias.Pin, 0, len(doc.Pins))
	for _, entry := range doc.Pins {
		pins = append(pins, alias.Pin{
			SourceID: entry.SourceID,
			TargetID: entry.TargetID,
		})
	}

	table, err := alias.NewTable(rules, pins)
	if err != nil {
		return alias.Table{}, fmt.Errorf("%w: %v", usecase.ErrConfiguration, err)
	}

	return table, nil
}
