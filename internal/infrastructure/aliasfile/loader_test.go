package aliasfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/team-reconciler/internal/usecase"
)

func TestParseBuildsTable(t *testing.T) {
	t.Parallel()

	raw := []byte(`
aliases:
  - canonical: parissaintgermain
    equivalents: ["psg", "paris sg"]
pins:
  - source_id: "541"
    target_id: "13379"
`)

	table, err := Parse(raw)
	require.NoError(t, err)

	canonical, ok := table.Canonical("psg")
	require.True(t, ok)
	assert.Equal(t, "parissaintgermain", canonical)

	target, ok := table.PinFor("541")
	require.True(t, ok)
	assert.Equal(t, "13379", target)
}

func TestParseRejectsConflictingForms(t *testing.T) {
	t.Parallel()

	raw := []byte(`
aliases:
  - canonical: internazionale
    equivalents: ["inter"]
  - canonical: intermiami
    equivalents: ["inter"]
`)

	_, err := Parse(raw)
	require.ErrorIs(t, err, usecase.ErrConfiguration)
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("aliases: ["))
	require.ErrorIs(t, err, usecase.ErrConfiguration)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, usecase.ErrConfiguration)
}

func TestLoadReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "aliases.yaml")
	raw := []byte("aliases:\n  - canonical: manchesterunited\n    equivalents: [\"man utd\"]\n")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	table, err := Load(path)
	require.NoError(t, err)

	canonical, ok := table.Canonical("manutd")
	require.True(t, ok)
	assert.Equal(t, "manchesterunited", canonical)
}
