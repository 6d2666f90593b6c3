package signal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signals.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestLoadParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "invalid yaml",
			doc:  "signals: [unclosed",
		},
		{
			name: "top level is a list",
			doc:  "- a\n- b\n",
		},
		{
			name: "signals is a list",
			doc:  "signals:\n  - frustration\n",
		},
		{
			name: "zero weight",
			doc:  "signals:\n  frustration:\n    weight: 0\n    patterns: [\"x\"]\n",
		},
		{
			name: "negative weight",
			doc:  "signals:\n  frustration:\n    weight: -1.5\n    patterns: [\"x\"]\n",
		},
		{
			name: "patterns is a scalar",
			doc:  "signals:\n  frustration:\n    patterns: oops\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfigParse))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	registry, err := Load(writeConfig(t, `
signals:
  frustration:
    description: annoyance with a product
    patterns: ["annoying", "frustrated"]
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultMinLength, registry.MinLength())
	assert.Equal(t, DefaultMaxLength, registry.MaxLength())
	require.Len(t, registry.definitions, 1)
	// Weight defaults to 1.0 when the document omits it.
	assert.Equal(t, 1.0, registry.definitions[0].Weight)
	assert.Equal(t, "annoyance with a product", registry.definitions[0].Description)
}

func TestLoadPreservesDeclarationOrder(t *testing.T) {
	doc := `
signals:
  zeta: {patterns: ["z"]}
  alpha: {patterns: ["a"]}
  mid: {patterns: ["m"]}
language: {min_length: 1, max_length: 100}
`
	// Map-based decoding would sort or randomize these; the tie-break
	// depends on document order, so it must survive repeated loads.
	for i := 0; i < 5; i++ {
		registry, err := Load(writeConfig(t, doc))
		require.NoError(t, err)
		assert.Equal(t, []string{"zeta", "alpha", "mid"}, registry.Types())
	}
}

func TestLoadFullDocument(t *testing.T) {
	registry, err := Load(writeConfig(t, `
signals:
  frustration:
    description: annoyance
    weight: 1.2
    patterns: ["annoying"]
  question:
    weight: 0.8
    patterns: ["how do i", "why does"]
exclusions:
  patterns: ["giveaway", "sponsored"]
language:
  min_length: 10
  max_length: 280
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"frustration", "question"}, registry.Types())
	assert.Equal(t, 10, registry.MinLength())
	assert.Equal(t, 280, registry.MaxLength())
	assert.Len(t, registry.exclusions, 2)
	assert.Equal(t, 1.2, registry.definitions[0].Weight)
	assert.Equal(t, 0.8, registry.definitions[1].Weight)
}
