package signal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseRegistry(t *testing.T, doc string) *Registry {
	t.Helper()
	registry, err := Parse([]byte(doc))
	require.NoError(t, err)
	return registry
}

func TestDetectJapaneseScenario(t *testing.T) {
	detector := NewDetector(parseRegistry(t, `
signals:
  frustration:
    weight: 1.0
    patterns: ["疲れ", "大変"]
exclusions:
  patterns: ["広告"]
language:
  min_length: 5
  max_length: 1000
`))

	got := detector.Detect("今日は疲れたし大変だった")
	require.NotNil(t, got)
	assert.Equal(t, "frustration", got.Type)
	assert.Equal(t, []string{"疲れ", "大変"}, got.Matches)
	// Two corroborating patterns boost the base weight by 10%.
	assert.InDelta(t, 1.1, got.Weight, 1e-9)

	assert.Nil(t, detector.Detect("疲れた広告"))
}

func TestDetectLengthGates(t *testing.T) {
	detector := NewDetector(parseRegistry(t, `
signals:
  frustration:
    patterns: ["annoying"]
`))

	tests := []struct {
		name string
		text string
	}{
		{"below min length", "so annoying"},
		{"above max length", "annoying " + strings.Repeat("x", 1200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, detector.Detect(tt.text))
			assert.Empty(t, detector.DetectAll(tt.text))
		})
	}

	// Same content at an eligible length classifies.
	require.NotNil(t, detector.Detect("this product is so annoying to set up"))
}

func TestDetectExclusionVeto(t *testing.T) {
	detector := NewDetector(parseRegistry(t, `
signals:
  frustration:
    patterns: ["annoying"]
exclusions:
  patterns: ["sponsored"]
`))

	text := "this sponsored gadget is so annoying to set up"
	assert.Nil(t, detector.Detect(text))
	assert.Empty(t, detector.DetectAll(text))
}

func TestDetectCaseInsensitiveLiteralPatterns(t *testing.T) {
	detector := NewDetector(parseRegistry(t, `
signals:
  problem:
    patterns: ["WiFi", "a+b"]
language: {min_length: 1, max_length: 1000}
`))

	got := detector.Detect("my WIFI keeps dropping")
	require.NotNil(t, got)
	assert.Equal(t, []string{"WiFi"}, got.Matches)

	// Patterns are literals: "a+b" matches itself, not the regex a+b.
	got = detector.Detect("the formula a+b is wrong")
	require.NotNil(t, got)
	assert.Equal(t, []string{"a+b"}, got.Matches)
	assert.Nil(t, detector.Detect("aaab everywhere"))
}

func TestDetectNormalizesWidthVariants(t *testing.T) {
	detector := NewDetector(parseRegistry(t, `
signals:
  problem:
    patterns: ["wifi"]
language: {min_length: 1, max_length: 1000}
`))

	// Full-width input folds to the same form as the pattern.
	got := detector.Detect("ＷｉＦｉが遅い")
	require.NotNil(t, got)
	assert.Equal(t, "problem", got.Type)
}

func TestDetectPicksHighestEffectiveWeight(t *testing.T) {
	detector := NewDetector(parseRegistry(t, `
signals:
  frustration:
    weight: 1.0
    patterns: ["slow", "broken"]
  desire:
    weight: 1.05
    patterns: ["wish"]
language: {min_length: 1, max_length: 1000}
`))

	// frustration: 1.0 × 1.1 = 1.1 beats desire's single match at 1.05.
	got := detector.Detect("it is slow and broken, wish it worked")
	require.NotNil(t, got)
	assert.Equal(t, "frustration", got.Type)
	assert.InDelta(t, 1.1, got.Weight, 1e-9)

	// A higher base weight with one match beats the boosted pair.
	detector = NewDetector(parseRegistry(t, `
signals:
  frustration:
    weight: 1.0
    patterns: ["slow", "broken"]
  desire:
    weight: 1.2
    patterns: ["wish"]
language: {min_length: 1, max_length: 1000}
`))
	got = detector.Detect("it is slow and broken, wish it worked")
	require.NotNil(t, got)
	assert.Equal(t, "desire", got.Type)
	assert.InDelta(t, 1.2, got.Weight, 1e-9)
}

func TestDetectTieBreaksByDeclarationOrder(t *testing.T) {
	// Names chosen so declaration order differs from lexical order.
	doc := `
signals:
  zz_declared_first:
    weight: 1.0
    patterns: ["same"]
  aa_declared_second:
    weight: 1.0
    patterns: ["same"]
language: {min_length: 1, max_length: 1000}
`
	for i := 0; i < 10; i++ {
		detector := NewDetector(parseRegistry(t, doc))
		got := detector.Detect("same words here")
		require.NotNil(t, got)
		assert.Equal(t, "zz_declared_first", got.Type)
	}
}

func TestDetectAllReturnsBaseWeights(t *testing.T) {
	detector := NewDetector(parseRegistry(t, `
signals:
  frustration:
    weight: 1.0
    patterns: ["slow", "broken"]
  desire:
    weight: 0.9
    patterns: ["wish"]
  question:
    weight: 0.8
    patterns: ["how do i"]
language: {min_length: 1, max_length: 1000}
`))

	got := detector.DetectAll("it is slow and broken, wish it worked")
	require.Len(t, got, 2)
	assert.Equal(t, "frustration", got[0].Type)
	assert.Equal(t, []string{"slow", "broken"}, got[0].Matches)
	// DetectAll carries base weights, never the boosted ones.
	assert.Equal(t, 1.0, got[0].Weight)
	assert.Equal(t, "desire", got[1].Type)
	assert.Equal(t, 0.9, got[1].Weight)
}

func TestMatcher(t *testing.T) {
	detector := NewDetector(parseRegistry(t, `
signals:
  frustration:
    patterns: ["annoying"]
language: {min_length: 1, max_length: 1000}
`))
	match := detector.Matcher()

	signalType, matches := match("this is annoying")
	assert.Equal(t, "frustration", signalType)
	assert.Equal(t, []string{"annoying"}, matches)

	signalType, matches = match("perfectly fine")
	assert.Empty(t, signalType)
	assert.Nil(t, matches)
}
