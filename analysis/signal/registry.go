// Package signal classifies short free-form text against a configured set
// of weighted pattern groups. A "signal" is evidence of an unmet need in
// the text: frustration, desire, a described problem, or a question.
package signal

import (
	"os"
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/needscoop/needscoop/internal/textutil"
)

var (
	// ErrConfigNotFound is returned by Load when the configuration file does not exist.
	ErrConfigNotFound = errors.New("signal config not found")
	// ErrConfigParse is returned by Load when the configuration file cannot be decoded.
	ErrConfigParse = errors.New("signal config parse error")
)

// Length gates applied when the configuration omits the language section.
const (
	DefaultMinLength = 20
	DefaultMaxLength = 1000
)

// Definition is one configured signal type. Patterns are matched literally
// and case-insensitively; they are compiled once at load time. Immutable
// after Load.
type Definition struct {
	Name        string
	Description string
	Weight      float64
	Patterns    []string

	compiled []*regexp.Regexp
}

// match returns the configured pattern strings that occur in text, in
// declaration order. One entry per configured pattern that matched.
func (d *Definition) match(text string) []string {
	var matched []string
	for i, re := range d.compiled {
		if re.MatchString(text) {
			matched = append(matched, d.Patterns[i])
		}
	}
	return matched
}

// Registry holds the loaded signal definitions in document declaration
// order, the exclusion patterns, and the text length gates. It is immutable
// after Load and safe for concurrent readers. Construct a fresh one to pick
// up changed configuration.
type Registry struct {
	definitions []*Definition
	exclusions  []string
	exCompiled  []*regexp.Regexp
	minLength   int
	maxLength   int
}

// Types returns the configured signal type names in declaration order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.definitions))
	for _, def := range r.definitions {
		types = append(types, def.Name)
	}
	return types
}

// MinLength returns the minimum eligible text length in runes.
func (r *Registry) MinLength() int { return r.minLength }

// MaxLength returns the maximum eligible text length in runes.
func (r *Registry) MaxLength() int { return r.maxLength }

// eligible reports whether a normalized text passes the length gates.
func (r *Registry) eligible(text string) bool {
	n := textutil.RuneLen(text)
	return n >= r.minLength && n <= r.maxLength
}

// excluded reports whether any exclusion pattern occurs in the text.
func (r *Registry) excluded(text string) bool {
	for _, re := range r.exCompiled {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// compilePattern builds the case-insensitive literal matcher for one
// configured pattern. The pattern text is normalized the same way input
// text is, so width variants line up.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)` + regexp.QuoteMeta(textutil.Normalize(pattern)))
}

// Load reads and compiles the signal configuration file.
//
// The file has three sections: signals (name → {description, weight,
// patterns}), exclusions ({patterns}), language ({min_length, max_length}).
// Signal definitions keep their document order, which later breaks
// classification ties deterministically.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrConfigNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "read signal config %s", path)
	}
	return Parse(raw)
}

// Parse decodes and compiles a signal configuration document.
func Parse(raw []byte) (*Registry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(ErrConfigParse, "invalid yaml: %v", err)
	}
	if len(doc.Content) == 0 {
		return nil, errors.Wrap(ErrConfigParse, "empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.Wrap(ErrConfigParse, "top level must be a mapping")
	}

	registry := &Registry{
		minLength: DefaultMinLength,
		maxLength: DefaultMaxLength,
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "signals":
			if err := registry.parseSignals(value); err != nil {
				return nil, err
			}
		case "exclusions":
			var section struct {
				Patterns []string `yaml:"patterns"`
			}
			if err := value.Decode(&section); err != nil {
				return nil, errors.Wrapf(ErrConfigParse, "exclusions: %v", err)
			}
			registry.exclusions = section.Patterns
		case "language":
			var section struct {
				MinLength *int `yaml:"min_length"`
				MaxLength *int `yaml:"max_length"`
			}
			if err := value.Decode(&section); err != nil {
				return nil, errors.Wrapf(ErrConfigParse, "language: %v", err)
			}
			if section.MinLength != nil {
				registry.minLength = *section.MinLength
			}
			if section.MaxLength != nil {
				registry.maxLength = *section.MaxLength
			}
		}
	}

	for _, pattern := range registry.exclusions {
		re, err := compilePattern(pattern)
		if err != nil {
			return nil, errors.Wrapf(ErrConfigParse, "exclusion pattern %q: %v", pattern, err)
		}
		registry.exCompiled = append(registry.exCompiled, re)
	}

	return registry, nil
}

// parseSignals walks the signals mapping node directly instead of decoding
// into a map, because Go maps would lose the document order the tie-break
// depends on.
func (r *Registry) parseSignals(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.Wrap(ErrConfigParse, "signals must be a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, value := node.Content[i].Value, node.Content[i+1]

		def := &Definition{Name: name, Weight: 1.0}
		var body struct {
			Description string   `yaml:"description"`
			Weight      *float64 `yaml:"weight"`
			Patterns    []string `yaml:"patterns"`
		}
		if err := value.Decode(&body); err != nil {
			return errors.Wrapf(ErrConfigParse, "signal %q: %v", name, err)
		}
		def.Description = body.Description
		if body.Weight != nil {
			def.Weight = *body.Weight
		}
		if def.Weight <= 0 {
			return errors.Wrapf(ErrConfigParse, "signal %q: weight must be positive, got %v", name, def.Weight)
		}
		def.Patterns = body.Patterns

		for _, pattern := range def.Patterns {
			re, err := compilePattern(pattern)
			if err != nil {
				return errors.Wrapf(ErrConfigParse, "signal %q pattern %q: %v", name, pattern, err)
			}
			def.compiled = append(def.compiled, re)
		}
		r.definitions = append(r.definitions, def)
	}
	return nil
}
