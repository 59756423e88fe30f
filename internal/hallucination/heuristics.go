package hallucination

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Heuristics carries the tunable word lists consumed by the detector. The
// defaults reproduce the lists the scorer was originally calibrated with for
// Korean cooking content; deployments targeting other domains override them
// via a YAML file.
type Heuristics struct {
	// BoilerplatePhrases are caption/boilerplate artifacts the engine is
	// known to emit over music or silence. Matched case-insensitively.
	BoilerplatePhrases []string `yaml:"boilerplate_phrases"`

	// CookingVocabulary is the allow-list of English words expected inside
	// target-language speech; English outside this list counts as
	// out-of-domain.
	CookingVocabulary []string `yaml:"cooking_vocabulary"`
}

// DefaultHeuristics returns the compiled-in lists.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		BoilerplatePhrases: []string{
			"ultramarine", "Studio", "Frappe", "goes to",
			"Subscribe", "Thank you for watching",
			"MR", "Instrumental", "legend", "called", "eless",
		},
		CookingVocabulary: []string{
			"sauce", "chicken", "cheese", "cream", "butter", "oil", "salt", "sugar",
		},
	}
}

// LoadHeuristics reads a YAML overrides file on top of the defaults. An empty
// path returns the defaults unchanged.
func LoadHeuristics(fs afero.Fs, path string) (Heuristics, error) {
	h := DefaultHeuristics()
	if path == "" {
		return h, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Heuristics{}, fmt.Errorf("read heuristics file: %w", err)
	}
	var override Heuristics
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Heuristics{}, fmt.Errorf("parse heuristics file: %w", err)
	}
	if len(override.BoilerplatePhrases) > 0 {
		h.BoilerplatePhrases = override.BoilerplatePhrases
	}
	if len(override.CookingVocabulary) > 0 {
		h.CookingVocabulary = override.CookingVocabulary
	}
	return h, nil
}
