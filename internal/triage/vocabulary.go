package triage

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

const defaultMinPrefixLength = 5

// RosterDoctor is a doctor the analyzer recognizes by name.
type RosterDoctor struct {
	Name           string `yaml:"name"`
	Specialization string `yaml:"specialization"`
}

// SpecializationTerm is a specialization plus the phrases that refer to it.
type SpecializationTerm struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// SymptomTerm maps a symptom keyword to the specializations that treat it.
type SymptomTerm struct {
	Keyword         string   `yaml:"keyword"`
	Specializations []string `yaml:"specializations"`
}

// Vocabulary is the declarative data the analyzer matches against.
// It is immutable once loaded and safe for concurrent use.
type Vocabulary struct {
	MinPrefixLength   int                  `yaml:"min_prefix_length"`
	Doctors           []RosterDoctor       `yaml:"doctors"`
	Specializations   []SpecializationTerm `yaml:"specializations"`
	Symptoms          []SymptomTerm        `yaml:"symptoms"`
	EmergencyKeywords []string             `yaml:"emergency_keywords"`
	Stopwords         []string             `yaml:"stopwords"`
	Examples          []string             `yaml:"examples"`

	specIndex map[string]int
	symptoms  map[string][]string
	stopwords map[string]struct{}
}

// DefaultVocabulary parses the vocabulary compiled into the binary.
func DefaultVocabulary() (*Vocabulary, error) {
	return ParseVocabulary(defaultVocabularyYAML)
}

// LoadVocabulary reads a YAML vocabulary file. An empty path yields the default.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultVocabulary()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("triage: read vocabulary %s: %w", path, err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes and validates YAML vocabulary data.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("triage: decode vocabulary: %w", err)
	}
	if err := v.index(); err != nil {
		return nil, err
	}
	return &v, nil
}

func (v *Vocabulary) index() error {
	if len(v.Specializations) == 0 {
		return errors.New("triage: vocabulary declares no specializations")
	}
	if v.MinPrefixLength <= 0 {
		v.MinPrefixLength = defaultMinPrefixLength
	}

	v.specIndex = make(map[string]int, len(v.Specializations))
	for i, spec := range v.Specializations {
		key := normalize(spec.Name)
		if key == "" {
			return fmt.Errorf("triage: specialization %d has no name", i)
		}
		if _, dup := v.specIndex[key]; dup {
			return fmt.Errorf("triage: duplicate specialization %q", spec.Name)
		}
		v.specIndex[key] = i
	}

	v.symptoms = make(map[string][]string, len(v.Symptoms))
	for _, s := range v.Symptoms {
		key := normalize(s.Keyword)
		if key == "" {
			return errors.New("triage: symptom with empty keyword")
		}
		canonical := make([]string, 0, len(s.Specializations))
		for _, name := range s.Specializations {
			c, ok := v.CanonicalSpecialization(name)
			if !ok {
				return fmt.Errorf("triage: symptom %q maps to unknown specialization %q", s.Keyword, name)
			}
			canonical = append(canonical, c)
		}
		v.symptoms[key] = canonical
	}

	for _, d := range v.Doctors {
		if len(strings.Fields(d.Name)) < 2 {
			return fmt.Errorf("triage: roster doctor %q needs a first and last name", d.Name)
		}
	}

	v.stopwords = make(map[string]struct{}, len(v.Stopwords))
	for _, w := range v.Stopwords {
		v.stopwords[normalize(w)] = struct{}{}
	}
	return nil
}

// CanonicalSpecialization returns the declared spelling of a specialization name.
func (v *Vocabulary) CanonicalSpecialization(name string) (string, bool) {
	i, ok := v.specIndex[normalize(name)]
	if !ok {
		return "", false
	}
	return v.Specializations[i].Name, true
}

// SpecializationRank is the declaration index of a specialization, or -1.
func (v *Vocabulary) SpecializationRank(name string) int {
	if i, ok := v.specIndex[normalize(name)]; ok {
		return i
	}
	return -1
}

// SpecializationsFor returns the specializations mapped to a symptom keyword.
func (v *Vocabulary) SpecializationsFor(symptom string) []string {
	return v.symptoms[normalize(symptom)]
}

// RosterDoctorByName finds a roster doctor by full name, case-insensitively.
func (v *Vocabulary) RosterDoctorByName(name string) (RosterDoctor, bool) {
	key := normalize(name)
	for _, d := range v.Doctors {
		if normalize(d.Name) == key {
			return d, true
		}
	}
	return RosterDoctor{}, false
}

func (v *Vocabulary) isStopword(word string) bool {
	_, ok := v.stopwords[word]
	return ok
}
