package triage

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// QueryType is the coarse intent of a user query.
type QueryType string

const (
	TypeDoctorInfo         QueryType = "doctor_info"
	TypeSpecializationInfo QueryType = "specialization_info"
	TypeSymptomTriage      QueryType = "symptom_triage"
	TypeGeneral            QueryType = "general"
)

// Urgency is a keyword-derived triage flag, not a clinical assessment.
type Urgency string

const (
	UrgencyNone      Urgency = "none"
	UrgencyRoutine   Urgency = "routine"
	UrgencyEmergency Urgency = "emergency"
)

// Analysis is the classification of a single query.
type Analysis struct {
	Query           string    `json:"query"`
	Type            QueryType `json:"type"`
	Urgency         Urgency   `json:"urgency"`
	DoctorName      string    `json:"doctor_name,omitempty"`
	Symptoms        []string  `json:"symptoms"`
	Specializations []string  `json:"specializations"`
	EmergencyTerms  []string  `json:"emergency_terms,omitempty"`
}

// Topic is a stable key for what the query is about. Two queries with the same
// topic get the same answer from the engine.
func (a Analysis) Topic() string {
	return strings.Join([]string{
		string(a.Type),
		strings.ToLower(a.DoctorName),
		strings.ToLower(strings.Join(a.Specializations, ",")),
		strings.ToLower(strings.Join(a.Symptoms, ",")),
	}, "|")
}

var (
	titledNamePattern = regexp.MustCompile(`\bdr\.?\s+([a-z][a-z'-]*)(?:\s+([a-z][a-z'-]*))?`)
	doctorNamePattern = regexp.MustCompile(`\bdoctor\s+([a-z][a-z'-]*)(?:\s+([a-z][a-z'-]*))?`)
)

// Analyzer classifies free-text queries against a Vocabulary.
type Analyzer struct {
	vocab *Vocabulary
}

// NewAnalyzer creates an analyzer. The vocabulary must not be nil.
func NewAnalyzer(vocab *Vocabulary) *Analyzer {
	if vocab == nil {
		panic("triage: vocabulary cannot be nil")
	}
	return &Analyzer{vocab: vocab}
}

// Vocabulary exposes the tables the analyzer was built with.
func (a *Analyzer) Vocabulary() *Vocabulary {
	return a.vocab
}

// Analyze classifies the query. Identical input always yields identical output.
func (a *Analyzer) Analyze(query string) Analysis {
	text := normalize(query)
	analysis := Analysis{
		Query:           query,
		Type:            TypeGeneral,
		Urgency:         UrgencyNone,
		Symptoms:        []string{},
		Specializations: []string{},
	}
	if text == "" {
		return analysis
	}

	analysis.EmergencyTerms = a.emergencyTerms(text)
	analysis.Urgency = UrgencyRoutine
	if len(analysis.EmergencyTerms) > 0 {
		analysis.Urgency = UrgencyEmergency
	}

	mentioned := a.mentionedSpecializations(text)
	analysis.Symptoms = a.symptoms(text)

	switch {
	case a.setDoctor(&analysis, text):
		analysis.Type = TypeDoctorInfo
	case len(mentioned) > 0:
		analysis.Type = TypeSpecializationInfo
	case len(analysis.Symptoms) > 0:
		analysis.Type = TypeSymptomTriage
	}

	if len(mentioned) > 0 {
		analysis.Specializations = mentioned
	} else {
		analysis.Specializations = a.specializationsForSymptoms(analysis.Symptoms)
	}
	return analysis
}

// Urgency only evaluates the emergency keyword list.
func (a *Analyzer) Urgency(query string) Urgency {
	text := normalize(query)
	if text == "" {
		return UrgencyNone
	}
	if len(a.emergencyTerms(text)) > 0 {
		return UrgencyEmergency
	}
	return UrgencyRoutine
}

func (a *Analyzer) setDoctor(analysis *Analysis, text string) bool {
	name, ok := a.doctorName(text)
	if !ok {
		return false
	}
	analysis.DoctorName = name
	return true
}

// doctorName resolves the doctor a query refers to. Full roster names win over
// titled captures, which win over first-name-only matches.
func (a *Analyzer) doctorName(text string) (string, bool) {
	for _, d := range a.vocab.Doctors {
		if containsTerm(text, normalize(d.Name)) {
			return d.Name, true
		}
	}

	if m := titledNamePattern.FindStringSubmatch(text); m != nil {
		if name, ok := a.resolveRoster(m[1], m[2]); ok {
			return name, true
		}
		if m[2] != "" && !a.vocab.isStopword(m[1]) && !a.vocab.isStopword(m[2]) {
			return titleCase(m[1] + " " + m[2]), true
		}
	}

	if m := doctorNamePattern.FindStringSubmatch(text); m != nil {
		if name, ok := a.resolveRoster(m[1], m[2]); ok {
			return name, true
		}
	}

	for _, d := range a.vocab.Doctors {
		first := normalize(strings.Fields(d.Name)[0])
		if containsTerm(text, first) {
			return d.Name, true
		}
	}
	return "", false
}

// resolveRoster maps one or two captured name tokens onto a roster doctor.
func (a *Analyzer) resolveRoster(first, last string) (string, bool) {
	if first == "" || a.vocab.isStopword(first) {
		return "", false
	}
	if last != "" {
		if d, ok := a.vocab.RosterDoctorByName(first + " " + last); ok {
			return d.Name, true
		}
	}
	for _, d := range a.vocab.Doctors {
		for _, part := range strings.Fields(normalize(d.Name)) {
			if part == first {
				return d.Name, true
			}
		}
	}
	return "", false
}

func (a *Analyzer) mentionedSpecializations(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	tokens := words(text)
	for _, spec := range a.vocab.Specializations {
		if a.mentions(text, tokens, spec) {
			add(spec.Name)
		}
	}
	return out
}

func (a *Analyzer) mentions(text string, tokens []string, spec SpecializationTerm) bool {
	name := normalize(spec.Name)
	if containsTerm(text, name) {
		return true
	}
	for _, alias := range spec.Aliases {
		if containsTerm(text, normalize(alias)) {
			return true
		}
	}
	for _, tok := range tokens {
		if len(tok) >= a.vocab.MinPrefixLength && strings.HasPrefix(name, tok) {
			return true
		}
	}
	return false
}

func (a *Analyzer) symptoms(text string) []string {
	out := []string{}
	for _, s := range a.vocab.Symptoms {
		if containsTerm(text, normalize(s.Keyword)) {
			out = append(out, s.Keyword)
		}
	}
	return out
}

func (a *Analyzer) specializationsForSymptoms(symptoms []string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, s := range symptoms {
		for _, spec := range a.vocab.SpecializationsFor(s) {
			if _, ok := seen[spec]; ok {
				continue
			}
			seen[spec] = struct{}{}
			out = append(out, spec)
		}
	}
	return out
}

func (a *Analyzer) emergencyTerms(text string) []string {
	var out []string
	for _, term := range a.vocab.EmergencyKeywords {
		if containsTerm(text, normalize(term)) {
			out = append(out, term)
		}
	}
	return out
}

// titleCase builds a fresh Caser per call; Casers are not safe to share.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}
