package recommend

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/wolfman30/clinic-assistant/internal/directory"
	"github.com/wolfman30/clinic-assistant/internal/knowledge"
	"github.com/wolfman30/clinic-assistant/internal/triage"
	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

const (
	TypeError = "error"

	TieBreakDeclaration  = "declaration"
	TieBreakAlphabetical = "alphabetical"

	defaultMaxSuggestions = 3
	doctorsPerSuggestion  = 3

	ActionViewProfile        = "View full profile"
	ActionBookAppointment    = "Book appointment"
	ActionViewSpecialization = "View doctors in this specialization"

	EmergencyAdvisory = "If this is an emergency, please seek immediate in-person care: call your local emergency number or go to the nearest emergency department now. Do not wait for an online appointment."
	FaultAnswer       = "Sorry, something went wrong while processing your question. Please try again in a moment."
)

// Result is the single answer produced for one query.
type Result struct {
	Success          bool             `json:"success"`
	Answer           string           `json:"answer"`
	Type             string           `json:"type"`
	SuggestedActions []string         `json:"suggested_actions"`
	Analysis         *triage.Analysis `json:"analysis,omitempty"`
	Debug            string           `json:"-"`
}

// CorpusLoader reads one snapshot of the knowledge corpus.
type CorpusLoader interface {
	Load(ctx context.Context) (*knowledge.Corpus, error)
}

// Options tunes ranking and output size.
type Options struct {
	TieBreak       string
	MaxSuggestions int
}

// Engine turns a query into a recommendation.
type Engine struct {
	analyzer  *triage.Analyzer
	corpus    CorpusLoader
	directory directory.Repository
	opts      Options
	logger    *logging.Logger
}

// NewEngine wires an engine. dir may be nil when no doctor directory is available.
func NewEngine(analyzer *triage.Analyzer, corpus CorpusLoader, dir directory.Repository, opts Options, logger *logging.Logger) *Engine {
	if analyzer == nil {
		panic("recommend: analyzer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = defaultMaxSuggestions
	}
	if opts.TieBreak != TieBreakAlphabetical {
		opts.TieBreak = TieBreakDeclaration
	}
	return &Engine{analyzer: analyzer, corpus: corpus, directory: dir, opts: opts, logger: logger}
}

// Analyze exposes the analyzer so callers can check urgency before answering.
func (e *Engine) Analyze(query string) triage.Analysis {
	return e.analyzer.Analyze(query)
}

// GetRecommendations answers query. It never panics; internal faults yield
// Success=false with a generic answer and the detail in Debug.
func (e *Engine) GetRecommendations(ctx context.Context, query string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("recommendation panic", "panic", r, "stack", string(debug.Stack()))
			result = faultResult(fmt.Sprintf("panic: %v", r), result.Analysis)
		}
	}()

	analysis := e.analyzer.Analyze(query)
	result, err := e.answer(ctx, analysis)
	if err != nil {
		e.logger.Error("recommendation failed", "error", err, "type", analysis.Type)
		return faultResult(err.Error(), &analysis)
	}

	if analysis.Urgency == triage.UrgencyEmergency {
		result.Answer = EmergencyAdvisory + "\n\n" + result.Answer
	}
	result.Success = true
	result.Analysis = &analysis
	return result
}

func faultResult(detail string, analysis *triage.Analysis) Result {
	return Result{
		Success:          false,
		Answer:           FaultAnswer,
		Type:             TypeError,
		SuggestedActions: []string{},
		Analysis:         analysis,
		Debug:            detail,
	}
}

func (e *Engine) answer(ctx context.Context, a triage.Analysis) (Result, error) {
	switch a.Type {
	case triage.TypeDoctorInfo:
		return e.doctorAnswer(ctx, a)
	case triage.TypeSpecializationInfo:
		return e.specializationAnswer(ctx, a)
	case triage.TypeSymptomTriage:
		return e.symptomAnswer(ctx, a), nil
	default:
		return e.generalAnswer(a), nil
	}
}

func (e *Engine) loadCorpus(ctx context.Context) (*knowledge.Corpus, error) {
	if e.corpus == nil {
		return nil, knowledge.ErrCorpusUnavailable
	}
	return e.corpus.Load(ctx)
}

func (e *Engine) doctorAnswer(ctx context.Context, a triage.Analysis) (Result, error) {
	corpus, err := e.loadCorpus(ctx)
	if err != nil {
		return Result{}, err
	}

	if entry := corpus.Doctor(a.DoctorName); entry != nil {
		return Result{
			Answer:           formatDoctorEntry(entry),
			Type:             string(a.Type),
			SuggestedActions: []string{ActionViewProfile, ActionBookAppointment},
		}, nil
	}

	if doc := e.findDirectoryDoctor(ctx, a.DoctorName); doc != nil {
		return Result{
			Answer:           formatDirectoryDoctor(doc),
			Type:             string(a.Type),
			SuggestedActions: []string{ActionViewProfile, ActionBookAppointment},
		}, nil
	}

	note := fmt.Sprintf("I couldn't find a doctor named Dr. %s in our records.", a.DoctorName)
	var fallback Result
	switch {
	case len(a.Symptoms) > 0:
		fallback = e.symptomAnswer(ctx, a)
	case len(a.Specializations) > 0:
		fallback, err = e.specializationFromCorpus(ctx, corpus, a)
		if err != nil {
			return Result{}, err
		}
	default:
		fallback = e.generalAnswer(a)
	}
	fallback.Answer = note + " " + fallback.Answer
	fallback.Type = string(a.Type)
	return fallback, nil
}

func (e *Engine) specializationAnswer(ctx context.Context, a triage.Analysis) (Result, error) {
	corpus, err := e.loadCorpus(ctx)
	if err != nil {
		return Result{}, err
	}
	return e.specializationFromCorpus(ctx, corpus, a)
}

func (e *Engine) specializationFromCorpus(ctx context.Context, corpus *knowledge.Corpus, a triage.Analysis) (Result, error) {
	name := a.Specializations[0]
	entry := corpus.Specialization(name)
	if entry == nil {
		e.logger.Warn("specialization missing from corpus", "specialization", name)
		return Result{
			Answer: fmt.Sprintf("I don't have a description of %s yet. You can ask me things like: %s",
				name, strings.Join(e.examples(), " / ")),
			Type:             string(a.Type),
			SuggestedActions: append([]string{ActionViewSpecialization}, e.examples()...),
		}, nil
	}

	var b strings.Builder
	b.WriteString(entry.Name)
	if desc := entry.Field("description"); desc != "" {
		b.WriteString(": ")
		b.WriteString(desc)
	}
	if conditions := entry.Field("common_conditions"); conditions != "" {
		fmt.Fprintf(&b, "\nCommon conditions: %s", conditions)
	}
	if count, ok := e.availableDoctorCount(ctx, entry); ok {
		fmt.Fprintf(&b, "\nAvailable doctors: %d", count)
	}
	if len(a.Specializations) > 1 {
		fmt.Fprintf(&b, "\nYou also mentioned: %s.", strings.Join(a.Specializations[1:], ", "))
	}

	return Result{
		Answer:           b.String(),
		Type:             string(a.Type),
		SuggestedActions: []string{ActionViewSpecialization},
	}, nil
}

func (e *Engine) availableDoctorCount(ctx context.Context, entry *knowledge.Entry) (int, bool) {
	if names := entry.List("available_doctors"); len(names) > 0 {
		return len(names), true
	}
	if e.directory == nil {
		return 0, false
	}
	count, err := e.directory.CountDoctorsBySpecialization(ctx, entry.Name)
	if err != nil {
		e.logger.Warn("directory count failed", "specialization", entry.Name, "error", err)
		return 0, false
	}
	return count, true
}

type rankedSpecialization struct {
	name    string
	matches int
	rank    int
}

// RankSpecializations orders the specializations mapped from symptoms by how
// many symptoms point at them, breaking ties by the configured rule.
func (e *Engine) RankSpecializations(symptoms []string) []string {
	vocab := e.analyzer.Vocabulary()
	counts := make(map[string]*rankedSpecialization)
	var order []*rankedSpecialization
	for _, symptom := range symptoms {
		for _, spec := range vocab.SpecializationsFor(symptom) {
			r, ok := counts[spec]
			if !ok {
				r = &rankedSpecialization{name: spec, rank: vocab.SpecializationRank(spec)}
				counts[spec] = r
				order = append(order, r)
			}
			r.matches++
		}
	}

	alphabetical := e.opts.TieBreak == TieBreakAlphabetical
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].matches != order[j].matches {
			return order[i].matches > order[j].matches
		}
		if alphabetical {
			return order[i].name < order[j].name
		}
		return order[i].rank < order[j].rank
	})

	out := make([]string, 0, len(order))
	for _, r := range order {
		out = append(out, r.name)
	}
	return out
}

func (e *Engine) symptomAnswer(ctx context.Context, a triage.Analysis) Result {
	ranked := e.RankSpecializations(a.Symptoms)
	if len(ranked) == 0 {
		return e.generalAnswer(a)
	}
	if len(ranked) > e.opts.MaxSuggestions {
		ranked = ranked[:e.opts.MaxSuggestions]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on your symptoms (%s), I recommend seeing a specialist in: %s.",
		strings.Join(a.Symptoms, ", "), strings.Join(ranked, ", "))
	if names := e.doctorsFor(ctx, ranked[0]); len(names) > 0 {
		fmt.Fprintf(&b, "\nDoctors available in %s: %s.", ranked[0], strings.Join(names, ", "))
	}

	actions := make([]string, 0, len(ranked)+1)
	for _, spec := range ranked {
		actions = append(actions, "View doctors in "+spec)
	}
	actions = append(actions, ActionBookAppointment)

	return Result{
		Answer:           b.String(),
		Type:             string(a.Type),
		SuggestedActions: actions,
	}
}

func (e *Engine) doctorsFor(ctx context.Context, specialization string) []string {
	if e.directory == nil {
		return nil
	}
	docs, err := e.directory.DoctorsBySpecialization(ctx, specialization, doctorsPerSuggestion)
	if err != nil {
		e.logger.Warn("directory lookup failed", "specialization", specialization, "error", err)
		return nil
	}
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, "Dr. "+d.Name)
	}
	return names
}

func (e *Engine) findDirectoryDoctor(ctx context.Context, name string) *directory.Doctor {
	if e.directory == nil || name == "" {
		return nil
	}
	doc, err := e.directory.FindDoctorByName(ctx, name)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			e.logger.Warn("directory lookup failed", "doctor", name, "error", err)
		}
		return nil
	}
	return doc
}

func (e *Engine) generalAnswer(a triage.Analysis) Result {
	examples := e.examples()
	answer := "I'm not sure I understood your question. I can tell you about our doctors, explain what a specialization covers, or suggest which specialist to see for your symptoms. Could you rephrase it?"
	if len(examples) > 0 {
		answer += " For example: " + strings.Join(examples, " / ")
	}
	return Result{
		Answer:           answer,
		Type:             string(triage.TypeGeneral),
		SuggestedActions: examples,
	}
}

// fallbackExamples are used when the vocabulary declares no examples.
var fallbackExamples = []string{
	"Who is Dr. <name>?",
	"What does <specialization> treat?",
	"Which doctor should I see for <symptom>?",
}

func (e *Engine) examples() []string {
	if examples := e.analyzer.Vocabulary().Examples; len(examples) > 0 {
		return append([]string{}, examples...)
	}
	return append([]string{}, fallbackExamples...)
}

func formatDoctorEntry(entry *knowledge.Entry) string {
	lines := []string{"Dr. " + entry.Name}
	for _, f := range []struct{ label, key string }{
		{"Specialization", "specialization"},
		{"Experience", "experience"},
		{"Email", "email"},
		{"Phone", "phone"},
		{"About", "bio"},
	} {
		if v := entry.Field(f.key); v != "" {
			lines = append(lines, f.label+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}

func formatDirectoryDoctor(d *directory.Doctor) string {
	lines := []string{"Dr. " + d.Name}
	if d.Specialization != "" {
		lines = append(lines, "Specialization: "+d.Specialization)
	}
	if d.ExperienceYears > 0 {
		lines = append(lines, fmt.Sprintf("Experience: %d years", d.ExperienceYears))
	}
	if d.Email != "" {
		lines = append(lines, "Email: "+d.Email)
	}
	if d.Phone != "" {
		lines = append(lines, "Phone: "+d.Phone)
	}
	if d.Bio != "" {
		lines = append(lines, "About: "+d.Bio)
	}
	return strings.Join(lines, "\n")
}
