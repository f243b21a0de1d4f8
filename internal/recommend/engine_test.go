package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-assistant/internal/directory"
	"github.com/wolfman30/clinic-assistant/internal/knowledge"
	"github.com/wolfman30/clinic-assistant/internal/triage"
)

type staticCorpus struct {
	data  string
	err   error
	panic bool
}

func (s staticCorpus) Load(ctx context.Context) (*knowledge.Corpus, error) {
	if s.panic {
		panic("corpus exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	return knowledge.Parse([]byte(s.data)), nil
}

func newTestEngine(t *testing.T, dir directory.Repository, opts Options) *Engine {
	t.Helper()
	vocab, err := triage.DefaultVocabulary()
	require.NoError(t, err)
	store := knowledge.NewStore(knowledge.FileSource{Path: "testdata/knowledge.md"}, nil)
	return NewEngine(triage.NewAnalyzer(vocab), store, dir, opts, nil)
}

func newEngineWithCorpus(t *testing.T, corpus CorpusLoader) *Engine {
	t.Helper()
	vocab, err := triage.DefaultVocabulary()
	require.NoError(t, err)
	return NewEngine(triage.NewAnalyzer(vocab), corpus, nil, Options{}, nil)
}

func TestGetRecommendations_SevereChestPain(t *testing.T) {
	engine := newTestEngine(t, nil, Options{})

	got := engine.GetRecommendations(context.Background(), "I have severe chest pain")

	require.True(t, got.Success)
	assert.Equal(t, string(triage.TypeSymptomTriage), got.Type)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, triage.UrgencyEmergency, got.Analysis.Urgency)
	assert.True(t, strings.HasPrefix(got.Answer, EmergencyAdvisory))

	advisory := strings.Index(got.Answer, "immediate")
	cardiology := strings.Index(got.Answer, "Cardiology")
	require.GreaterOrEqual(t, cardiology, 0)
	assert.Less(t, advisory, cardiology)
	assert.Equal(t, []string{"View doctors in Cardiology", "View doctors in Internal Medicine", ActionBookAppointment}, got.SuggestedActions)
}

func TestGetRecommendations_SpecializationInfo(t *testing.T) {
	engine := newTestEngine(t, nil, Options{})

	got := engine.GetRecommendations(context.Background(), "Tell me about Gynecology")

	require.True(t, got.Success)
	assert.Equal(t, string(triage.TypeSpecializationInfo), got.Type)
	assert.Contains(t, got.Answer, "Women's reproductive health including pregnancy care")
	assert.Contains(t, got.Answer, "Available doctors: 1")
	assert.Equal(t, []string{ActionViewSpecialization}, got.SuggestedActions)
}

func TestGetRecommendations_SpecializationCountFromDirectory(t *testing.T) {
	dir := directory.NewInMemoryRepository(
		directory.Doctor{ID: "1", Name: "Karim Fathy", Specialization: "Internal Medicine"},
		directory.Doctor{ID: "2", Name: "Rana Samy", Specialization: "Internal Medicine"},
	)
	engine := newTestEngine(t, dir, Options{})

	got := engine.GetRecommendations(context.Background(), "what is internal medicine")
	require.True(t, got.Success)
	assert.Contains(t, got.Answer, "Available doctors: 2")

	withoutDir := newTestEngine(t, nil, Options{})
	got = withoutDir.GetRecommendations(context.Background(), "what is internal medicine")
	require.True(t, got.Success)
	assert.NotContains(t, got.Answer, "Available doctors")
}

func TestGetRecommendations_DoctorInfo(t *testing.T) {
	engine := newTestEngine(t, nil, Options{})

	got := engine.GetRecommendations(context.Background(), "who is dr. ahmed taha")

	require.True(t, got.Success)
	assert.Equal(t, string(triage.TypeDoctorInfo), got.Type)
	assert.Equal(t, "Ahmed Taha", got.Analysis.DoctorName)
	assert.Contains(t, got.Answer, "Dr. Ahmed Taha")
	assert.Contains(t, got.Answer, "Specialization: Cardiology")
	assert.Contains(t, got.Answer, "ahmed.taha@clinic.example")
	assert.Equal(t, []string{ActionViewProfile, ActionBookAppointment}, got.SuggestedActions)
}

func TestGetRecommendations_DoctorMissingFields(t *testing.T) {
	engine := newTestEngine(t, nil, Options{})

	got := engine.GetRecommendations(context.Background(), "tell me about Nour Ibrahim")
	require.True(t, got.Success)
	assert.Contains(t, got.Answer, "Ophthalmology")
	assert.NotContains(t, got.Answer, "Phone:")
	assert.NotContains(t, got.Answer, "About:")
}

func TestGetRecommendations_DoctorFromDirectory(t *testing.T) {
	dir := directory.NewInMemoryRepository(directory.Doctor{ID: "9", Name: "Karim Fathy", Specialization: "Cardiology", ExperienceYears: 4})
	engine := newTestEngine(t, dir, Options{})

	got := engine.GetRecommendations(context.Background(), "who is dr. karim fathy")
	require.True(t, got.Success)
	assert.Equal(t, string(triage.TypeDoctorInfo), got.Type)
	assert.Contains(t, got.Answer, "Specialization: Cardiology")
	assert.Contains(t, got.Answer, "Experience: 4 years")
	assert.Equal(t, []string{ActionViewProfile, ActionBookAppointment}, got.SuggestedActions)
}

func TestGetRecommendations_UnknownDoctorFallsBack(t *testing.T) {
	engine := newTestEngine(t, nil, Options{})

	got := engine.GetRecommendations(context.Background(), "tell me about dr. john smith, I have a headache")
	require.True(t, got.Success)
	assert.Equal(t, string(triage.TypeDoctorInfo), got.Type)
	assert.True(t, strings.HasPrefix(got.Answer, "I couldn't find a doctor named Dr. John Smith"))
	assert.Contains(t, got.Answer, "Neurology")
	assert.Contains(t, got.SuggestedActions, ActionBookAppointment)

	got = engine.GetRecommendations(context.Background(), "is dr. john smith a cardiologist")
	require.True(t, got.Success)
	assert.Contains(t, got.Answer, "heart and blood vessels")
	assert.Equal(t, []string{ActionViewSpecialization}, got.SuggestedActions)

	got = engine.GetRecommendations(context.Background(), "who is dr. john smith")
	require.True(t, got.Success)
	assert.Contains(t, got.Answer, "Could you rephrase")
	assert.NotEmpty(t, got.SuggestedActions)
}

func TestGetRecommendations_General(t *testing.T) {
	engine := newTestEngine(t, nil, Options{})

	got := engine.GetRecommendations(context.Background(), "asdkjaslkdj")

	require.True(t, got.Success)
	assert.Equal(t, string(triage.TypeGeneral), got.Type)
	assert.NotEmpty(t, got.Answer)
	assert.NotEmpty(t, got.SuggestedActions)
	assert.Equal(t, engine.analyzer.Vocabulary().Examples, got.SuggestedActions)
}

func TestGetRecommendations_GeneralWithoutVocabularyExamples(t *testing.T) {
	vocab, err := triage.ParseVocabulary([]byte(`
specializations: [{name: Dermatology}]
symptoms: [{keyword: rash, specializations: [Dermatology]}]
`))
	require.NoError(t, err)
	require.Empty(t, vocab.Examples)
	engine := NewEngine(triage.NewAnalyzer(vocab), staticCorpus{}, nil, Options{}, nil)

	got := engine.GetRecommendations(context.Background(), "asdkjaslkdj")

	require.True(t, got.Success)
	assert.Equal(t, string(triage.TypeGeneral), got.Type)
	assert.Equal(t, fallbackExamples, got.SuggestedActions)
	assert.Contains(t, got.Answer, "For example:")
}

func TestGetRecommendations_EmergencyAdvisoryInEveryBranch(t *testing.T) {
	engine := newTestEngine(t, nil, Options{})

	for _, query := range []string{
		"Dr. Ahmed Taha, my father fainted",
		"Cardiology please, someone is choking",
		"I think this is a stroke",
		"I have a headache and a seizure",
	} {
		got := engine.GetRecommendations(context.Background(), query)
		require.True(t, got.Success, query)
		assert.True(t, strings.HasPrefix(got.Answer, EmergencyAdvisory), query)
	}
}

func TestGetRecommendations_SymptomDirectoryDoctors(t *testing.T) {
	dir := directory.NewInMemoryRepository(
		directory.Doctor{ID: "1", Name: "Youssef Adel", Specialization: "Neurology"},
		directory.Doctor{ID: "2", Name: "Amr Zaki", Specialization: "Neurology"},
		directory.Doctor{ID: "3", Name: "Dalia Samir", Specialization: "Neurology"},
		directory.Doctor{ID: "4", Name: "Tarek Fouad", Specialization: "Neurology"},
	)
	engine := newTestEngine(t, dir, Options{})

	got := engine.GetRecommendations(context.Background(), "headache and dizziness all week")
	require.True(t, got.Success)
	assert.Contains(t, got.Answer, "Neurology, Internal Medicine, ENT")
	assert.Contains(t, got.Answer, "Doctors available in Neurology: Dr. Amr Zaki, Dr. Dalia Samir, Dr. Tarek Fouad.")
}

func TestRankSpecializations(t *testing.T) {
	declaration := newTestEngine(t, nil, Options{})
	alphabetical := newTestEngine(t, nil, Options{TieBreak: TieBreakAlphabetical})

	assert.Equal(t, []string{"Neurology", "ENT"}, declaration.RankSpecializations([]string{"dizziness"}))
	assert.Equal(t, []string{"ENT", "Neurology"}, alphabetical.RankSpecializations([]string{"dizziness"}))

	assert.Equal(t,
		[]string{"Neurology", "Internal Medicine", "ENT"},
		declaration.RankSpecializations([]string{"headache", "dizziness"}),
		"match count wins over declaration order",
	)
	assert.Equal(t,
		[]string{"Internal Medicine", "Neurology", "Pediatrics", "ENT"},
		declaration.RankSpecializations([]string{"headache", "fever", "cough"}),
	)
	assert.Empty(t, declaration.RankSpecializations(nil))
}

func TestGetRecommendations_MaxSuggestions(t *testing.T) {
	engine := newTestEngine(t, nil, Options{MaxSuggestions: 2})

	got := engine.GetRecommendations(context.Background(), "headache, fever and cough")
	require.True(t, got.Success)
	assert.Equal(t, []string{"View doctors in Internal Medicine", "View doctors in Neurology", ActionBookAppointment}, got.SuggestedActions)
}

func TestGetRecommendations_SpecializationMissingFromCorpus(t *testing.T) {
	engine := newEngineWithCorpus(t, staticCorpus{data: "## Specializations\n### Cardiology\n- **Description**: Hearts.\n"})

	got := engine.GetRecommendations(context.Background(), "Tell me about Psychiatry")
	require.True(t, got.Success)
	assert.Contains(t, got.Answer, "I don't have a description of Psychiatry")
	assert.Contains(t, got.SuggestedActions, ActionViewSpecialization)
	assert.Greater(t, len(got.SuggestedActions), 1)
}

func TestGetRecommendations_CorpusUnreadable(t *testing.T) {
	engine := newEngineWithCorpus(t, staticCorpus{err: errors.New("disk on fire")})

	got := engine.GetRecommendations(context.Background(), "who is dr. ahmed taha")
	assert.False(t, got.Success)
	assert.Equal(t, TypeError, got.Type)
	assert.Equal(t, FaultAnswer, got.Answer)
	assert.NotContains(t, got.Answer, "disk on fire")
	assert.Contains(t, got.Debug, "disk on fire")

	got = engine.GetRecommendations(context.Background(), "I have a rash")
	assert.True(t, got.Success, "symptom answers do not read the corpus")

	missing := newTestEngine(t, nil, Options{})
	missing.corpus = knowledge.NewStore(knowledge.FileSource{Path: "testdata/does-not-exist.md"}, nil)
	got = missing.GetRecommendations(context.Background(), "Tell me about Gynecology")
	assert.False(t, got.Success)
	assert.NotEmpty(t, got.Answer)
}

func TestGetRecommendations_RecoversPanics(t *testing.T) {
	engine := newEngineWithCorpus(t, staticCorpus{panic: true})

	got := engine.GetRecommendations(context.Background(), "Tell me about Cardiology")
	assert.False(t, got.Success)
	assert.Equal(t, TypeError, got.Type)
	assert.Equal(t, FaultAnswer, got.Answer)
	assert.Contains(t, got.Debug, "corpus exploded")
}

func TestGetRecommendations_NeverPanics(t *testing.T) {
	engine := newTestEngine(t, nil, Options{})

	inputs := []string{
		"", " ", "dr.", "dr", "doctor", "Dr. ", "###", "- **Field**:", "\x00\xff",
		"🙂🙂🙂", strings.Repeat("chest pain ", 200), "DR. DR. DR.", "who is dr. a",
		"cardio", "derma derma", "can’t breathe", "\n\n\n", "dr. ahmed taha taha taha",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			got := engine.GetRecommendations(context.Background(), in)
			assert.NotEmpty(t, got.Answer, in)
			assert.NotEmpty(t, got.Type, in)
		}, in)
	}
}
