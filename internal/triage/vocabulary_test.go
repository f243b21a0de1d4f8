package triage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVocabulary(t *testing.T) {
	vocab, err := DefaultVocabulary()
	require.NoError(t, err)

	assert.Equal(t, 5, vocab.MinPrefixLength)
	assert.NotEmpty(t, vocab.Doctors)
	assert.NotEmpty(t, vocab.Examples)
	assert.Equal(t, 0, vocab.SpecializationRank("cardiology"))
	assert.Equal(t, -1, vocab.SpecializationRank("astrology"))
	assert.Equal(t, []string{"Cardiology", "Internal Medicine"}, vocab.SpecializationsFor("Chest Pain"))

	name, ok := vocab.CanonicalSpecialization("  GYNECOLOGY ")
	assert.True(t, ok)
	assert.Equal(t, "Gynecology", name)

	doc, ok := vocab.RosterDoctorByName("ahmed taha")
	assert.True(t, ok)
	assert.Equal(t, "Cardiology", doc.Specialization)
}

func TestParseVocabulary_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"invalid yaml", "doctors: [unterminated"},
		{"no specializations", "doctors: []"},
		{"unknown symptom target", `
specializations: [{name: Cardiology}]
symptoms: [{keyword: rash, specializations: [Dermatology]}]`},
		{"duplicate specialization", `
specializations: [{name: Cardiology}, {name: cardiology}]`},
		{"single word roster name", `
specializations: [{name: Cardiology}]
doctors: [{name: Ahmed}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVocabulary([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadVocabulary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
min_prefix_length: 4
specializations: [{name: Dermatology, aliases: [skin doctor]}]
symptoms: [{keyword: rash, specializations: [dermatology]}]
examples: [What causes a rash?]
`), 0o600))

	vocab, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, 4, vocab.MinPrefixLength)
	assert.Equal(t, []string{"Dermatology"}, vocab.SpecializationsFor("rash"))

	_, err = LoadVocabulary(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	def, err := LoadVocabulary("")
	require.NoError(t, err)
	assert.NotEmpty(t, def.Symptoms)
}
