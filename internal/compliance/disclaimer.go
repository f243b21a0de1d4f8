package compliance

import (
	"context"
	"fmt"
	"strings"
)

// DisclaimerLevel represents the verbosity of the disclaimer.
type DisclaimerLevel string

const (
	// DisclaimerShort is the shortest disclaimer.
	DisclaimerShort DisclaimerLevel = "short"
	// DisclaimerMedium is a moderate disclaimer.
	DisclaimerMedium DisclaimerLevel = "medium"
	// DisclaimerFull is the most comprehensive disclaimer.
	DisclaimerFull DisclaimerLevel = "full"
)

// Disclaimer templates
const (
	disclaimerShortText = "Automated assistant. Not medical advice."

	disclaimerMediumText = "This is an automated assistant. For a diagnosis, please consult a doctor."

	disclaimerFullText = "This is an automated assistant that suggests doctors and specializations from keywords in your message. It does not diagnose conditions and is not a substitute for professional medical advice. Please consult a licensed doctor for medical guidance."
)

// ParseDisclaimerLevel maps a config value to a level, defaulting to medium.
func ParseDisclaimerLevel(value string) DisclaimerLevel {
	switch DisclaimerLevel(strings.ToLower(strings.TrimSpace(value))) {
	case DisclaimerShort:
		return DisclaimerShort
	case DisclaimerFull:
		return DisclaimerFull
	default:
		return DisclaimerMedium
	}
}

// DisclaimerConfig configures the disclaimer service.
type DisclaimerConfig struct {
	// Level determines which disclaimer template to use.
	Level DisclaimerLevel
	// Enabled controls whether disclaimers are added.
	Enabled bool
	// FirstMessageOnly adds disclaimer only to the first answer in a session.
	FirstMessageOnly bool
	// CustomText overrides the default template.
	CustomText string
}

// DefaultDisclaimerConfig returns the defaults used when nothing is configured.
func DefaultDisclaimerConfig() DisclaimerConfig {
	return DisclaimerConfig{
		Level:            DisclaimerMedium,
		Enabled:          false,
		FirstMessageOnly: false,
	}
}

// DisclaimerOptions provides context for disclaimer addition.
type DisclaimerOptions struct {
	SessionID      string
	UserID         string
	IsFirstMessage bool
}

// DisclaimerService appends a medical disclaimer to triage answers.
type DisclaimerService struct {
	audit  *AuditService
	config DisclaimerConfig
}

// NewDisclaimerService creates a new disclaimer service. audit may be nil.
func NewDisclaimerService(audit *AuditService, config DisclaimerConfig) *DisclaimerService {
	return &DisclaimerService{
		audit:  audit,
		config: config,
	}
}

// GetDisclaimerText returns the appropriate disclaimer text.
func (s *DisclaimerService) GetDisclaimerText() string {
	if s.config.CustomText != "" {
		return s.config.CustomText
	}

	switch s.config.Level {
	case DisclaimerShort:
		return disclaimerShortText
	case DisclaimerFull:
		return disclaimerFullText
	default:
		return disclaimerMediumText
	}
}

// ShouldAddDisclaimer checks if a disclaimer should be added based on config.
func (s *DisclaimerService) ShouldAddDisclaimer(isFirstMessage bool) bool {
	if s == nil || !s.config.Enabled {
		return false
	}
	if s.config.FirstMessageOnly && !isFirstMessage {
		return false
	}
	return true
}

// AddDisclaimer adds a disclaimer to the answer if configured. Audit failures do
// not block the answer.
func (s *DisclaimerService) AddDisclaimer(ctx context.Context, answer string, opts DisclaimerOptions) string {
	if !s.ShouldAddDisclaimer(opts.IsFirstMessage) {
		return answer
	}

	disclaimer := s.GetDisclaimerText()
	if strings.Contains(answer, disclaimer) {
		return answer
	}

	result := fmt.Sprintf("%s\n\n%s", strings.TrimSpace(answer), disclaimer)

	if s.audit != nil {
		_ = s.audit.LogDisclaimerSent(ctx, opts.SessionID, opts.UserID, string(s.config.Level), disclaimer)
	}

	return result
}
