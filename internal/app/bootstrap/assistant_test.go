package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-assistant/internal/assistant"
	appconfig "github.com/wolfman30/clinic-assistant/internal/config"
	"github.com/wolfman30/clinic-assistant/internal/triage"
	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		KnowledgeSource:    "../../../configs/knowledge.md",
		AnswerCacheEnabled: true,
		HistoryLimit:       50,
		MaxSuggestions:     3,
		DisclaimerLevel:    "short",
	}
}

func TestBuildAssistantRequiresConfig(t *testing.T) {
	if _, err := BuildAssistant(context.Background(), nil, AssistantDeps{}, logging.New("error")); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildAssistantInMemory(t *testing.T) {
	built, err := BuildAssistant(context.Background(), testConfig(), AssistantDeps{Registry: prometheus.NewRegistry()}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built.Handler == nil || built.WebChat == nil || built.Alerter == nil {
		t.Fatalf("expected handlers and alerter to be wired")
	}
	if built.Alerter.Enabled() {
		t.Fatalf("alerts should stay log-only without a recipient")
	}

	answer, err := built.Service.Ask(context.Background(), assistant.AskRequest{Query: "who is dr. sara mahmoud", SessionID: "boot-1"}, nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !answer.Result.Success || answer.Result.Type != string(triage.TypeDoctorInfo) {
		t.Fatalf("unexpected result: %+v", answer.Result)
	}
}

func TestBuildAssistantDisclaimerEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.DisclaimerEnabled = true
	cfg.DisclaimerFirstMessageOnly = true

	built, err := BuildAssistant(context.Background(), cfg, AssistantDeps{}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	answer, err := built.Service.Ask(context.Background(), assistant.AskRequest{Query: "I have a headache", SessionID: "boot-2"}, nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if got := answer.Result.Answer; !strings.Contains(got, "Not medical advice.") {
		t.Fatalf("expected disclaimer on first symptom answer, got %q", got)
	}
}

func TestBuildAssistantBadVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	if err := os.WriteFile(path, []byte("doctors: [unterminated"), 0o600); err != nil {
		t.Fatalf("write vocab: %v", err)
	}
	cfg := testConfig()
	cfg.TriageVocabularyPath = path

	if _, err := BuildAssistant(context.Background(), cfg, AssistantDeps{}, logging.New("error")); err == nil {
		t.Fatalf("expected error for malformed vocabulary")
	}
}

func TestBuildAssistantS3SourceNeedsClient(t *testing.T) {
	cfg := testConfig()
	cfg.KnowledgeSource = "s3://clinic-knowledge/knowledge.md"

	if _, err := BuildAssistant(context.Background(), cfg, AssistantDeps{}, logging.New("error")); err == nil {
		t.Fatalf("expected error for s3 source without a client")
	}
}

func TestBuildAssistantMissingCorpusIsNotFatal(t *testing.T) {
	cfg := testConfig()
	cfg.KnowledgeSource = filepath.Join(t.TempDir(), "missing.md")

	built, err := BuildAssistant(context.Background(), cfg, AssistantDeps{}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	answer, err := built.Service.Ask(context.Background(), assistant.AskRequest{Query: "I have a headache"}, nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !answer.Result.Success {
		t.Fatalf("symptom triage should not depend on the corpus: %+v", answer.Result)
	}
}
