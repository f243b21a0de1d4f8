package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	appconfig "github.com/wolfman30/clinic-assistant/internal/config"
	"github.com/wolfman30/clinic-assistant/internal/knowledge"
	"github.com/wolfman30/clinic-assistant/internal/recommend"
	"github.com/wolfman30/clinic-assistant/internal/triage"
	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

// triagecheck runs queries through the analyzer and recommendation engine
// without Redis, Postgres or HTTP. Queries come from the arguments, or the
// vocabulary's example prompts when none are given.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New("warn")

	vocab, err := triage.LoadVocabulary(cfg.TriageVocabularyPath)
	if err != nil {
		log.Fatalf("load vocabulary: %v", err)
	}
	if strings.HasPrefix(cfg.KnowledgeSource, "s3://") {
		log.Fatalf("triagecheck reads local corpora only; set KNOWLEDGE_SOURCE to a file path")
	}
	corpus := knowledge.NewStore(knowledge.FileSource{Path: cfg.KnowledgeSource}, logger)
	engine := recommend.NewEngine(triage.NewAnalyzer(vocab), corpus, nil, recommend.Options{
		TieBreak:       cfg.RankingTieBreak,
		MaxSuggestions: cfg.MaxSuggestions,
	}, logger)

	queries := os.Args[1:]
	if len(queries) == 0 {
		queries = vocab.Examples
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for i, q := range queries {
		start := time.Now()
		result := engine.GetRecommendations(ctx, q)
		fmt.Printf("\n[%d] %q (%v)\n", i+1, q, time.Since(start).Round(time.Microsecond))
		if err := enc.Encode(result); err != nil {
			log.Fatalf("encode result: %v", err)
		}
	}
}
