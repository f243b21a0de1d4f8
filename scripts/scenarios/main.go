// Package main runs end-to-end assistant scenarios against a running API.
//
// Each scenario posts one or more queries to /ai/ask on a fresh session and
// checks the answer type, urgency and a few content markers. With --secret the
// admin stats endpoint is checked as well.
//
// Usage:
//
//	go run ./scripts/scenarios [--api=URL] [--secret=SECRET]
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Scenario types
// ---------------------------------------------------------------------------

type step struct {
	Query       string
	WantType    string
	WantUrgency string
	WantText    []string
	WantCached  bool
}

type scenario struct {
	Name  string
	Steps []step
}

type result struct {
	Name   string
	Pass   bool
	Detail string
}

type askResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Answer           string   `json:"answer"`
		Type             string   `json:"type"`
		SuggestedActions []string `json:"suggested_actions"`
	} `json:"data"`
	Analysis *struct {
		Urgency string `json:"urgency"`
	} `json:"analysis"`
	SessionID string `json:"session_id"`
	Cached    bool   `json:"cached"`
}

var scenarios = []scenario{
	{
		Name: "emergency symptom",
		Steps: []step{{
			Query:       "I have severe chest pain and can't breathe",
			WantType:    "symptom_triage",
			WantUrgency: "emergency",
			WantText:    []string{"emergency"},
		}},
	},
	{
		Name: "doctor lookup",
		Steps: []step{{
			Query:    "Who is Dr. Ahmed Taha?",
			WantType: "doctor_info",
			WantText: []string{"Cardiology"},
		}},
	},
	{
		Name: "specialization info",
		Steps: []step{{
			Query:    "Tell me about Dermatology",
			WantType: "specialization_info",
			WantText: []string{"Dermatology"},
		}},
	},
	{
		Name: "routine symptom",
		Steps: []step{{
			Query:       "I have had a headache for two days",
			WantType:    "symptom_triage",
			WantUrgency: "routine",
			WantText:    []string{"Neurology"},
		}},
	},
	{
		Name: "repeated question",
		Steps: []step{
			{Query: "Tell me about Pediatrics", WantType: "specialization_info"},
			{Query: "tell me about pediatrics!", WantType: "specialization_info", WantCached: true},
		},
	},
	{
		Name: "general fallback",
		Steps: []step{{
			Query:    "What are your opening hours?",
			WantType: "general",
		}},
	},
}

var (
	flagAPI    string
	flagSecret string
	client     = &http.Client{Timeout: 15 * time.Second}
)

func init() {
	flag.StringVar(&flagAPI, "api", "http://localhost:8080", "API base URL")
	flag.StringVar(&flagSecret, "secret", "", "JWT secret for the admin check (or AUTH_JWT_SECRET env)")
}

// ---------------------------------------------------------------------------
// API helpers
// ---------------------------------------------------------------------------

func ask(sessionID, query string) (*askResponse, int, error) {
	body, _ := json.Marshal(map[string]string{"query": query, "session_id": sessionID})
	resp, err := client.Post(flagAPI+"/ai/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var out askResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode: %w", err)
	}
	return &out, resp.StatusCode, nil
}

func adminToken(secret string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  "scenario-runner",
		"role": "admin",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func checkAdminStats(secret string) result {
	token, err := adminToken(secret)
	if err != nil {
		return result{Name: "admin stats", Detail: err.Error()}
	}
	req, _ := http.NewRequest(http.MethodGet, flagAPI+"/admin/ai/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return result{Name: "admin stats", Detail: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return result{Name: "admin stats", Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(body), 80))}
	}
	return result{Name: "admin stats", Pass: true, Detail: "200 OK"}
}

// ---------------------------------------------------------------------------
// Scenario runner
// ---------------------------------------------------------------------------

func run(sc scenario) result {
	sessionID := "scenario-" + uuid.NewString()
	for i, st := range sc.Steps {
		resp, status, err := ask(sessionID, st.Query)
		if err != nil {
			return result{Name: sc.Name, Detail: fmt.Sprintf("step %d: %v", i+1, err)}
		}
		if status != http.StatusOK || !resp.Success {
			return result{Name: sc.Name, Detail: fmt.Sprintf("step %d: status %d success=%v", i+1, status, resp.Success)}
		}
		if st.WantType != "" && resp.Data.Type != st.WantType {
			return result{Name: sc.Name, Detail: fmt.Sprintf("step %d: type %q, want %q", i+1, resp.Data.Type, st.WantType)}
		}
		if st.WantUrgency != "" && (resp.Analysis == nil || resp.Analysis.Urgency != st.WantUrgency) {
			return result{Name: sc.Name, Detail: fmt.Sprintf("step %d: urgency mismatch, want %q", i+1, st.WantUrgency)}
		}
		for _, marker := range st.WantText {
			if !strings.Contains(strings.ToLower(resp.Data.Answer), strings.ToLower(marker)) {
				return result{Name: sc.Name, Detail: fmt.Sprintf("step %d: answer missing %q: %s", i+1, marker, truncate(resp.Data.Answer, 80))}
			}
		}
		if resp.Cached != st.WantCached {
			return result{Name: sc.Name, Detail: fmt.Sprintf("step %d: cached=%v, want %v", i+1, resp.Cached, st.WantCached)}
		}
	}
	return result{Name: sc.Name, Pass: true, Detail: fmt.Sprintf("%d step(s)", len(sc.Steps))}
}

func printReport(results []result) int {
	failed := 0
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Assistant scenarios against %s\n", flagAPI)
	fmt.Println(strings.Repeat("=", 60))
	for _, r := range results {
		icon := "✅"
		if !r.Pass {
			icon = "❌"
			failed++
		}
		fmt.Printf("%s %-22s %s\n", icon, r.Name, r.Detail)
	}
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("%d passed, %d failed\n", len(results)-failed, failed)
	return failed
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func main() {
	flag.Parse()
	if flagSecret == "" {
		flagSecret = os.Getenv("AUTH_JWT_SECRET")
	}

	results := make([]result, 0, len(scenarios)+1)
	for _, sc := range scenarios {
		results = append(results, run(sc))
	}
	if flagSecret != "" {
		results = append(results, checkAdminStats(flagSecret))
	}

	if printReport(results) > 0 {
		os.Exit(1)
	}
}
