package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-assistant/internal/auth"
	"github.com/wolfman30/clinic-assistant/internal/recommend"
	"github.com/wolfman30/clinic-assistant/internal/triage"
	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

type envelopeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Answer           string   `json:"answer"`
		Type             string   `json:"type"`
		SuggestedActions []string `json:"suggested_actions"`
		Debug            string   `json:"debug"`
	} `json:"data"`
	Analysis  *triage.Analysis    `json:"analysis"`
	SessionID string              `json:"session_id"`
	Timestamp string              `json:"timestamp"`
	Cached    bool                `json:"cached"`
	Message   string              `json:"message"`
	Errors    map[string][]string `json:"errors"`
}

func newTestHandler(t *testing.T, debug bool, mutate func(*Config)) (*Handler, *testEnv) {
	t.Helper()
	env := newTestEnv(t, mutate)
	return NewHandler(env.service, env.registry, debug, logging.New("error")), env
}

func doAsk(t *testing.T, h *Handler, body string, header map[string]string) (*httptest.ResponseRecorder, envelopeResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ai/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.Ask(rec, req)

	var resp envelopeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHandlerAsk_Success(t *testing.T) {
	h, _ := newTestHandler(t, false, nil)

	rec, resp := doAsk(t, h, `{"query":"Tell me about Gynecology","user_type":"guest","session_id":"sess-1"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "sess-1", rec.Header().Get(SessionHeader))
	assert.True(t, resp.Success)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, string(triage.TypeSpecializationInfo), resp.Data.Type)
	assert.Contains(t, resp.Data.Answer, "Gynecology")
	assert.NotEmpty(t, resp.Data.SuggestedActions)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, triage.TypeSpecializationInfo, resp.Analysis.Type)
	assert.NotEmpty(t, resp.Timestamp)
	assert.False(t, resp.Cached)
}

func TestHandlerAsk_SessionFromHeader(t *testing.T) {
	h, _ := newTestHandler(t, false, nil)

	_, resp := doAsk(t, h, `{"query":"I have a headache"}`, map[string]string{SessionHeader: "from-header"})
	assert.Equal(t, "from-header", resp.SessionID)
}

func TestHandlerAsk_ValidationError(t *testing.T) {
	h, _ := newTestHandler(t, false, nil)

	rec, resp := doAsk(t, h, `{"query":"hi","user_type":"robot"}`, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "The given data was invalid.", resp.Message)
	assert.Contains(t, resp.Errors, "query")
	assert.Contains(t, resp.Errors, "user_type")
}

func TestHandlerAsk_MalformedBody(t *testing.T) {
	h, _ := newTestHandler(t, false, nil)

	rec, resp := doAsk(t, h, `{"query":`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, resp.Errors, "body")
}

func faultingConfig(cfg *Config) {
	cfg.Engine = &stubRecommender{
		analysis: triage.Analysis{Type: triage.TypeGeneral, Urgency: triage.UrgencyRoutine},
		result: recommend.Result{
			Success: false,
			Answer:  recommend.FaultAnswer,
			Type:    recommend.TypeError,
			Debug:   "panic: corpus exploded",
		},
	}
}

func TestHandlerAsk_FaultHidesDebugByDefault(t *testing.T) {
	h, _ := newTestHandler(t, false, faultingConfig)

	rec, resp := doAsk(t, h, `{"query":"anything at all","session_id":"s"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, recommend.TypeError, resp.Data.Type)
	assert.Equal(t, recommend.FaultAnswer, resp.Data.Answer)
	assert.Empty(t, resp.Data.Debug)
	assert.Nil(t, resp.Analysis)
	assert.Equal(t, "s", resp.SessionID)
	assert.NotContains(t, rec.Body.String(), "corpus exploded")
}

func TestHandlerAsk_FaultDebugWhenEnabled(t *testing.T) {
	h, _ := newTestHandler(t, true, faultingConfig)

	rec, resp := doAsk(t, h, `{"query":"anything at all","session_id":"s"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, resp.Data.Debug, "corpus exploded")
}

func TestHandlerAsk_UsesAuthenticatedUser(t *testing.T) {
	h, env := newTestHandler(t, false, nil)

	req := httptest.NewRequest(http.MethodPost, "/ai/ask", strings.NewReader(`{"query":"I have a headache","session_id":"s"}`))
	req = req.WithContext(auth.WithUser(req.Context(), &auth.User{ID: "user-1", Role: auth.RolePatient}))
	rec := httptest.NewRecorder()
	h.Ask(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	session, err := env.store.GetSession(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
}

func TestHandlerAsk_ClaimedSessionForbidden(t *testing.T) {
	h, _ := newTestHandler(t, false, nil)

	req := httptest.NewRequest(http.MethodPost, "/ai/ask", strings.NewReader(`{"query":"I have a headache","session_id":"s"}`))
	req = req.WithContext(auth.WithUser(req.Context(), &auth.User{ID: "owner", Role: auth.RolePatient}))
	rec := httptest.NewRecorder()
	h.Ask(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doAsk(t, h, `{"query":"I have a rash","session_id":"s"}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, resp.Success)

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/ai/history?session_id=s", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "headache")
}

func TestHandlerHistory(t *testing.T) {
	h, _ := newTestHandler(t, false, nil)
	doAsk(t, h, `{"query":"I have a headache","session_id":"s"}`, nil)

	req := httptest.NewRequest(http.MethodGet, "/ai/history?session_id=s", nil)
	rec := httptest.NewRecorder()
	h.History(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success   bool   `json:"success"`
		SessionID string `json:"session_id"`
		Messages  []struct {
			Content string `json:"content"`
			IsUser  bool   `json:"is_user"`
		} `json:"messages"`
		Stats struct {
			TotalMessages int `json:"total_messages"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "s", resp.SessionID)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "I have a headache", resp.Messages[0].Content)
	assert.True(t, resp.Messages[0].IsUser)
	assert.Equal(t, 2, resp.Stats.TotalMessages)
}

func TestHandlerHistory_MissingSession(t *testing.T) {
	h, _ := newTestHandler(t, false, nil)

	req := httptest.NewRequest(http.MethodGet, "/ai/history", nil)
	rec := httptest.NewRecorder()
	h.History(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerClearHistory(t *testing.T) {
	h, _ := newTestHandler(t, false, nil)
	doAsk(t, h, `{"query":"I have a headache","session_id":"s"}`, nil)

	req := httptest.NewRequest(http.MethodDelete, "/ai/history?session_id=s", nil)
	rec := httptest.NewRecorder()
	h.ClearHistory(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/ai/history?session_id=unknown", nil)
	rec = httptest.NewRecorder()
	h.ClearHistory(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerSearchDoctors(t *testing.T) {
	h, _ := newTestHandler(t, false, nil)

	req := httptest.NewRequest(http.MethodGet, "/ai/doctors?q=sara", nil)
	rec := httptest.NewRecorder()
	h.SearchDoctors(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool            `json:"success"`
		Data    []DoctorSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Sara Mahmoud", resp.Data[0].Name)

	req = httptest.NewRequest(http.MethodGet, "/ai/doctors?q=nobody", nil)
	rec = httptest.NewRecorder()
	h.SearchDoctors(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHandlerAdminUserHistory(t *testing.T) {
	h, _ := newTestHandler(t, false, nil)

	req := httptest.NewRequest(http.MethodPost, "/ai/ask", strings.NewReader(`{"query":"I have a headache","session_id":"s"}`))
	req = req.WithContext(auth.WithUser(req.Context(), &auth.User{ID: "user-3", Role: auth.RolePatient}))
	h.Ask(httptest.NewRecorder(), req)

	r := chi.NewRouter()
	r.Get("/admin/ai/users/{userID}/history", h.AdminUserHistory)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/ai/users/user-3/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UserID   string            `json:"user_id"`
		Messages []json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user-3", resp.UserID)
	assert.Len(t, resp.Messages, 2)
}

func TestHandlerAdminStats(t *testing.T) {
	h, _ := newTestHandler(t, false, nil)
	doAsk(t, h, `{"query":"I have a headache","session_id":"s"}`, nil)
	doAsk(t, h, `{"query":"Tell me about Gynecology","session_id":"s"}`, nil)

	rec := httptest.NewRecorder()
	h.AdminStats(rec, httptest.NewRequest(http.MethodGet, "/admin/ai/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			QueriesByType map[string]int64 `json:"queries_by_type"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Data.QueriesByType["symptom_triage"])
	assert.Equal(t, int64(1), resp.Data.QueriesByType["specialization_info"])
}
