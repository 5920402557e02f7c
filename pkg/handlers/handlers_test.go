package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crisis-escalation-service/pkg/bot"
	"crisis-escalation-service/pkg/config"
	"crisis-escalation-service/pkg/detector"
	"crisis-escalation-service/pkg/escalation"
	"crisis-escalation-service/pkg/handlers"
	"crisis-escalation-service/pkg/metrics"
	"crisis-escalation-service/pkg/models"
	"crisis-escalation-service/pkg/notify"
	"crisis-escalation-service/pkg/policy"
	"crisis-escalation-service/pkg/responders"
	"crisis-escalation-service/pkg/server"
	"crisis-escalation-service/pkg/store"
)

// Shared across the package: prometheus collectors register globally.
var testMetrics = metrics.NewMetrics()

// cannedEvaluator returns a fixed assessment regardless of input.
type cannedEvaluator struct {
	assessment models.CrisisAssessment
}

func (c *cannedEvaluator) Evaluate(ctx context.Context, text string, ec detector.EvalContext) (models.CrisisAssessment, error) {
	return c.assessment, nil
}

type apiFixture struct {
	server *httptest.Server
	store  store.Store
}

func newAPIFixture(t *testing.T, assessment models.CrisisAssessment) *apiFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	st := store.NewMemoryStore()
	emitter := notify.NewLocalEmitter()
	roster := responders.NewMemoryRoster()
	coordinator := escalation.NewCoordinator(
		st,
		&cannedEvaluator{assessment: assessment},
		notify.NewFanOut(emitter, logger, testMetrics),
		roster,
		bot.NewTemplateResponder(),
		logger,
		testMetrics,
	)

	handler := handlers.NewHandler(coordinator, st, roster, logger, func() bool { return true })
	httpServer := server.NewHTTPServer(&config.Config{Port: "0"}, handler, logger)

	ts := httptest.NewServer(httpServer.Handler)
	t.Cleanup(ts.Close)

	return &apiFixture{server: ts, store: st}
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func criticalAssessment() models.CrisisAssessment {
	return models.CrisisAssessment{
		Score:                       9,
		Urgency:                     policy.UrgencyCritical,
		Triggers:                    []string{"end_it_all"},
		Sentiment:                   models.Sentiment{Label: "negative", Score: 0.95},
		Source:                      models.SourceLexical,
		RequiresImmediateEscalation: true,
	}
}

func createEscalationViaAPI(t *testing.T, f *apiFixture) string {
	t.Helper()
	resp := postJSON(t, f.server.URL+"/conversations/conv_1/messages", map[string]string{
		"sender_id": "user_1",
		"content":   "I want to end it all",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Escalation *models.Escalation `json:"escalation"`
	}
	decodeBody(t, resp, &body)
	require.NotNil(t, body.Escalation)
	return body.Escalation.ID
}

func TestMessage_ReturnsAssessmentAndEscalation(t *testing.T) {
	f := newAPIFixture(t, criticalAssessment())

	resp := postJSON(t, f.server.URL+"/conversations/conv_1/messages", map[string]string{
		"sender_id": "user_1",
		"content":   "I want to end it all",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Assessment *models.CrisisAssessment `json:"assessment"`
		Escalation *models.Escalation       `json:"escalation"`
		Reply      *models.Message          `json:"reply"`
	}
	decodeBody(t, resp, &body)

	require.NotNil(t, body.Assessment)
	assert.Equal(t, 9, body.Assessment.Score)
	require.NotNil(t, body.Escalation)
	assert.Equal(t, models.StatusPending, body.Escalation.Status)
	require.NotNil(t, body.Reply)
	assert.Contains(t, body.Reply.Content, "988")
}

func TestMessage_ValidationErrors(t *testing.T) {
	f := newAPIFixture(t, criticalAssessment())

	resp := postJSON(t, f.server.URL+"/conversations/conv_1/messages", map[string]string{
		"content": "hello",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, f.server.URL+"/conversations/conv_1/messages", map[string]string{
		"sender_id": "user_1",
		"content":   "   ",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClaim_AcceptedThenConflict(t *testing.T) {
	f := newAPIFixture(t, criticalAssessment())
	escID := createEscalationViaAPI(t, f)

	resp := postJSON(t, fmt.Sprintf("%s/escalations/%s/claim", f.server.URL, escID), map[string]string{
		"responder_id": "resp_a",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var outcome models.ClaimOutcome
	decodeBody(t, resp, &outcome)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, "resp_a", outcome.ClaimedBy)

	resp = postJSON(t, fmt.Sprintf("%s/escalations/%s/claim", f.server.URL, escID), map[string]string{
		"responder_id": "resp_b",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	decodeBody(t, resp, &outcome)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, "resp_a", outcome.ClaimedBy, "conflict body names the current owner")
}

func TestClaim_NotFound(t *testing.T) {
	f := newAPIFixture(t, criticalAssessment())

	resp := postJSON(t, f.server.URL+"/escalations/esc_missing/claim", map[string]string{
		"responder_id": "resp_a",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResolve_OnlyClaimant(t *testing.T) {
	f := newAPIFixture(t, criticalAssessment())
	escID := createEscalationViaAPI(t, f)

	resp := postJSON(t, fmt.Sprintf("%s/escalations/%s/claim", f.server.URL, escID), map[string]string{
		"responder_id": "resp_a",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, fmt.Sprintf("%s/escalations/%s/resolve", f.server.URL, escID), map[string]string{
		"responder_id": "resp_b",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, fmt.Sprintf("%s/escalations/%s/resolve", f.server.URL, escID), map[string]string{
		"responder_id": "resp_a",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var esc models.Escalation
	decodeBody(t, resp, &esc)
	assert.Equal(t, models.StatusResolved, esc.Status)
}

func TestGetEscalationAndAudit(t *testing.T) {
	f := newAPIFixture(t, criticalAssessment())
	escID := createEscalationViaAPI(t, f)

	resp, err := http.Get(fmt.Sprintf("%s/escalations/%s", f.server.URL, escID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var esc models.Escalation
	decodeBody(t, resp, &esc)
	assert.Equal(t, escID, esc.ID)

	resp, err = http.Get(fmt.Sprintf("%s/escalations/%s/audit", f.server.URL, escID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var audit struct {
		EscalationID string              `json:"escalation_id"`
		Entries      []models.AuditEntry `json:"entries"`
	}
	decodeBody(t, resp, &audit)
	assert.Equal(t, escID, audit.EscalationID)
	require.NotEmpty(t, audit.Entries)
	assert.Equal(t, "created", audit.Entries[0].Event)
}

func TestDutyToggle(t *testing.T) {
	f := newAPIFixture(t, criticalAssessment())

	resp := postJSON(t, f.server.URL+"/responders/resp_a/duty", map[string]bool{
		"on_duty": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ResponderID string `json:"responder_id"`
		OnDuty      bool   `json:"on_duty"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "resp_a", body.ResponderID)
	assert.True(t, body.OnDuty)

	resp = postJSON(t, f.server.URL+"/responders/resp_a/duty", map[string]bool{
		"on_duty": false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndStatus(t *testing.T) {
	f := newAPIFixture(t, criticalAssessment())

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status   string `json:"status"`
		IsLeader bool   `json:"is_leader"`
	}
	decodeBody(t, resp, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.IsLeader)

	resp, err = http.Get(f.server.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
