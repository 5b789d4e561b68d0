package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdmt-engine/internal/catalog"
	"github.com/gdmt-engine/internal/domain"
	"github.com/gdmt-engine/internal/feedback"
	"github.com/gdmt-engine/internal/middleware"
	"github.com/gdmt-engine/internal/service"
)

type stubConfig struct {
	cfg domain.Config
}

func (s *stubConfig) GetConfig() *domain.Config                 { return &s.cfg }
func (s *stubConfig) GetDatabaseConfig() *domain.DatabaseConfig { return &s.cfg.Database }
func (s *stubConfig) GetServerConfig() *domain.ServerConfig     { return &s.cfg.Server }
func (s *stubConfig) Reload() error                             { return nil }
func (s *stubConfig) Validate() error                           { return nil }
func (s *stubConfig) GetDatabaseConnectionString() string       { return "" }
func (s *stubConfig) GetRedisConnectionString() string          { return "" }
func (s *stubConfig) IsProduction() bool                        { return false }
func (s *stubConfig) IsDevelopment() bool                       { return true }

type failingEngine struct{ err error }

func (f failingEngine) ComputeRecommendations(context.Context, domain.RecommendationInput) ([]domain.RecommendationOutput, error) {
	return nil, f.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testDependencies() Dependencies {
	cat := catalog.Default()
	checker := service.NewContraindicationChecker(cat)
	return Dependencies{
		Engine:  service.NewRecommendationEngine(checker, cat, testLogger()),
		Checker: checker,
		Catalog: cat,
	}
}

func newTestServer(t *testing.T, deps Dependencies) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &stubConfig{cfg: domain.Config{
		Server: domain.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			WriteTimeout:   5 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Logging: domain.LoggingConfig{Level: "error"},
	}}

	server, err := NewServer(cfg, deps, testLogger())
	require.NoError(t, err)
	return server
}

func do(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	return apiErr
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	_, err := NewServer(&stubConfig{}, Dependencies{}, testLogger())
	require.Error(t, err)
}

func TestCorsConfig(t *testing.T) {
	all := corsConfig([]string{"https://a.example", "*"})
	assert.True(t, all.AllowAllOrigins)

	listed := corsConfig([]string{"https://a.example"})
	assert.False(t, listed.AllowAllOrigins)
	assert.Equal(t, []string{"https://a.example"}, listed.AllowOrigins)
}

func TestHealth(t *testing.T) {
	deps := testDependencies()
	deps.Checks = map[string]HealthCheck{
		"catalog": func(context.Context) error { return nil },
	}
	server := newTestServer(t, deps)

	w := do(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, Version, body["version"])
	assert.Equal(t, map[string]interface{}{"catalog": "healthy"}, body["checks"])
}

func TestHealth_Degraded(t *testing.T) {
	deps := testDependencies()
	deps.Checks = map[string]HealthCheck{
		"database": func(context.Context) error { return errors.New("connection refused") },
	}
	server := newTestServer(t, deps)

	w := do(t, server, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestRecommendations_EmptyInput(t *testing.T) {
	server := newTestServer(t, testDependencies())

	w := do(t, server, http.MethodPost, "/api/v1/recommendations", map[string]interface{}{})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Recommendations []domain.RecommendationOutput `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Recommendations, 4)

	want := []struct {
		class  domain.MedicationClass
		target domain.MedicationReference
	}{
		{domain.BetaBlockers, catalog.Carvedilol},
		{domain.AngiotensinReceptorNeprilysinInhibitors, catalog.SacubitrilValsartan},
		{domain.MineralocorticoidReceptorAntagonists, catalog.Spironolactone},
		{domain.SGLT2Inhibitors, catalog.Empagliflozin},
	}
	for i, w := range want {
		got := body.Recommendations[i]
		assert.Equal(t, w.class, got.Class)
		assert.Equal(t, domain.NotStarted, got.Category)
		assert.Equal(t, w.target, got.TargetMedication)
	}
}

func TestRecommendations_MalformedBody(t *testing.T) {
	server := newTestServer(t, testDependencies())

	w := do(t, server, http.MethodPost, "/api/v1/recommendations", "{not json")
	require.Equal(t, http.StatusBadRequest, w.Code)

	apiErr := decodeError(t, w)
	assert.Equal(t, domain.CodeInvalidInput, apiErr.Code)
	assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), apiErr.RequestID)
}

func TestRecommendations_ValidationFailure(t *testing.T) {
	server := newTestServer(t, testDependencies())

	tests := []struct {
		name    string
		request domain.MedicationRequestContext
	}{
		{"missing medication", domain.MedicationRequestContext{MedicationClass: domain.BetaBlockers}},
		{"unknown class", domain.MedicationRequestContext{Medication: catalog.Carvedilol, MedicationClass: "statins"}},
		{"negative quantity", domain.MedicationRequestContext{
			Medication: catalog.Carvedilol,
			Schedules:  []domain.DoseSchedule{{Frequency: 2, Quantity: []float64{-3.125}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := domain.RecommendationInput{Requests: []domain.MedicationRequestContext{tt.request}}
			w := do(t, server, http.MethodPost, "/api/v1/recommendations", input)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, domain.CodeValidation, decodeError(t, w).Code)
		})
	}
}

func TestRecommendations_EngineFailure(t *testing.T) {
	deps := testDependencies()
	deps.Engine = failingEngine{err: errors.New("cache unavailable")}
	server := newTestServer(t, deps)

	w := do(t, server, http.MethodPost, "/api/v1/recommendations", map[string]interface{}{})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	apiErr := decodeError(t, w)
	assert.Equal(t, domain.CodeInternalServer, apiErr.Code)
	assert.NotContains(t, apiErr.Message, "cache unavailable")
}

func TestEGFR(t *testing.T) {
	server := newTestServer(t, testDependencies())

	w := do(t, server, http.MethodPost, "/api/v1/egfr", egfrRequest{Sex: "female", Age: 60, Creatinine: 1.0})
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Value float64 `json:"value"`
		Unit  string  `json:"unit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.InDelta(t, 64.6, result.Value, 0.1)
	assert.Equal(t, "mL/min/1.73m2", result.Unit)
}

func TestEGFR_InvalidInput(t *testing.T) {
	server := newTestServer(t, testDependencies())

	tests := []struct {
		name string
		req  egfrRequest
		code string
	}{
		{"missing sex", egfrRequest{Age: 60, Creatinine: 1}, domain.CodeValidation},
		{"unknown sex", egfrRequest{Sex: "x", Age: 60, Creatinine: 1}, domain.CodeInvalidInput},
		{"negative age", egfrRequest{Sex: "male", Age: -1, Creatinine: 1}, domain.CodeValidation},
		{"zero creatinine", egfrRequest{Sex: "male", Age: 60}, domain.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, server, http.MethodPost, "/api/v1/egfr", tt.req)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestSymptomScore(t *testing.T) {
	server := newTestServer(t, testDependencies())

	w := do(t, server, http.MethodPost, "/api/v1/symptom-score", symptomScoreRequest{
		Answers: []int{5, 5, 5, 5, 7, 7, 5, 5, 5, 5, 5, 5, 0},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var score domain.SymptomScore
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &score))
	assert.InDelta(t, 100, score.Overall, 1e-9)

	w = do(t, server, http.MethodPost, "/api/v1/symptom-score", symptomScoreRequest{Answers: []int{1, 2, 3}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.CodeInvalidInput, decodeError(t, w).Code)
}

func TestContraindications(t *testing.T) {
	server := newTestServer(t, testDependencies())

	severe := []domain.AllergyIntolerance{{
		Type:        domain.AllergyType,
		Criticality: domain.CriticalityHigh,
		Code: domain.CodeableConcept{Coding: []domain.Coding{
			{System: domain.RxNormSystem, Code: string(catalog.Carvedilol)},
		}},
	}}

	w := do(t, server, http.MethodPost, "/api/v1/contraindications/medication",
		medicationContraindicationRequest{Allergies: severe, Medication: catalog.Carvedilol})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"severeAllergyIntolerance"`)

	w = do(t, server, http.MethodPost, "/api/v1/contraindications/class",
		classContraindicationRequest{Allergies: severe, Class: domain.SGLT2Inhibitors})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"none"`)

	w = do(t, server, http.MethodPost, "/api/v1/contraindications/medication",
		medicationContraindicationRequest{Medication: "0000"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.CodeInvalidInput, decodeError(t, w).Code)

	w = do(t, server, http.MethodPost, "/api/v1/contraindications/class",
		classContraindicationRequest{Class: "statins"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.CodeValidation, decodeError(t, w).Code)
}

func TestMedications(t *testing.T) {
	server := newTestServer(t, testDependencies())

	w := do(t, server, http.MethodGet, "/api/v1/medications?class=sglt2inhibitors", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Medications []domain.Medication `json:"medications"`
		ClassCodes  []string            `json:"classCodes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Medications, 3)
	assert.Equal(t, catalog.Empagliflozin, body.Medications[0].Reference)

	w = do(t, server, http.MethodGet, "/api/v1/medications", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, server, http.MethodGet, "/api/v1/medications?class=statins", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedback_Disabled(t *testing.T) {
	server := newTestServer(t, testDependencies())

	w := do(t, server, http.MethodGet, "/api/v1/feedback", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.CodeNotFound, decodeError(t, w).Code)
}

func TestFeedback_SubmitAndList(t *testing.T) {
	store, err := feedback.NewSQLiteStore(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	defer store.Close()

	deps := testDependencies()
	deps.Feedback = store
	server := newTestServer(t, deps)

	entry := feedback.Feedback{
		PatientID:        "patient-1",
		MedicationClass:  domain.SGLT2Inhibitors,
		Category:         domain.NotStarted,
		TargetMedication: catalog.Empagliflozin,
		Outcome:          feedback.OutcomeAccepted,
	}

	w := do(t, server, http.MethodPost, "/api/v1/feedback", entry)
	require.Equal(t, http.StatusCreated, w.Code)

	var saved feedback.Feedback
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.NotZero(t, saved.ID)
	assert.NotEmpty(t, saved.Reference)

	entry.Outcome = feedback.OutcomeOverridden
	w = do(t, server, http.MethodPost, "/api/v1/feedback", entry)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.CodeValidation, decodeError(t, w).Code)

	w = do(t, server, http.MethodGet, "/api/v1/feedback?patient_id=patient-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listed struct {
		Feedback []feedback.Feedback `json:"feedback"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Feedback, 1)
	assert.Equal(t, feedback.OutcomeAccepted, listed.Feedback[0].Outcome)

	w = do(t, server, http.MethodGet, "/api/v1/feedback?limit=abc&offset=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"feedback":[]}`, w.Body.String())
}

func TestQueryInt(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query string
		want  int
	}{
		{"", defaultPageSize},
		{"limit=abc", defaultPageSize},
		{"limit=0", 1},
		{"limit=20", 20},
		{"limit=100000", maxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			assert.Equal(t, tt.want, queryInt(c, "limit", defaultPageSize, 1, maxPageSize))
		})
	}
}
