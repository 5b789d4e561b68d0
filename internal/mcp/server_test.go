package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gdmt-engine/internal/catalog"
	"github.com/gdmt-engine/internal/config"
	"github.com/gdmt-engine/internal/domain"
	"github.com/gdmt-engine/internal/feedback"
)

// MockRecommendationService is a mock implementation of domain.RecommendationService
type MockRecommendationService struct {
	mock.Mock
}

func (m *MockRecommendationService) ComputeRecommendations(ctx context.Context, input domain.RecommendationInput) ([]domain.RecommendationOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RecommendationOutput), args.Error(1)
}

func testConfig(t *testing.T) *config.LiteConfig {
	t.Helper()
	return &config.LiteConfig{
		DataDir:         t.TempDir(),
		CacheMaxItems:   10,
		CacheTTL:        time.Minute,
		FeedbackEnabled: true,
		LogLevel:        "error",
		LogFormat:       "text",
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	opts = append([]ServerOption{WithLogger(quietLogger())}, opts...)
	server, err := NewServer(testConfig(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	return server
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, result.IsError, resultText(t, result))
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), v))
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t)

	assert.NotNil(t, server.mcpServer)
	assert.NotNil(t, server.feedbackStore)
	assert.Equal(t, []string{
		"compute_recommendations",
		"calculate_egfr",
		"calculate_symptom_score",
		"check_contraindication",
		"list_medications",
		"submit_feedback",
		"query_feedback",
		"export_feedback",
	}, server.Tools())

	_, err := os.Stat(server.config.FeedbackDBPath())
	assert.NoError(t, err)
}

func TestNewServer_WithoutFeedback(t *testing.T) {
	cfg := testConfig(t)
	cfg.FeedbackEnabled = false

	server, err := NewServer(cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer server.Close()

	assert.Nil(t, server.feedbackStore)
	assert.NotContains(t, server.Tools(), "submit_feedback")
}

func TestNewServer_RejectsNilService(t *testing.T) {
	_, err := NewServer(testConfig(t), WithRecommendationService(nil))
	assert.Error(t, err)
}

func TestComputeRecommendations(t *testing.T) {
	server := newTestServer(t)

	result, _, err := server.computeRecommendations(context.Background(), nil, map[string]any{
		"date": "2024-06-01T12:00:00Z",
	})
	require.NoError(t, err)

	var outputs []domain.RecommendationOutput
	decodeResult(t, result, &outputs)
	require.Len(t, outputs, 4)
	assert.Equal(t, domain.BetaBlockers, outputs[0].Class)
	assert.Equal(t, catalog.Carvedilol, outputs[0].TargetMedication)
	assert.Equal(t, domain.AngiotensinReceptorNeprilysinInhibitors, outputs[1].Class)
	assert.Equal(t, domain.SGLT2Inhibitors, outputs[3].Class)
}

func TestComputeRecommendations_MalformedInput(t *testing.T) {
	server := newTestServer(t)

	result, _, err := server.computeRecommendations(context.Background(), nil, map[string]any{
		"requests": "not a list",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid input for field 'input'")
}

func TestComputeRecommendations_ServiceFailure(t *testing.T) {
	engine := &MockRecommendationService{}
	engine.On("ComputeRecommendations", mock.Anything, mock.Anything).Return(nil, errors.New("engine unavailable"))
	server := newTestServer(t, WithRecommendationService(engine))

	result, _, err := server.computeRecommendations(context.Background(), nil, map[string]any{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "engine unavailable", resultText(t, result))
	engine.AssertExpectations(t)
}

func TestCalculateEGFR(t *testing.T) {
	server := newTestServer(t)

	t.Run("valid", func(t *testing.T) {
		result, _, err := server.calculateEGFR(context.Background(), nil, EGFRParams{Sex: "female", Age: 60, Creatinine: 1.0})
		require.NoError(t, err)

		var out struct {
			Value float64 `json:"value"`
			Unit  string  `json:"unit"`
		}
		decodeResult(t, result, &out)
		assert.InDelta(t, 64.6, out.Value, 0.5)
		assert.Equal(t, "mL/min/1.73m2", out.Unit)
	})

	t.Run("invalid creatinine", func(t *testing.T) {
		result, _, err := server.calculateEGFR(context.Background(), nil, EGFRParams{Sex: "male", Age: 60, Creatinine: 0})
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "creatinine")
	})

	t.Run("invalid sex", func(t *testing.T) {
		result, _, err := server.calculateEGFR(context.Background(), nil, EGFRParams{Sex: "unknown", Age: 60, Creatinine: 1})
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestCalculateSymptomScore(t *testing.T) {
	server := newTestServer(t)

	result, _, err := server.calculateSymptomScore(context.Background(), nil, SymptomScoreParams{
		Answers: []int{5, 5, 5, 5, 7, 7, 5, 5, 5, 5, 5, 5, 0},
		Date:    "2024-05-20",
	})
	require.NoError(t, err)

	var score domain.SymptomScore
	decodeResult(t, result, &score)
	assert.Equal(t, 100.0, score.Overall)
	assert.Equal(t, 0.0, score.Dizziness)
	assert.Equal(t, time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC), score.Date)

	result, _, err = server.calculateSymptomScore(context.Background(), nil, SymptomScoreParams{Answers: []int{1, 2, 3}})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, _, err = server.calculateSymptomScore(context.Background(), nil, SymptomScoreParams{
		Answers: []int{5, 5, 5, 5, 7, 7, 5, 5, 5, 5, 5, 5, 0},
		Date:    "last week",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCheckContraindication(t *testing.T) {
	server := newTestServer(t)
	allergies := []domain.AllergyIntolerance{{
		Type:        domain.AllergyType,
		Criticality: domain.CriticalityHigh,
		Code:        domain.CodeableConcept{Coding: []domain.Coding{{System: domain.ATCSystem, Code: "C09CA"}}},
	}}

	t.Run("class", func(t *testing.T) {
		result, _, err := server.checkContraindication(context.Background(), nil, ContraindicationParams{
			Allergies: allergies,
			Class:     string(domain.AngiotensinReceptorBlockers),
		})
		require.NoError(t, err)

		var out ContraindicationResult
		decodeResult(t, result, &out)
		assert.Equal(t, domain.ContraindicationSevereAllergyIntolerance, out.Category)
	})

	t.Run("medication", func(t *testing.T) {
		result, _, err := server.checkContraindication(context.Background(), nil, ContraindicationParams{
			Allergies:  allergies,
			Medication: string(catalog.Carvedilol),
		})
		require.NoError(t, err)

		var out ContraindicationResult
		decodeResult(t, result, &out)
		assert.Equal(t, domain.ContraindicationNone, out.Category)
	})

	t.Run("needs exactly one target", func(t *testing.T) {
		result, _, err := server.checkContraindication(context.Background(), nil, ContraindicationParams{
			Medication: string(catalog.Carvedilol),
			Class:      string(domain.BetaBlockers),
		})
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("unknown medication", func(t *testing.T) {
		result, _, err := server.checkContraindication(context.Background(), nil, ContraindicationParams{Medication: "000"})
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestListMedications(t *testing.T) {
	server := newTestServer(t)

	result, _, err := server.listMedications(context.Background(), nil, ListMedicationsParams{Class: string(domain.SGLT2Inhibitors)})
	require.NoError(t, err)

	var meds []domain.Medication
	decodeResult(t, result, &meds)
	require.Len(t, meds, 3)
	assert.Equal(t, catalog.Empagliflozin, meds[0].Reference)

	result, _, err = server.listMedications(context.Background(), nil, ListMedicationsParams{Class: "statins"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestFeedbackTools(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, _, err := server.submitFeedback(ctx, nil, SubmitFeedbackParams{
		PatientID:        "patient-1",
		MedicationClass:  string(domain.MineralocorticoidReceptorAntagonists),
		Category:         string(domain.NotStarted),
		TargetMedication: string(catalog.Spironolactone),
		Outcome:          string(feedback.OutcomeOverridden),
		OverrideReason:   "recent hyperkalemia",
	})
	require.NoError(t, err)

	var saved feedback.Feedback
	decodeResult(t, result, &saved)
	assert.NotEmpty(t, saved.Reference)

	result, _, err = server.submitFeedback(ctx, nil, SubmitFeedbackParams{
		PatientID:       "patient-1",
		MedicationClass: string(domain.BetaBlockers),
		Category:        string(domain.NotStarted),
		Outcome:         string(feedback.OutcomeOverridden),
	})
	require.NoError(t, err)
	assert.True(t, result.IsError, "override without a reason is rejected")

	result, _, err = server.queryFeedback(ctx, nil, QueryFeedbackParams{PatientID: "patient-1"})
	require.NoError(t, err)
	var entries []feedback.Feedback
	decodeResult(t, result, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "recent hyperkalemia", entries[0].OverrideReason)

	result, _, err = server.exportFeedback(ctx, nil, ExportFeedbackParams{Filename: "snapshot.json"})
	require.NoError(t, err)
	var exported ExportFeedbackResult
	decodeResult(t, result, &exported)
	assert.Equal(t, int64(1), exported.Count)
	data, err := os.ReadFile(exported.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "recent hyperkalemia")

	result, _, err = server.exportFeedback(ctx, nil, ExportFeedbackParams{Filename: "../escape.json"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// brokenExportStore writes part of an export and then fails.
type brokenExportStore struct {
	feedback.Store
}

func (brokenExportStore) ExportJSON(_ context.Context, writer io.Writer) error {
	if _, err := writer.Write([]byte(`{"version": "1.0", "feedback": [`)); err != nil {
		return err
	}
	return errors.New("connection lost mid-export")
}

func (brokenExportStore) Close() error { return nil }

func TestExportFeedback_FailureRemovesPartialFile(t *testing.T) {
	server := newTestServer(t, WithFeedbackStore(brokenExportStore{}))

	result, _, err := server.exportFeedback(context.Background(), nil, ExportFeedbackParams{Filename: "partial.json"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "connection lost mid-export")

	_, statErr := os.Stat(filepath.Join(server.config.ExportDir(), "partial.json"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "incomplete export should be removed")
}
