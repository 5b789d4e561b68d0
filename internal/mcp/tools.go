package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/gdmt-engine/internal/domain"
	"github.com/gdmt-engine/internal/feedback"
	"github.com/gdmt-engine/pkg/egfr"
	"github.com/gdmt-engine/pkg/kccq"
)

// EGFRParams defines parameters for the calculate_egfr tool
type EGFRParams struct {
	Sex        string  `json:"sex" jsonschema:"patient sex: female or male"`
	Age        float64 `json:"age" jsonschema:"age in years"`
	Creatinine float64 `json:"creatinine" jsonschema:"serum creatinine in mg/dL"`
}

// SymptomScoreParams defines parameters for the calculate_symptom_score tool
type SymptomScoreParams struct {
	Answers []int  `json:"answers" jsonschema:"the 12 KCCQ-12 answers in questionnaire order followed by the dizziness answer (0-5)"`
	Date    string `json:"date,omitempty" jsonschema:"response date, YYYY-MM-DD or RFC 3339"`
}

// ContraindicationParams defines parameters for the check_contraindication tool
type ContraindicationParams struct {
	Allergies  []domain.AllergyIntolerance `json:"allergies" jsonschema:"the patient's allergy and intolerance records"`
	Medication string                      `json:"medication,omitempty" jsonschema:"RxNorm code of the medication to check"`
	Class      string                      `json:"class,omitempty" jsonschema:"medication class to check, e.g. betaBlockers"`
}

// ContraindicationResult is the result of check_contraindication
type ContraindicationResult struct {
	Medication string                          `json:"medication,omitempty"`
	Class      string                          `json:"class,omitempty"`
	Category   domain.ContraindicationCategory `json:"category"`
}

// ListMedicationsParams defines parameters for the list_medications tool
type ListMedicationsParams struct {
	Class string `json:"class,omitempty" jsonschema:"restrict the list to one medication class"`
}

// SubmitFeedbackParams defines parameters for the submit_feedback tool
type SubmitFeedbackParams struct {
	PatientID         string `json:"patient_id" jsonschema:"identifier of the patient the recommendation was made for"`
	MedicationClass   string `json:"medication_class" jsonschema:"class of the recommendation"`
	Category          string `json:"category" jsonschema:"category of the recommendation"`
	CurrentMedication string `json:"current_medication,omitempty"`
	TargetMedication  string `json:"target_medication,omitempty"`
	Outcome           string `json:"outcome" jsonschema:"accepted, overridden or dismissed"`
	OverrideReason    string `json:"override_reason,omitempty" jsonschema:"required when the outcome is overridden"`
	Notes             string `json:"notes,omitempty"`
	ClinicianID       string `json:"clinician_id,omitempty"`
}

// QueryFeedbackParams defines parameters for the query_feedback tool
type QueryFeedbackParams struct {
	PatientID string `json:"patient_id"`
}

// ExportFeedbackParams defines parameters for the export_feedback tool
type ExportFeedbackParams struct {
	Filename string `json:"filename,omitempty" jsonschema:"file name inside the export directory"`
}

// ExportFeedbackResult is the result of export_feedback
type ExportFeedbackResult struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

func (s *Server) registerTools() {
	addTool(s, &mcp.Tool{
		Name:        "compute_recommendations",
		Description: "Compute guideline-directed medical therapy recommendations for a heart failure patient from current medication requests, allergy records, vitals, labs and symptom score.",
	}, s.computeRecommendations)
	addTool(s, &mcp.Tool{
		Name:        "calculate_egfr",
		Description: "Estimate glomerular filtration rate with the race-free CKD-EPI 2021 creatinine equation.",
	}, s.calculateEGFR)
	addTool(s, &mcp.Tool{
		Name:        "calculate_symptom_score",
		Description: "Score a KCCQ-12 response into overall, domain and dizziness scores.",
	}, s.calculateSymptomScore)
	addTool(s, &mcp.Tool{
		Name:        "check_contraindication",
		Description: "Categorize how a patient's allergy records affect one medication or medication class.",
	}, s.checkContraindication)
	addTool(s, &mcp.Tool{
		Name:        "list_medications",
		Description: "List the catalog medications with their classes and guideline target doses.",
	}, s.listMedications)

	if s.feedbackStore == nil {
		return
	}
	addTool(s, &mcp.Tool{
		Name:        "submit_feedback",
		Description: "Record what the clinician did with a recommendation. Feedback for the same patient and class is replaced.",
	}, s.submitFeedback)
	addTool(s, &mcp.Tool{
		Name:        "query_feedback",
		Description: "List recorded feedback for one patient, newest first.",
	}, s.queryFeedback)
	addTool(s, &mcp.Tool{
		Name:        "export_feedback",
		Description: "Export all recorded feedback as JSON into the data directory.",
	}, s.exportFeedback)
}

func addTool[In any](s *Server, tool *mcp.Tool, handler mcp.ToolHandlerFor[In, any]) {
	mcp.AddTool(s.mcpServer, tool, handler)
	s.tools = append(s.tools, tool.Name)
	s.logger.WithField("tool_name", tool.Name).Debug("Registered MCP tool")
}

func (s *Server) computeRecommendations(ctx context.Context, _ *mcp.CallToolRequest, params map[string]any) (*mcp.CallToolResult, any, error) {
	var input domain.RecommendationInput
	if err := remarshal(params, &input); err != nil {
		return s.toolError("compute_recommendations", domain.NewInvalidInputError("input", err.Error(), nil))
	}

	outputs, err := s.engine.ComputeRecommendations(ctx, input)
	if err != nil {
		return s.toolError("compute_recommendations", err)
	}
	return jsonResult(outputs)
}

func (s *Server) calculateEGFR(_ context.Context, _ *mcp.CallToolRequest, params EGFRParams) (*mcp.CallToolResult, any, error) {
	sex, err := domain.ParseSex(params.Sex)
	if err != nil {
		return s.toolError("calculate_egfr", err)
	}
	result, err := egfr.Calculate(egfr.Input{Sex: sex, Age: params.Age, Creatinine: params.Creatinine})
	if err != nil {
		return s.toolError("calculate_egfr", err)
	}
	return jsonResult(result)
}

func (s *Server) calculateSymptomScore(_ context.Context, _ *mcp.CallToolRequest, params SymptomScoreParams) (*mcp.CallToolResult, any, error) {
	date, err := parseDate(params.Date)
	if err != nil {
		return s.toolError("calculate_symptom_score", err)
	}
	score, err := kccq.Calculate(kccq.Response{Date: date, Answers: params.Answers})
	if err != nil {
		return s.toolError("calculate_symptom_score", err)
	}
	return jsonResult(score)
}

func (s *Server) checkContraindication(_ context.Context, _ *mcp.CallToolRequest, params ContraindicationParams) (*mcp.CallToolResult, any, error) {
	switch {
	case params.Medication != "" && params.Class == "":
		ref := domain.MedicationReference(params.Medication)
		if _, ok := s.catalog.Medication(ref); !ok {
			return s.toolError("check_contraindication", domain.NewInvalidInputError("medication", "unknown medication", params.Medication))
		}
		return jsonResult(ContraindicationResult{
			Medication: params.Medication,
			Category:   s.checker.CheckMedication(params.Allergies, ref),
		})
	case params.Class != "" && params.Medication == "":
		class := domain.MedicationClass(params.Class)
		if !class.IsValid() {
			return s.toolError("check_contraindication", domain.NewInvalidInputError("class", "unknown medication class", params.Class))
		}
		return jsonResult(ContraindicationResult{
			Class:    params.Class,
			Category: s.checker.CheckMedicationClass(params.Allergies, class),
		})
	default:
		return s.toolError("check_contraindication",
			domain.NewInvalidInputError("medication", "exactly one of medication or class is required", nil))
	}
}

func (s *Server) listMedications(_ context.Context, _ *mcp.CallToolRequest, params ListMedicationsParams) (*mcp.CallToolResult, any, error) {
	if params.Class == "" {
		return jsonResult(s.catalog.Medications())
	}
	class := domain.MedicationClass(params.Class)
	if !class.IsValid() {
		return s.toolError("list_medications", domain.NewInvalidInputError("class", "unknown medication class", params.Class))
	}
	return jsonResult(s.catalog.MedicationsInClass(class))
}

func (s *Server) submitFeedback(ctx context.Context, _ *mcp.CallToolRequest, params SubmitFeedbackParams) (*mcp.CallToolResult, any, error) {
	entry := &feedback.Feedback{
		PatientID:         params.PatientID,
		MedicationClass:   domain.MedicationClass(params.MedicationClass),
		Category:          domain.RecommendationCategory(params.Category),
		CurrentMedication: domain.MedicationReference(params.CurrentMedication),
		TargetMedication:  domain.MedicationReference(params.TargetMedication),
		Outcome:           feedback.Outcome(params.Outcome),
		OverrideReason:    params.OverrideReason,
		Notes:             params.Notes,
		ClinicianID:       params.ClinicianID,
	}
	if err := s.feedbackStore.Save(ctx, entry); err != nil {
		return s.toolError("submit_feedback", err)
	}

	s.logger.WithFields(logrus.Fields{
		"patient_id": entry.PatientID,
		"class":      entry.MedicationClass,
		"outcome":    entry.Outcome,
	}).Info("Feedback recorded")
	return jsonResult(entry)
}

func (s *Server) queryFeedback(ctx context.Context, _ *mcp.CallToolRequest, params QueryFeedbackParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.PatientID) == "" {
		return s.toolError("query_feedback", domain.NewInvalidInputError("patient_id", "is required", params.PatientID))
	}
	entries, err := s.feedbackStore.ListByPatient(ctx, params.PatientID)
	if err != nil {
		return s.toolError("query_feedback", err)
	}
	if entries == nil {
		entries = []*feedback.Feedback{}
	}
	return jsonResult(entries)
}

func (s *Server) exportFeedback(ctx context.Context, _ *mcp.CallToolRequest, params ExportFeedbackParams) (*mcp.CallToolResult, any, error) {
	name := params.Filename
	if name == "" {
		name = fmt.Sprintf("feedback-%s.json", time.Now().UTC().Format("20060102-150405"))
	}
	if filepath.Base(name) != name || !strings.HasSuffix(name, ".json") {
		return s.toolError("export_feedback", domain.NewInvalidInputError("filename", "must be a plain .json file name", name))
	}

	path := filepath.Join(s.config.ExportDir(), name)
	if err := s.writeExport(ctx, path); err != nil {
		return s.toolError("export_feedback", err)
	}
	count, err := s.feedbackStore.Count(ctx)
	if err != nil {
		return s.toolError("export_feedback", err)
	}
	return jsonResult(ExportFeedbackResult{Path: path, Count: count})
}

// writeExport writes the store's JSON export to path. A failed export leaves no file behind.
func (s *Server) writeExport(ctx context.Context, path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close export file: %w", closeErr)
		}
		if err != nil {
			if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				s.logger.WithError(removeErr).WithField("path", path).Warn("Failed to remove incomplete export")
			}
		}
	}()

	return s.feedbackStore.ExportJSON(ctx, file)
}

// toolError reports a failure as a tool result so the calling agent can read it.
func (s *Server) toolError(tool string, err error) (*mcp.CallToolResult, any, error) {
	entry := s.logger.WithError(err).WithField("tool", tool)
	var invalid *domain.InvalidInputError
	if errors.As(err, &invalid) {
		entry.Debug("Tool rejected input")
	} else {
		entry.Error("Tool failed")
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}, nil, nil
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func remarshal(in map[string]any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.NewInvalidInputError("date", "must be YYYY-MM-DD or RFC 3339", value)
}
