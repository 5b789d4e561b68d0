// Package feedback records what clinicians did with the engine's recommendations.
// One entry is kept per patient and medication class; saving again replaces it.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/gdmt-engine/internal/domain"
)

// Outcome is the clinician's response to a recommendation.
type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeOverridden Outcome = "overridden"
	OutcomeDismissed  Outcome = "dismissed"
)

// Feedback is a clinician's response to one recommendation.
type Feedback struct {
	ID                int64                         `json:"id,omitempty"`
	Reference         string                        `json:"reference"` // public UUID
	PatientID         string                        `json:"patient_id"`
	MedicationClass   domain.MedicationClass        `json:"medication_class"`
	Category          domain.RecommendationCategory `json:"category"`
	CurrentMedication domain.MedicationReference    `json:"current_medication,omitempty"`
	TargetMedication  domain.MedicationReference    `json:"target_medication,omitempty"`
	Outcome           Outcome                       `json:"outcome"`
	OverrideReason    string                        `json:"override_reason,omitempty"`
	Notes             string                        `json:"notes,omitempty"`
	ClinicianID       string                        `json:"clinician_id,omitempty"`
	CreatedAt         time.Time                     `json:"created_at"`
	UpdatedAt         time.Time                     `json:"updated_at"`
}

// Validate checks the fields a store requires.
func (f Feedback) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.PatientID, validation.Required, validation.Length(1, 128)),
		validation.Field(&f.MedicationClass, validation.Required, validation.By(func(value interface{}) error {
			if class, _ := value.(domain.MedicationClass); !class.IsValid() {
				return fmt.Errorf("unknown medication class")
			}
			return nil
		})),
		validation.Field(&f.Category, validation.Required),
		validation.Field(&f.Outcome, validation.Required, validation.In(OutcomeAccepted, OutcomeOverridden, OutcomeDismissed)),
		validation.Field(&f.OverrideReason, validation.When(f.Outcome == OutcomeOverridden, validation.Required)),
		validation.Field(&f.Notes, validation.Length(0, 4000)),
	)
}

// Store defines the interface for feedback storage operations.
type Store interface {
	// Save stores or updates feedback. Feedback for the same patient and class is replaced.
	Save(ctx context.Context, feedback *Feedback) error

	// Get retrieves the feedback for a patient and class, or nil when there is none.
	Get(ctx context.Context, patientID string, class domain.MedicationClass) (*Feedback, error)

	// ListByPatient returns every entry of one patient, newest first.
	ListByPatient(ctx context.Context, patientID string) ([]*Feedback, error)

	// List returns all feedback entries with pagination.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	// Count returns the total number of feedback entries.
	Count(ctx context.Context) (int64, error)

	// Delete removes a feedback entry by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all feedback to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports feedback from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// FeedbackExport represents the JSON export format.
type FeedbackExport struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

const selectColumns = `id, reference, patient_id, medication_class, category,
	current_medication, target_medication, outcome, override_reason, notes,
	clinician_id, created_at, updated_at`

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanFeedback scans a row into a Feedback struct.
func scanFeedback(s scanner) (*Feedback, error) {
	fb := &Feedback{}
	var class, category, current, target, outcome string

	err := s.Scan(
		&fb.ID, &fb.Reference, &fb.PatientID, &class, &category,
		&current, &target, &outcome, &fb.OverrideReason, &fb.Notes,
		&fb.ClinicianID, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	fb.MedicationClass = domain.MedicationClass(class)
	fb.Category = domain.RecommendationCategory(category)
	fb.CurrentMedication = domain.MedicationReference(current)
	fb.TargetMedication = domain.MedicationReference(target)
	fb.Outcome = Outcome(outcome)
	return fb, nil
}

func prepare(feedback *Feedback) error {
	if err := feedback.Validate(); err != nil {
		return fmt.Errorf("invalid feedback: %w", err)
	}
	if feedback.Reference == "" {
		feedback.Reference = uuid.NewString()
	}
	return nil
}

func exportJSON(ctx context.Context, store Store, writer io.Writer) error {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}

	export := &FeedbackExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Feedback:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export FeedbackExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, fb := range export.Feedback {
		existing, err := store.Get(ctx, fb.PatientID, fb.MedicationClass)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if existing != nil {
			skipped++
			continue
		}

		fb.ID = 0
		if err := store.Save(ctx, fb); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
