package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/gdmt-engine/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL feedback store.
// It expects the database and schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL feedback store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save upserts feedback keyed by patient and class.
func (s *PostgresStore) Save(ctx context.Context, feedback *Feedback) error {
	if err := prepare(feedback); err != nil {
		return err
	}
	now := time.Now()

	query := `
		INSERT INTO recommendation_feedback (
			reference, patient_id, medication_class, category,
			current_medication, target_medication, outcome, override_reason,
			notes, clinician_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (patient_id, medication_class) DO UPDATE SET
			category = EXCLUDED.category,
			current_medication = EXCLUDED.current_medication,
			target_medication = EXCLUDED.target_medication,
			outcome = EXCLUDED.outcome,
			override_reason = EXCLUDED.override_reason,
			notes = EXCLUDED.notes,
			clinician_id = EXCLUDED.clinician_id,
			updated_at = EXCLUDED.updated_at
		RETURNING id, reference, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		feedback.Reference,
		feedback.PatientID,
		string(feedback.MedicationClass),
		string(feedback.Category),
		string(feedback.CurrentMedication),
		string(feedback.TargetMedication),
		string(feedback.Outcome),
		feedback.OverrideReason,
		feedback.Notes,
		feedback.ClinicianID,
		now,
		now,
	).Scan(&feedback.ID, &feedback.Reference, &feedback.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	feedback.UpdatedAt = now
	return nil
}

// Get retrieves the feedback for a patient and class.
func (s *PostgresStore) Get(ctx context.Context, patientID string, class domain.MedicationClass) (*Feedback, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM recommendation_feedback
		WHERE patient_id = $1 AND medication_class = $2
		LIMIT 1
	`

	fb, err := scanFeedback(s.db.QueryRowContext(ctx, query, patientID, string(class)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return fb, nil
}

// ListByPatient returns every entry of one patient, newest first.
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string) ([]*Feedback, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM recommendation_feedback
		WHERE patient_id = $1
		ORDER BY updated_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return collect(rows)
}

// List returns all feedback entries with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM recommendation_feedback
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return collect(rows)
}

// Count returns the total number of feedback entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recommendation_feedback").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return count, nil
}

// Delete removes a feedback entry by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM recommendation_feedback WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	return nil
}

// ExportJSON exports all feedback to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports feedback from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
