package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gdmt-engine/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite feedback store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS recommendation_feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reference TEXT NOT NULL UNIQUE,
		patient_id TEXT NOT NULL,
		medication_class TEXT NOT NULL,
		category TEXT NOT NULL,
		current_medication TEXT DEFAULT '',
		target_medication TEXT DEFAULT '',
		outcome TEXT NOT NULL,
		override_reason TEXT DEFAULT '',
		notes TEXT DEFAULT '',
		clinician_id TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(patient_id, medication_class)
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_patient_id ON recommendation_feedback(patient_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_outcome ON recommendation_feedback(outcome);
	CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON recommendation_feedback(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates feedback for a patient and class.
func (s *SQLiteStore) Save(ctx context.Context, feedback *Feedback) error {
	if err := prepare(feedback); err != nil {
		return err
	}
	now := time.Now()

	var existingID int64
	var existingReference string
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT id, reference, created_at FROM recommendation_feedback WHERE patient_id = ? AND medication_class = ?",
		feedback.PatientID, string(feedback.MedicationClass),
	).Scan(&existingID, &existingReference, &createdAt)

	if err == nil {
		feedback.ID = existingID
		feedback.Reference = existingReference
		feedback.CreatedAt = createdAt
		feedback.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE recommendation_feedback SET
				category = ?,
				current_medication = ?,
				target_medication = ?,
				outcome = ?,
				override_reason = ?,
				notes = ?,
				clinician_id = ?,
				updated_at = ?
			WHERE id = ?
		`,
			string(feedback.Category),
			string(feedback.CurrentMedication),
			string(feedback.TargetMedication),
			string(feedback.Outcome),
			feedback.OverrideReason,
			feedback.Notes,
			feedback.ClinicianID,
			now,
			existingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update: %w", err)
		}
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	feedback.CreatedAt = now
	feedback.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendation_feedback (
			reference, patient_id, medication_class, category,
			current_medication, target_medication, outcome, override_reason,
			notes, clinician_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
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
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	feedback.ID = id

	return nil
}

// Get retrieves the feedback for a patient and class.
func (s *SQLiteStore) Get(ctx context.Context, patientID string, class domain.MedicationClass) (*Feedback, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM recommendation_feedback
		WHERE patient_id = ? AND medication_class = ?
		LIMIT 1
	`, patientID, string(class))

	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return fb, nil
}

// ListByPatient returns every entry of one patient, newest first.
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientID string) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM recommendation_feedback
		WHERE patient_id = ?
		ORDER BY updated_at DESC, id DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

// List returns all feedback entries with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM recommendation_feedback
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*Feedback, error) {
	defer rows.Close()

	var result []*Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, fb)
	}
	return result, rows.Err()
}

// Count returns the total number of feedback entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recommendation_feedback").Scan(&count)
	return count, err
}

// Delete removes a feedback entry by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM recommendation_feedback WHERE id = ?", id)
	return err
}

// ExportJSON exports all feedback to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports feedback from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
