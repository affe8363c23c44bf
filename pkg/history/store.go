// Package history persists a journal of write runs in SQLite so past
// attempts against a device can be audited after the fact.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/majusb/majusb/pkg/errors"
	_ "modernc.org/sqlite"
)

// Store provides database operations for runs
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the run journal at dbPath
func NewStore(dbPath string) (*Store, error) {
	slog.Info("history_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("history_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open history database")
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("history_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new run record
func (s *Store) Create(run *Run) error {
	slog.Info("history_create_run", "image", run.ImagePath, "device", run.DevicePath, "status", run.Status)

	query := `
		INSERT INTO runs (image_path, device_path, os_kind, status, error_message)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query,
		run.ImagePath, run.DevicePath, run.OSKind, run.Status, run.ErrorMessage)
	if err != nil {
		slog.Error("history_insert_failed", "image", run.ImagePath, "error", err)
		return errors.Wrap(err, "failed to insert run")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to get last insert id")
	}
	run.ID = id

	return nil
}

// Get retrieves a run by ID
func (s *Store) Get(id int64) (*Run, error) {
	query := `
		SELECT id, image_path, device_path, os_kind, status, error_message, created_at, updated_at
		FROM runs WHERE id = ?
	`
	var run Run
	var osKind, errorMessage sql.NullString

	err := s.db.QueryRow(query, id).Scan(
		&run.ID, &run.ImagePath, &run.DevicePath, &osKind, &run.Status,
		&errorMessage, &run.CreatedAt, &run.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("history_query_failed", "run_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query run")
	}

	run.OSKind = osKind.String
	run.ErrorMessage = errorMessage.String
	return &run, nil
}

// Update updates an existing run record
func (s *Store) Update(run *Run) error {
	slog.Info("history_update_run", "run_id", run.ID, "status", run.Status)

	query := `
		UPDATE runs
		SET os_kind = ?, status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := s.db.Exec(query, run.OSKind, run.Status, run.ErrorMessage, run.ID)
	if err != nil {
		slog.Error("history_update_failed", "run_id", run.ID, "error", err)
		return errors.Wrap(err, "failed to update run")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return fmt.Errorf("run not found: id=%d", run.ID)
	}

	return nil
}

// UpdateStatus updates only the status and error message
func (s *Store) UpdateStatus(id int64, status, errorMessage string) error {
	slog.Info("history_update_status", "run_id", id, "status", status)

	query := `UPDATE runs SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := s.db.Exec(query, status, errorMessage, id)
	if err != nil {
		slog.Error("history_status_update_failed", "run_id", id, "status", status, "error", err)
		return errors.Wrap(err, "failed to update status")
	}
	return nil
}

// List retrieves all runs, newest first
func (s *Store) List() ([]*Run, error) {
	query := `
		SELECT id, image_path, device_path, os_kind, status, error_message, created_at, updated_at
		FROM runs ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("history_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var osKind, errorMessage sql.NullString

		err := rows.Scan(
			&run.ID, &run.ImagePath, &run.DevicePath, &osKind, &run.Status,
			&errorMessage, &run.CreatedAt, &run.UpdatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}

		run.OSKind = osKind.String
		run.ErrorMessage = errorMessage.String
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Info("history_list_complete", "run_count", len(runs))
	return runs, nil
}

// Delete deletes a run by ID
func (s *Store) Delete(id int64) error {
	query := `DELETE FROM runs WHERE id = ?`
	if _, err := s.db.Exec(query, id); err != nil {
		return errors.Wrap(err, "failed to delete run")
	}
	return nil
}
