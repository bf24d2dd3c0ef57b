package history

import (
	"database/sql"
	"errors"
	"fmt"

	"tiff2dzi/contracts"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type Repository struct {
	db  *sql.DB
	log logrus.FieldLogger
}

func NewRepository(dbPath string, log logrus.FieldLogger) (*Repository, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Debug("database_ready")
	return &Repository{db: db, log: log}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Begin inserts an in_progress row and returns its id.
func (r *Repository) Begin(request contracts.ConversionRequest, baseName string, engine string) (string, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO conversions (id, input_path, output_dir, base_name, engine, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, id, request.InputPath, request.OutputDir, baseName, engine, contracts.StatusInProgress); err != nil {
		return "", fmt.Errorf("failed to insert conversion: %w", err)
	}
	r.log.WithFields(logrus.Fields{"run_id": id, "base_name": baseName}).Debug("conversion_started")
	return id, nil
}

// Finish moves the row to its terminal status. result may be nil or partial.
func (r *Repository) Finish(id string, result *contracts.ConvertResult, convErr error) error {
	status := contracts.StatusSucceeded
	var stage, message string
	if convErr != nil {
		status = contracts.StatusFailed
		message = convErr.Error()
		var failure *contracts.ConversionFailure
		if errors.As(convErr, &failure) {
			stage = string(failure.Stage)
			message = failure.Err.Error()
		}
	}

	var width, height, levels int
	if result != nil {
		width, height, levels = result.PixelWidth, result.PixelHeight, result.Levels
	}

	query := `
		UPDATE conversions
		SET status = ?, stage = ?, error_message = ?, width = ?, height = ?, levels = ?,
		    finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	res, err := r.db.Exec(query, status, stage, message, width, height, levels, id)
	if err != nil {
		return fmt.Errorf("failed to update conversion: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("conversion not found: id=%s", id)
	}

	r.log.WithFields(logrus.Fields{"run_id": id, "status": status}).Debug("conversion_finished")
	return nil
}

const selectRun = `
	SELECT id, input_path, output_dir, base_name, engine, status,
	       stage, error_message, width, height, levels, started_at, finished_at
	FROM conversions
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var stage, message, finishedAt sql.NullString
	var width, height, levels sql.NullInt64

	err := s.Scan(&run.ID, &run.InputPath, &run.OutputDir, &run.BaseName, &run.Engine, &run.Status,
		&stage, &message, &width, &height, &levels, &run.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	run.Stage = stage.String
	run.ErrorMessage = message.String
	run.Width = int(width.Int64)
	run.Height = int(height.Int64)
	run.Levels = int(levels.Int64)
	run.FinishedAt = finishedAt.String
	return &run, nil
}

// Get returns nil, nil when no run has the id.
func (r *Repository) Get(id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(selectRun+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversion: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first. limit <= 0 means no limit.
func (r *Repository) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(selectRun+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return runs, nil
}
