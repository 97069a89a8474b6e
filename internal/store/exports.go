package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetExportJob loads an export job by id.
func (s *Store) GetExportJob(ctx context.Context, id string) (ExportJob, error) {
	var (
		e                         ExportJob
		filePath, filename, emsg  sql.NullString
		completedAt               sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT id, tenant_id, deal_id, document_id, status, file_path, filename,
  questions_count, answered_count, error_message, created_at, completed_at
FROM export_jobs WHERE id = $1`, id).Scan(
		&e.ID, &e.TenantID, &e.DealID, &e.DocumentID, &e.Status, &filePath, &filename,
		&e.QuestionsCount, &e.AnsweredCount, &emsg, &e.CreatedAt, &completedAt,
	)
	if err != nil {
		return ExportJob{}, fmt.Errorf("get export job %s: %w", id, err)
	}
	e.FilePath = filePath.String
	e.Filename = filename.String
	e.ErrorMessage = emsg.String
	if completedAt.Valid {
		e.CompletedAt = completedAt.Time
	}
	return e, nil
}

// SetExportStatus moves an export job into a non-terminal state.
func (s *Store) SetExportStatus(ctx context.Context, id, status string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE export_jobs SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set export %s status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set export %s status: %w", id, sql.ErrNoRows)
	}
	return nil
}

// CompleteExport marks a job done and records the artifact and counts.
func (s *Store) CompleteExport(ctx context.Context, id, filePath, filename string, questionsCount, answeredCount int) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE export_jobs SET status = $2, file_path = $3, filename = $4,
  questions_count = $5, answered_count = $6, error_message = NULL, completed_at = NOW()
WHERE id = $1`,
		id, ExportStatusCompleted, filePath, filename, questionsCount, answeredCount)
	if err != nil {
		return fmt.Errorf("complete export %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("complete export %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// FailExport marks a job failed with the captured error message.
func (s *Store) FailExport(ctx context.Context, id, errMsg string) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE export_jobs SET status = $2, error_message = $3, completed_at = NOW() WHERE id = $1`,
		id, ExportStatusFailed, errMsg)
	if err != nil {
		return fmt.Errorf("fail export %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("fail export %s: %w", id, sql.ErrNoRows)
	}
	return nil
}
