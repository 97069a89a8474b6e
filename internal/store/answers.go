package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AnswerUpdate carries everything the answering engine produces for one
// question. A notAnswered status must arrive with cleared answer text and
// provenance; the engine enforces that before calling RecordAnswer.
type AnswerUpdate struct {
	QuestionID        string
	TenantID          string
	AnswerText        string
	Reasoning         string
	AnswerStatus      string
	RelevanceScore    float64
	SourceDocumentIDs []string
	SourceFilenames   []string
	ChangeSource      string
}

// RecordAnswer writes a generated answer and appends exactly one audit row in
// the same transaction. The audit captures the length of the answer being
// replaced, so the per-question history is replayable.
func (s *Store) RecordAnswer(ctx context.Context, upd AnswerUpdate) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record answer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var previous sql.NullString
	if err := tx.QueryRowContext(ctx,
		`SELECT answer_text FROM questions WHERE id = $1 FOR UPDATE`, upd.QuestionID,
	).Scan(&previous); err != nil {
		return fmt.Errorf("load previous answer for %s: %w", upd.QuestionID, err)
	}

	_, err = tx.ExecContext(ctx, `
UPDATE questions SET
  answer_text = NULLIF($2, ''),
  reasoning = NULLIF($3, ''),
  answer_status = $4,
  relevance_score = $5,
  source_document_ids = $6,
  source_filenames = $7,
  updated_at = NOW()
WHERE id = $1`,
		upd.QuestionID, upd.AnswerText, upd.Reasoning, upd.AnswerStatus,
		upd.RelevanceScore, pq.Array(upd.SourceDocumentIDs), pq.Array(upd.SourceFilenames))
	if err != nil {
		return fmt.Errorf("update answer for %s: %w", upd.QuestionID, err)
	}

	changeSource := upd.ChangeSource
	if changeSource == "" {
		changeSource = ChangeSourceAIInitial
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO question_answer_audits (id, question_id, tenant_id, answer_text, answer_status,
  changed_by_user, change_source, change_type, previous_answer_length, relevance_score, created_at)
VALUES ($1,$2,$3,$4,$5,NULL,$6,$7,$8,$9,NOW())`,
		uuid.NewString(), upd.QuestionID, upd.TenantID, upd.AnswerText, upd.AnswerStatus,
		changeSource, ChangeTypeAIGenerate, len(previous.String), upd.RelevanceScore)
	if err != nil {
		return fmt.Errorf("insert answer audit for %s: %w", upd.QuestionID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record answer: %w", err)
	}
	return nil
}

// ApplyAnswerEdit records a human edit to an answer with the same audit
// guarantees as engine writes.
func (s *Store) ApplyAnswerEdit(ctx context.Context, questionID, tenantID, userID, answerText, answerStatus string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin answer edit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var previous sql.NullString
	var relevance sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		`SELECT answer_text, relevance_score FROM questions WHERE id = $1 FOR UPDATE`, questionID,
	).Scan(&previous, &relevance); err != nil {
		return fmt.Errorf("load previous answer for %s: %w", questionID, err)
	}

	_, err = tx.ExecContext(ctx, `
UPDATE questions SET answer_text = NULLIF($2, ''), answer_status = $3, updated_at = NOW() WHERE id = $1`,
		questionID, answerText, answerStatus)
	if err != nil {
		return fmt.Errorf("apply answer edit for %s: %w", questionID, err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO question_answer_audits (id, question_id, tenant_id, answer_text, answer_status,
  changed_by_user, change_source, change_type, previous_answer_length, relevance_score, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())`,
		uuid.NewString(), questionID, tenantID, answerText, answerStatus,
		userID, ChangeSourceUserEdit, ChangeTypeManualEdit, len(previous.String), relevance.Float64)
	if err != nil {
		return fmt.Errorf("insert edit audit for %s: %w", questionID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit answer edit: %w", err)
	}
	return nil
}

// ListAnswerAudits returns a question's full answer history, oldest first.
func (s *Store) ListAnswerAudits(ctx context.Context, questionID string) ([]AnswerAudit, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, question_id, tenant_id, answer_text, answer_status, changed_by_user,
  change_source, change_type, previous_answer_length, relevance_score, created_at
FROM question_answer_audits WHERE question_id = $1 ORDER BY created_at`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list audits for %s: %w", questionID, err)
	}
	defer rows.Close()

	var out []AnswerAudit
	for rows.Next() {
		var (
			a                     AnswerAudit
			answer, status, user  sql.NullString
			relevance             sql.NullFloat64
		)
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.TenantID, &answer, &status, &user,
			&a.ChangeSource, &a.ChangeType, &a.PreviousAnswerLength, &relevance, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		a.AnswerText = answer.String
		a.AnswerStatus = status.String
		a.ChangedByUser = user.String
		a.RelevanceScore = relevance.Float64
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audits: %w", err)
	}
	return out, nil
}
