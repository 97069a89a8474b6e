package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store wraps the relational database shared with the rest of the platform.
// The pipeline reads and writes the rows described here but never owns schema
// migration, tenants, or auth.
type Store struct {
	DB *sql.DB
}

// Document lifecycle statuses.
const (
	DocumentStatusUploaded   = "uploaded"
	DocumentStatusProcessing = "processing"
	DocumentStatusProcessed  = "processed"
	DocumentStatusError      = "error"
)

// Question processing statuses.
const (
	QuestionStatusPending    = "pending"
	QuestionStatusProcessing = "processing"
	QuestionStatusProcessed  = "processed"
	QuestionStatusError      = "error"
)

// Answer completeness classifications returned by the generation model.
const (
	AnswerStatusAnswered          = "answered"
	AnswerStatusPartiallyAnswered = "partiallyAnswered"
	AnswerStatusNotAnswered       = "notAnswered"
)

// Export job statuses.
const (
	ExportStatusPending    = "pending"
	ExportStatusProcessing = "processing"
	ExportStatusCompleted  = "completed"
	ExportStatusFailed     = "failed"
)

// Question source classifications assigned during extraction.
const (
	QuestionTypeQuestion      = "question"
	QuestionTypeRequirement   = "requirement"
	QuestionTypeCriteria      = "criteria"
	QuestionTypeSpecification = "specification"
	QuestionTypeFormField     = "form_field"
	QuestionTypeOther         = "other"
)

// Answer audit provenance values.
const (
	ChangeSourceAIInitial    = "ai_initial"
	ChangeSourceAIRegenerate = "ai_regenerate"
	ChangeSourceUserEdit     = "user_edit"

	ChangeTypeAIGenerate = "ai_generate"
	ChangeTypeManualEdit = "manual_edit"
)

// Document is an uploaded file tracked through the pipeline. It is either
// project-owned (indexed into the vector store) or deal-owned (feeds question
// extraction), never both.
type Document struct {
	ID               string
	TenantID         string
	ProjectID        string
	DealID           string
	Filename         string
	OriginalFilename string
	FilePath         string
	MimeType         string
	Status           string
	ProcessingError  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Question is a single extracted item that requires a written response.
type Question struct {
	ID                   string
	TenantID             string
	DealID               string
	DocumentID           string
	QuestionText         string
	OriginalText         string
	Type                 string
	QuestionOrder        int
	ExtractionConfidence float64
	ProcessingStatus     string
	ProcessingError      string
	AnswerText           string
	Reasoning            string
	AnswerStatus         string
	RelevanceScore       float64
	SourceDocumentIDs    []string
	SourceFilenames      []string
	AnswerCellReference  string
	CellConfidence       float64
	SheetName            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AnswerAudit is one immutable row of the per-question answer history.
type AnswerAudit struct {
	ID                   string
	QuestionID           string
	TenantID             string
	AnswerText           string
	AnswerStatus         string
	ChangedByUser        string
	ChangeSource         string
	ChangeType           string
	PreviousAnswerLength int
	RelevanceScore       float64
	CreatedAt            time.Time
}

// QAPair is a project-scoped knowledge-base entry promoted from an answered
// deal question.
type QAPair struct {
	ID               string
	TenantID         string
	ProjectID        string
	QuestionText     string
	AnswerText       string
	SourceQuestionID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ExportJob tracks one export request from creation to artifact.
type ExportJob struct {
	ID             string
	TenantID       string
	DealID         string
	DocumentID     string
	Status         string
	FilePath       string
	Filename       string
	QuestionsCount int
	AnsweredCount  int
	ErrorMessage   string
	CreatedAt      time.Time
	CompletedAt    time.Time
}

// GetDocument loads a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	var (
		d                                 Document
		projectID, dealID, procErr        sql.NullString
		originalFilename, filePath, mime  sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT id, tenant_id, project_id, deal_id, filename, original_filename, file_path, mime_type, status, processing_error, created_at, updated_at
FROM documents WHERE id = $1`, id).Scan(
		&d.ID, &d.TenantID, &projectID, &dealID, &d.Filename, &originalFilename,
		&filePath, &mime, &d.Status, &procErr, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	d.ProjectID = projectID.String
	d.DealID = dealID.String
	d.OriginalFilename = originalFilename.String
	d.FilePath = filePath.String
	d.MimeType = mime.String
	d.ProcessingError = procErr.String
	return d, nil
}

// SetDocumentStatus moves a document through its lifecycle. A transition to
// processed clears any stale error message; a transition to error records it.
func (s *Store) SetDocumentStatus(ctx context.Context, id, status, errMsg string) error {
	var res sql.Result
	var err error
	if status == DocumentStatusError {
		res, err = s.DB.ExecContext(ctx, `
UPDATE documents SET status = $2, processing_error = $3, updated_at = NOW() WHERE id = $1`,
			id, status, errMsg)
	} else {
		res, err = s.DB.ExecContext(ctx, `
UPDATE documents SET status = $2, processing_error = NULL, updated_at = NOW() WHERE id = $1`,
			id, status)
	}
	if err != nil {
		return fmt.Errorf("set document %s status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set document %s status: %w", id, sql.ErrNoRows)
	}
	return nil
}

// InsertQuestions persists a batch of freshly extracted questions in one
// transaction, assigning ids where missing, and returns the stored rows.
func (s *Store) InsertQuestions(ctx context.Context, questions []Question) ([]Question, error) {
	if len(questions) == 0 {
		return nil, nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert questions: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range questions {
		q := &questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.ProcessingStatus == "" {
			q.ProcessingStatus = QuestionStatusPending
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO questions (id, tenant_id, deal_id, document_id, question_text, original_text, question_type,
  question_order, extraction_confidence, processing_status, answer_cell_reference, cell_confidence, sheet_name,
  created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),$12,NULLIF($13,''),NOW(),NOW())`,
			q.ID, q.TenantID, q.DealID, q.DocumentID, q.QuestionText, q.OriginalText, q.Type,
			q.QuestionOrder, q.ExtractionConfidence, q.ProcessingStatus,
			q.AnswerCellReference, q.CellConfidence, q.SheetName)
		if err != nil {
			return nil, fmt.Errorf("insert question %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert questions: %w", err)
	}
	return questions, nil
}

// GetQuestion loads a question by id.
func (s *Store) GetQuestion(ctx context.Context, id string) (Question, error) {
	var (
		q                                Question
		originalText, procErr, answer    sql.NullString
		reasoning, answerStatus          sql.NullString
		cellRef, sheetName               sql.NullString
		cellConfidence, relevance        sql.NullFloat64
		sourceIDs, sourceFiles           pq.StringArray
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT id, tenant_id, deal_id, document_id, question_text, original_text, question_type, question_order,
  extraction_confidence, processing_status, processing_error, answer_text, reasoning, answer_status,
  relevance_score, source_document_ids, source_filenames, answer_cell_reference, cell_confidence, sheet_name,
  created_at, updated_at
FROM questions WHERE id = $1`, id).Scan(
		&q.ID, &q.TenantID, &q.DealID, &q.DocumentID, &q.QuestionText, &originalText, &q.Type, &q.QuestionOrder,
		&q.ExtractionConfidence, &q.ProcessingStatus, &procErr, &answer, &reasoning, &answerStatus,
		&relevance, &sourceIDs, &sourceFiles, &cellRef, &cellConfidence, &sheetName,
		&q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return Question{}, fmt.Errorf("get question %s: %w", id, err)
	}
	q.OriginalText = originalText.String
	q.ProcessingError = procErr.String
	q.AnswerText = answer.String
	q.Reasoning = reasoning.String
	q.AnswerStatus = answerStatus.String
	q.RelevanceScore = relevance.Float64
	q.SourceDocumentIDs = sourceIDs
	q.SourceFilenames = sourceFiles
	q.AnswerCellReference = cellRef.String
	q.CellConfidence = cellConfidence.Float64
	q.SheetName = sheetName.String
	return q, nil
}

// ListQuestionsByDeal returns a deal's questions in extraction order.
func (s *Store) ListQuestionsByDeal(ctx context.Context, tenantID, dealID string) ([]Question, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, tenant_id, deal_id, document_id, question_text, original_text, question_type, question_order,
  extraction_confidence, processing_status, processing_error, answer_text, reasoning, answer_status,
  relevance_score, source_document_ids, source_filenames, answer_cell_reference, cell_confidence, sheet_name,
  created_at, updated_at
FROM questions WHERE tenant_id = $1 AND deal_id = $2
ORDER BY question_order, created_at`, tenantID, dealID)
	if err != nil {
		return nil, fmt.Errorf("list questions for deal %s: %w", dealID, err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var (
			q                             Question
			originalText, procErr, answer sql.NullString
			reasoning, answerStatus       sql.NullString
			cellRef, sheetName            sql.NullString
			cellConfidence, relevance     sql.NullFloat64
			sourceIDs, sourceFiles        pq.StringArray
		)
		if err := rows.Scan(
			&q.ID, &q.TenantID, &q.DealID, &q.DocumentID, &q.QuestionText, &originalText, &q.Type, &q.QuestionOrder,
			&q.ExtractionConfidence, &q.ProcessingStatus, &procErr, &answer, &reasoning, &answerStatus,
			&relevance, &sourceIDs, &sourceFiles, &cellRef, &cellConfidence, &sheetName,
			&q.CreatedAt, &q.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.OriginalText = originalText.String
		q.ProcessingError = procErr.String
		q.AnswerText = answer.String
		q.Reasoning = reasoning.String
		q.AnswerStatus = answerStatus.String
		q.RelevanceScore = relevance.Float64
		q.SourceDocumentIDs = sourceIDs
		q.SourceFilenames = sourceFiles
		q.AnswerCellReference = cellRef.String
		q.CellConfidence = cellConfidence.Float64
		q.SheetName = sheetName.String
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

// SetQuestionStatus moves a question through its processing lifecycle.
func (s *Store) SetQuestionStatus(ctx context.Context, id, status, errMsg string) error {
	var res sql.Result
	var err error
	if status == QuestionStatusError {
		res, err = s.DB.ExecContext(ctx, `
UPDATE questions SET processing_status = $2, processing_error = $3, updated_at = NOW() WHERE id = $1`,
			id, status, errMsg)
	} else {
		res, err = s.DB.ExecContext(ctx, `
UPDATE questions SET processing_status = $2, processing_error = NULL, updated_at = NOW() WHERE id = $1`,
			id, status)
	}
	if err != nil {
		return fmt.Errorf("set question %s status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set question %s status: %w", id, sql.ErrNoRows)
	}
	return nil
}

// GetDealProjectID resolves the project a deal belongs to. Deal questions
// are answered against that project's vector collection.
func (s *Store) GetDealProjectID(ctx context.Context, dealID string) (string, error) {
	var projectID string
	err := s.DB.QueryRowContext(ctx,
		`SELECT project_id FROM deals WHERE id = $1`, dealID).Scan(&projectID)
	if err != nil {
		return "", fmt.Errorf("get project for deal %s: %w", dealID, err)
	}
	return projectID, nil
}

// GetQAPair loads a knowledge-base pair by id.
func (s *Store) GetQAPair(ctx context.Context, id string) (QAPair, error) {
	var (
		p        QAPair
		sourceID sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT id, tenant_id, project_id, question_text, answer_text, source_question_id, created_at, updated_at
FROM qa_pairs WHERE id = $1`, id).Scan(
		&p.ID, &p.TenantID, &p.ProjectID, &p.QuestionText, &p.AnswerText, &sourceID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return QAPair{}, fmt.Errorf("get qa pair %s: %w", id, err)
	}
	p.SourceQuestionID = sourceID.String
	return p, nil
}
