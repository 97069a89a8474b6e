package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestSetDocumentStatusProcessedClearsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	query := regexp.QuoteMeta(`
UPDATE documents SET status = $2, processing_error = NULL, updated_at = NOW() WHERE id = $1`)
	mock.ExpectExec(query).
		WithArgs("doc-1", DocumentStatusProcessed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SetDocumentStatus(context.Background(), "doc-1", DocumentStatusProcessed, ""); err != nil {
		t.Fatalf("SetDocumentStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSetDocumentStatusErrorRecordsMessage(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	query := regexp.QuoteMeta(`
UPDATE documents SET status = $2, processing_error = $3, updated_at = NOW() WHERE id = $1`)
	mock.ExpectExec(query).
		WithArgs("doc-1", DocumentStatusError, "no text content extracted").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SetDocumentStatus(context.Background(), "doc-1", DocumentStatusError, "no text content extracted"); err != nil {
		t.Fatalf("SetDocumentStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSetDocumentStatusUnknownDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", DocumentStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.SetDocumentStatus(context.Background(), "missing", DocumentStatusProcessing, ""); err == nil {
		t.Fatal("expected error for unknown document")
	}
}

func TestRecordAnswerAppendsSingleAuditWithPreviousLength(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT answer_text FROM questions WHERE id = $1 FOR UPDATE`)).
		WithArgs("q-1").
		WillReturnRows(sqlmock.NewRows([]string{"answer_text"}).AddRow("old answer"))
	mock.ExpectExec("UPDATE questions SET").
		WithArgs("q-1", "new answer", "derived from SLA section", AnswerStatusAnswered,
			87.5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO question_answer_audits").
		WithArgs(sqlmock.AnyArg(), "q-1", "tenant-1", "new answer", AnswerStatusAnswered,
			ChangeSourceAIInitial, ChangeTypeAIGenerate, len("old answer"), 87.5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = st.RecordAnswer(context.Background(), AnswerUpdate{
		QuestionID:        "q-1",
		TenantID:          "tenant-1",
		AnswerText:        "new answer",
		Reasoning:         "derived from SLA section",
		AnswerStatus:      AnswerStatusAnswered,
		RelevanceScore:    87.5,
		SourceDocumentIDs: []string{"doc-1"},
		SourceFilenames:   []string{"handbook.pdf"},
	})
	if err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyAnswerEditAuditsUserActor(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT answer_text, relevance_score FROM questions WHERE id = $1 FOR UPDATE`)).
		WithArgs("q-1").
		WillReturnRows(sqlmock.NewRows([]string{"answer_text", "relevance_score"}).AddRow("generated", 62.0))
	mock.ExpectExec("UPDATE questions SET answer_text").
		WithArgs("q-1", "edited by hand", AnswerStatusAnswered).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO question_answer_audits").
		WithArgs(sqlmock.AnyArg(), "q-1", "tenant-1", "edited by hand", AnswerStatusAnswered,
			"user-9", ChangeSourceUserEdit, ChangeTypeManualEdit, len("generated"), 62.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := st.ApplyAnswerEdit(context.Background(), "q-1", "tenant-1", "user-9", "edited by hand", AnswerStatusAnswered); err != nil {
		t.Fatalf("ApplyAnswerEdit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCompleteExportRecordsCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	mock.ExpectExec("UPDATE export_jobs SET status").
		WithArgs("exp-1", ExportStatusCompleted, "/exports/export_exp-1_rfp.xlsx", "export_exp-1_rfp.xlsx", 10, 6).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.CompleteExport(context.Background(), "exp-1", "/exports/export_exp-1_rfp.xlsx", "export_exp-1_rfp.xlsx", 10, 6); err != nil {
		t.Fatalf("CompleteExport: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetExportJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &Store{DB: db}

	created := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "deal_id", "document_id", "status", "file_path", "filename",
		"questions_count", "answered_count", "error_message", "created_at", "completed_at",
	}).AddRow("exp-1", "tenant-1", "deal-1", "doc-1", ExportStatusPending, nil, nil, 0, 0, nil, created, nil)
	mock.ExpectQuery("SELECT id, tenant_id, deal_id, document_id, status").
		WithArgs("exp-1").
		WillReturnRows(rows)

	job, err := st.GetExportJob(context.Background(), "exp-1")
	if err != nil {
		t.Fatalf("GetExportJob: %v", err)
	}
	if job.Status != ExportStatusPending || job.DealID != "deal-1" {
		t.Fatalf("unexpected job: %+v", job)
	}
}
