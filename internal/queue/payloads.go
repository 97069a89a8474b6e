package queue

import (
	"encoding/json"
	"fmt"
)

// Payload is implemented by every queue's job type. Validation runs both on
// enqueue and immediately after deserialization so malformed jobs are
// rejected at the boundary instead of defaulting fields silently.
type Payload interface {
	Validate() error
}

// DocumentJob is the payload for the document_processing queue. A document
// is either project-owned (ingested into the vector store) or deal-owned
// (fed to question extraction); exactly one of ProjectID/DealID may drive
// that choice, with ProjectID always present for collection addressing.
type DocumentJob struct {
	DocumentID string `json:"document_id"`
	TenantID   string `json:"tenant_id"`
	FilePath   string `json:"file_path"`
	ProjectID  string `json:"project_id,omitempty"`
	DealID     string `json:"deal_id,omitempty"`
}

func (j DocumentJob) Validate() error {
	if j.DocumentID == "" {
		return fmt.Errorf("document_id is required")
	}
	if j.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if j.FilePath == "" {
		return fmt.Errorf("file_path is required")
	}
	if j.ProjectID == "" && j.DealID == "" {
		return fmt.Errorf("one of project_id or deal_id is required")
	}
	return nil
}

// QuestionJob is the payload for the question_processing queue.
type QuestionJob struct {
	QuestionID string `json:"question_id"`
	TenantID   string `json:"tenant_id"`
	ProjectID  string `json:"project_id"`
	DealID     string `json:"deal_id"`
}

func (j QuestionJob) Validate() error {
	if j.QuestionID == "" {
		return fmt.Errorf("question_id is required")
	}
	if j.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if j.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if j.DealID == "" {
		return fmt.Errorf("deal_id is required")
	}
	return nil
}

// QAPairJob is the payload for the qa_pair_processing queue.
type QAPairJob struct {
	QAPairID  string `json:"qa_pair_id"`
	TenantID  string `json:"tenant_id"`
	ProjectID string `json:"project_id"`
}

func (j QAPairJob) Validate() error {
	if j.QAPairID == "" {
		return fmt.Errorf("qa_pair_id is required")
	}
	if j.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if j.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	return nil
}

// ExportJob is the payload for the export_jobs queue.
type ExportJob struct {
	ExportID   string `json:"export_id"`
	TenantID   string `json:"tenant_id"`
	DealID     string `json:"deal_id"`
	DocumentID string `json:"document_id"`
}

func (j ExportJob) Validate() error {
	if j.ExportID == "" {
		return fmt.Errorf("export_id is required")
	}
	if j.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if j.DealID == "" {
		return fmt.Errorf("deal_id is required")
	}
	if j.DocumentID == "" {
		return fmt.Errorf("document_id is required")
	}
	return nil
}

// DecodeDocumentJob parses and validates a document_processing payload.
func DecodeDocumentJob(data []byte) (DocumentJob, error) {
	var job DocumentJob
	if err := json.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("unmarshal document job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return job, err
	}
	return job, nil
}

// DecodeQuestionJob parses and validates a question_processing payload.
func DecodeQuestionJob(data []byte) (QuestionJob, error) {
	var job QuestionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("unmarshal question job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return job, err
	}
	return job, nil
}

// DecodeQAPairJob parses and validates a qa_pair_processing payload.
func DecodeQAPairJob(data []byte) (QAPairJob, error) {
	var job QAPairJob
	if err := json.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("unmarshal qa pair job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return job, err
	}
	return job, nil
}

// DecodeExportJob parses and validates an export_jobs payload.
func DecodeExportJob(data []byte) (ExportJob, error) {
	var job ExportJob
	if err := json.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("unmarshal export job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return job, err
	}
	return job, nil
}
