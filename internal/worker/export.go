package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/rfpflow/rfpflow/internal/export"
	"github.com/rfpflow/rfpflow/internal/notify"
	"github.com/rfpflow/rfpflow/internal/queue"
	"github.com/rfpflow/rfpflow/internal/store"
)

// ExportStore captures the store methods the export stage needs.
type ExportStore interface {
	SetExportStatus(ctx context.Context, id, status string) error
	CompleteExport(ctx context.Context, id, filePath, filename string, questionsCount, answeredCount int) error
	FailExport(ctx context.Context, id, errMsg string) error
	GetDocument(ctx context.Context, id string) (store.Document, error)
	ListQuestionsByDeal(ctx context.Context, tenantID, dealID string) ([]store.Question, error)
}

// Renderer produces the export artifact.
type Renderer interface {
	Render(exportID string, doc store.Document, questions []store.Question) (export.Result, error)
}

// ExportProcessor handles export_jobs.
type ExportProcessor struct {
	store    ExportStore
	renderer Renderer
	notifier notify.Notifier
	logger   *log.Logger
}

func NewExportProcessor(st ExportStore, renderer Renderer, notifier notify.Notifier, logger *log.Logger) *ExportProcessor {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &ExportProcessor{store: st, renderer: renderer, notifier: notifier, logger: logger}
}

func (p *ExportProcessor) Stage() string { return "export" }
func (p *ExportProcessor) Queue() string { return queue.ExportJobs }

func (p *ExportProcessor) Handle(ctx context.Context, payload []byte) error {
	job, err := queue.DecodeExportJob(payload)
	if err != nil {
		return fmt.Errorf("decode export job: %w", err)
	}

	if err := p.store.SetExportStatus(ctx, job.ExportID, store.ExportStatusProcessing); err != nil {
		return err
	}
	p.notifyStatus(ctx, job, store.ExportStatusProcessing, "")

	doc, err := p.store.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return p.fail(ctx, job, "source document not found")
	}

	questions, err := p.store.ListQuestionsByDeal(ctx, job.TenantID, job.DealID)
	if err != nil {
		return p.fail(ctx, job, err.Error())
	}

	res, err := p.renderer.Render(job.ExportID, doc, questions)
	if err != nil {
		return p.fail(ctx, job, err.Error())
	}

	if err := p.store.CompleteExport(ctx, job.ExportID, res.FilePath, res.Filename, res.QuestionsCount, res.AnsweredCount); err != nil {
		return err
	}
	p.notifyStatus(ctx, job, store.ExportStatusCompleted, "")
	p.logger.Printf("export %s completed: %d of %d questions answered", job.ExportID, res.AnsweredCount, res.QuestionsCount)
	return nil
}

func (p *ExportProcessor) fail(ctx context.Context, job queue.ExportJob, msg string) error {
	if err := p.store.FailExport(ctx, job.ExportID, msg); err != nil {
		p.logger.Printf("mark export %s failed: %v", job.ExportID, err)
	}
	p.notifyStatus(ctx, job, store.ExportStatusFailed, msg)
	return fmt.Errorf("export %s: %s", job.ExportID, msg)
}

func (p *ExportProcessor) notifyStatus(ctx context.Context, job queue.ExportJob, status, errMsg string) {
	event := notify.Event{ExportID: job.ExportID, Status: status, ErrorMessage: errMsg}
	if err := p.notifier.Notify(ctx, job.TenantID, event); err != nil {
		p.logger.Printf("notify export %s status %s: %v", job.ExportID, status, err)
	}
}
