package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/rfpflow/rfpflow/internal/chunker"
	"github.com/rfpflow/rfpflow/internal/extract"
	"github.com/rfpflow/rfpflow/internal/notify"
	"github.com/rfpflow/rfpflow/internal/queue"
	"github.com/rfpflow/rfpflow/internal/store"
)

// DocumentStore captures the store methods the document stage needs.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (store.Document, error)
	SetDocumentStatus(ctx context.Context, id, status, errMsg string) error
	InsertQuestions(ctx context.Context, questions []store.Question) ([]store.Question, error)
	GetDealProjectID(ctx context.Context, dealID string) (string, error)
}

// Extractor reads a file into text.
type Extractor interface {
	Extract(path string) extract.Result
}

// Ingestor writes chunked text into the vector store.
type Ingestor interface {
	Ingest(ctx context.Context, src chunker.Source, text string) (int, error)
}

// QuestionExtractor turns extraction output into question rows.
type QuestionExtractor interface {
	ExtractDocument(ctx context.Context, doc store.Document, res extract.Result) ([]store.Question, error)
}

// Enqueuer is the broker's producing side.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, payload queue.Payload) error
}

// DocumentProcessor handles document_processing jobs: extract text, then
// either index it (project documents) or extract questions from it (deal
// documents).
type DocumentProcessor struct {
	store     DocumentStore
	extractor Extractor
	ingestor  Ingestor
	questions QuestionExtractor
	broker    Enqueuer
	notifier  notify.Notifier
	logger    *log.Logger
}

func NewDocumentProcessor(st DocumentStore, ex Extractor, ing Ingestor, qe QuestionExtractor, broker Enqueuer, notifier notify.Notifier, logger *log.Logger) *DocumentProcessor {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &DocumentProcessor{
		store: st, extractor: ex, ingestor: ing, questions: qe,
		broker: broker, notifier: notifier, logger: logger,
	}
}

func (p *DocumentProcessor) Stage() string { return "document" }
func (p *DocumentProcessor) Queue() string { return queue.DocumentProcessing }

func (p *DocumentProcessor) Handle(ctx context.Context, payload []byte) error {
	job, err := queue.DecodeDocumentJob(payload)
	if err != nil {
		return fmt.Errorf("decode document job: %w", err)
	}

	doc, err := p.store.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return err
	}
	p.setStatus(ctx, doc, store.DocumentStatusProcessing, "")

	path := job.FilePath
	if path == "" {
		path = doc.FilePath
	}
	res := p.extractor.Extract(path)
	if res.Empty() {
		msg := "no text could be extracted from document"
		p.setStatus(ctx, doc, store.DocumentStatusError, msg)
		return errors.New(msg)
	}

	switch {
	case doc.ProjectID != "":
		if err := p.indexDocument(ctx, doc, res); err != nil {
			p.setStatus(ctx, doc, store.DocumentStatusError, err.Error())
			return err
		}
	case doc.DealID != "":
		if err := p.extractQuestions(ctx, doc, res); err != nil {
			p.setStatus(ctx, doc, store.DocumentStatusError, err.Error())
			return err
		}
	default:
		msg := "document has neither project nor deal ownership"
		p.setStatus(ctx, doc, store.DocumentStatusError, msg)
		return errors.New(msg)
	}

	p.setStatus(ctx, doc, store.DocumentStatusProcessed, "")
	return nil
}

func (p *DocumentProcessor) indexDocument(ctx context.Context, doc store.Document, res extract.Result) error {
	filename := doc.OriginalFilename
	if filename == "" {
		filename = doc.Filename
	}
	n, err := p.ingestor.Ingest(ctx, chunker.Source{
		TenantID:   doc.TenantID,
		ProjectID:  doc.ProjectID,
		DocumentID: doc.ID,
		Filename:   filename,
	}, res.Text)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	p.logger.Printf("indexed document %s: %d chunks", doc.ID, n)
	return nil
}

func (p *DocumentProcessor) extractQuestions(ctx context.Context, doc store.Document, res extract.Result) error {
	questions, err := p.questions.ExtractDocument(ctx, doc, res)
	if err != nil {
		return fmt.Errorf("extract questions: %w", err)
	}
	if len(questions) == 0 {
		p.logger.Printf("no questions found in document %s", doc.ID)
		return nil
	}

	inserted, err := p.store.InsertQuestions(ctx, questions)
	if err != nil {
		return fmt.Errorf("persist questions: %w", err)
	}

	projectID, err := p.store.GetDealProjectID(ctx, doc.DealID)
	if err != nil {
		return err
	}
	enqueued := 0
	for _, q := range inserted {
		err := p.broker.Enqueue(ctx, queue.QuestionProcessing, queue.QuestionJob{
			QuestionID: q.ID,
			TenantID:   q.TenantID,
			ProjectID:  projectID,
			DealID:     q.DealID,
		})
		if err != nil {
			p.logger.Printf("enqueue question %s: %v", q.ID, err)
			continue
		}
		enqueued++
	}
	p.logger.Printf("document %s: %d questions extracted, %d enqueued", doc.ID, len(inserted), enqueued)
	return nil
}

// setStatus records the transition and emits the tenant notification. Both
// are best effort relative to each other; a notify failure never fails the
// job.
func (p *DocumentProcessor) setStatus(ctx context.Context, doc store.Document, status, errMsg string) {
	if err := p.store.SetDocumentStatus(ctx, doc.ID, status, errMsg); err != nil {
		p.logger.Printf("set document %s status %s: %v", doc.ID, status, err)
	}
	event := notify.Event{DocumentID: doc.ID, Status: status, ErrorMessage: errMsg}
	if err := p.notifier.Notify(ctx, doc.TenantID, event); err != nil {
		p.logger.Printf("notify document %s status %s: %v", doc.ID, status, err)
	}
}
