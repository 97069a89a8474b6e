package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/rfpflow/rfpflow/internal/queue"
	"github.com/rfpflow/rfpflow/internal/store"
)

// QAPairStore captures the store methods the qa pair stage needs.
type QAPairStore interface {
	GetQAPair(ctx context.Context, id string) (store.QAPair, error)
}

// PairIngestor promotes a knowledge-base pair into the vector store.
type PairIngestor interface {
	IngestPair(ctx context.Context, tenantID, projectID, pairID, question, answer string) (int, error)
}

// QAPairProcessor handles qa_pair_processing jobs.
type QAPairProcessor struct {
	store    QAPairStore
	ingestor PairIngestor
	logger   *log.Logger
}

func NewQAPairProcessor(st QAPairStore, ingestor PairIngestor, logger *log.Logger) *QAPairProcessor {
	return &QAPairProcessor{store: st, ingestor: ingestor, logger: logger}
}

func (p *QAPairProcessor) Stage() string { return "qa_pair" }
func (p *QAPairProcessor) Queue() string { return queue.QAPairProcessing }

func (p *QAPairProcessor) Handle(ctx context.Context, payload []byte) error {
	job, err := queue.DecodeQAPairJob(payload)
	if err != nil {
		return fmt.Errorf("decode qa pair job: %w", err)
	}

	pair, err := p.store.GetQAPair(ctx, job.QAPairID)
	if err != nil {
		return err
	}

	n, err := p.ingestor.IngestPair(ctx, pair.TenantID, pair.ProjectID, pair.ID, pair.QuestionText, pair.AnswerText)
	if err != nil {
		return fmt.Errorf("promote qa pair %s: %w", pair.ID, err)
	}
	p.logger.Printf("qa pair %s promoted into project %s (%d chunks)", pair.ID, pair.ProjectID, n)
	return nil
}
