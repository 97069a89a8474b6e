package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/rfpflow/rfpflow/internal/answering"
	"github.com/rfpflow/rfpflow/internal/queue"
	"github.com/rfpflow/rfpflow/internal/store"
)

// QuestionStore captures the store methods the question stage needs.
type QuestionStore interface {
	GetQuestion(ctx context.Context, id string) (store.Question, error)
	SetQuestionStatus(ctx context.Context, id, status, errMsg string) error
	RecordAnswer(ctx context.Context, upd store.AnswerUpdate) error
}

// Answerer resolves one question against a project collection.
type Answerer interface {
	AnswerQuestion(ctx context.Context, projectID, questionText string) (answering.Answer, error)
}

// QuestionProcessor handles question_processing jobs.
type QuestionProcessor struct {
	store  QuestionStore
	engine Answerer
	logger *log.Logger
}

func NewQuestionProcessor(st QuestionStore, engine Answerer, logger *log.Logger) *QuestionProcessor {
	return &QuestionProcessor{store: st, engine: engine, logger: logger}
}

func (p *QuestionProcessor) Stage() string { return "question" }
func (p *QuestionProcessor) Queue() string { return queue.QuestionProcessing }

func (p *QuestionProcessor) Handle(ctx context.Context, payload []byte) error {
	job, err := queue.DecodeQuestionJob(payload)
	if err != nil {
		return fmt.Errorf("decode question job: %w", err)
	}

	question, err := p.store.GetQuestion(ctx, job.QuestionID)
	if err != nil {
		return err
	}
	if err := p.store.SetQuestionStatus(ctx, question.ID, store.QuestionStatusProcessing, ""); err != nil {
		p.logger.Printf("set question %s processing: %v", question.ID, err)
	}

	answer, err := p.engine.AnswerQuestion(ctx, job.ProjectID, question.QuestionText)
	if err != nil {
		if serr := p.store.SetQuestionStatus(ctx, question.ID, store.QuestionStatusError, err.Error()); serr != nil {
			p.logger.Printf("set question %s error status: %v", question.ID, serr)
		}
		return fmt.Errorf("answer question %s: %w", question.ID, err)
	}

	err = p.store.RecordAnswer(ctx, store.AnswerUpdate{
		QuestionID:        question.ID,
		TenantID:          question.TenantID,
		AnswerText:        answer.Text,
		Reasoning:         answer.Reasoning,
		AnswerStatus:      answer.Status,
		RelevanceScore:    answer.RelevanceScore,
		SourceDocumentIDs: answer.SourceDocumentIDs,
		SourceFilenames:   answer.SourceFilenames,
		ChangeSource:      store.ChangeSourceAIInitial,
	})
	if err != nil {
		if serr := p.store.SetQuestionStatus(ctx, question.ID, store.QuestionStatusError, err.Error()); serr != nil {
			p.logger.Printf("set question %s error status: %v", question.ID, serr)
		}
		return err
	}

	if err := p.store.SetQuestionStatus(ctx, question.ID, store.QuestionStatusProcessed, ""); err != nil {
		return err
	}
	p.logger.Printf("question %s answered with status %s", question.ID, answer.Status)
	return nil
}
