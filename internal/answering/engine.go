// Package answering resolves one question at a time against a project's
// vector collection and produces an audited, structured answer.
package answering

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rfpflow/rfpflow/internal/provider"
	"github.com/rfpflow/rfpflow/internal/rerank"
	"github.com/rfpflow/rfpflow/internal/store"
	"github.com/rfpflow/rfpflow/internal/vector"
)

// Retriever is the slice of the vector client the engine needs.
type Retriever interface {
	Query(ctx context.Context, projectID, queryText string, nResults int, where map[string]interface{}) ([]vector.SearchResult, error)
}

// Reranker reorders retrieved passages. A nil Reranker disables oversampling
// and the engine keeps the store's own ordering.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string, topK int) []rerank.RankedPassage
}

// Answer is the engine's final output for one question, ready for
// store.RecordAnswer.
type Answer struct {
	Text              string
	Reasoning         string
	Status            string
	RelevanceScore    float64
	SourceDocumentIDs []string
	SourceFilenames   []string
}

// Engine wires retrieval, optional reranking, and constrained generation.
type Engine struct {
	provider       provider.Provider
	vectors        Retriever
	reranker       Reranker
	answerTemplate string
	topK           int
	oversample     int
	logger         *log.Logger
}

func NewEngine(p provider.Provider, vectors Retriever, reranker Reranker, answerTemplate string, topK, oversample int, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stdout, "[ANSWERING] ", log.LstdFlags)
	}
	if answerTemplate == "" {
		answerTemplate = DefaultAnswerTemplate
	}
	if topK <= 0 {
		topK = 5
	}
	if oversample < topK {
		oversample = topK
	}
	return &Engine{
		provider:       p,
		vectors:        vectors,
		reranker:       reranker,
		answerTemplate: answerTemplate,
		topK:           topK,
		oversample:     oversample,
		logger:         logger,
	}
}

// AnswerQuestion retrieves context for the question and generates a
// structured answer. Zero retrieved chunks short-circuit to notAnswered
// without a model call; there is nothing to ground an answer on.
func (e *Engine) AnswerQuestion(ctx context.Context, projectID, questionText string) (Answer, error) {
	chunks, err := e.retrieve(ctx, projectID, questionText)
	if err != nil {
		return Answer{}, err
	}
	if len(chunks) == 0 {
		e.logger.Printf("no context retrieved for question in project %s", projectID)
		return Answer{Status: store.AnswerStatusNotAnswered}, nil
	}

	passages := make([]string, len(chunks))
	for i, c := range chunks {
		passages[i] = c.Document
	}
	prompt, err := renderPrompt(e.answerTemplate, questionText, strings.Join(passages, "\n\n"))
	if err != nil {
		return Answer{}, err
	}

	raw, err := e.provider.Generate(ctx, prompt, answerSchema())
	if err != nil {
		return Answer{}, fmt.Errorf("answer generation call: %w", err)
	}

	text, reasoning := provider.SplitReasoning(raw)
	var structured struct {
		Answer string `json:"answer"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(provider.ExtractJSON(text)), &structured); err != nil {
		// Non-conforming output is an empty result, not a crash.
		e.logger.Printf("unparseable answer payload, treating as notAnswered: %v", err)
		return Answer{Status: store.AnswerStatusNotAnswered, Reasoning: reasoning}, nil
	}

	answerText, moreReasoning := provider.SplitReasoning(structured.Answer)
	if moreReasoning != "" {
		if reasoning != "" {
			reasoning += "\n"
		}
		reasoning += moreReasoning
	}

	answer := Answer{
		Text:           answerText,
		Reasoning:      reasoning,
		Status:         normalizeStatus(structured.Status),
		RelevanceScore: meanRelevance(chunks),
	}
	answer.SourceDocumentIDs, answer.SourceFilenames = provenance(chunks)

	// An unanswered question carries no stale answer or sources.
	if answer.Status == store.AnswerStatusNotAnswered {
		answer.Text = ""
		answer.SourceDocumentIDs = nil
		answer.SourceFilenames = nil
	}
	return answer, nil
}

// retrieve pulls the context chunks for the question. With a reranker the
// engine oversamples and lets the cross-encoder pick the final topK; the
// reranker degrades internally, so this path never fails harder than plain
// retrieval.
func (e *Engine) retrieve(ctx context.Context, projectID, questionText string) ([]vector.SearchResult, error) {
	n := e.topK
	if e.reranker != nil {
		n = e.oversample
	}
	results, err := e.vectors.Query(ctx, projectID, questionText, n, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	if e.reranker == nil {
		if len(results) > e.topK {
			results = results[:e.topK]
		}
		return results, nil
	}

	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Document
	}
	ranked := e.reranker.Rerank(ctx, questionText, passages, e.topK)
	picked := make([]vector.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(results) {
			continue
		}
		picked = append(picked, results[r.Index])
	}
	if len(picked) == 0 {
		if len(results) > e.topK {
			results = results[:e.topK]
		}
		return results, nil
	}
	return picked, nil
}

// meanRelevance maps cosine distances to a 0..100 score and averages them.
func meanRelevance(chunks []vector.SearchResult) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	for _, c := range chunks {
		score := (1 - c.Distance) * 100
		if score < 0 {
			score = 0
		}
		sum += score
	}
	return sum / float64(len(chunks))
}

// provenance collects distinct contributing document ids and filenames in
// retrieval order.
func provenance(chunks []vector.SearchResult) (ids, filenames []string) {
	seenID := make(map[string]struct{})
	seenFile := make(map[string]struct{})
	for _, c := range chunks {
		if c.Metadata == nil {
			continue
		}
		if id, ok := c.Metadata["document_id"].(string); ok && id != "" {
			if _, dup := seenID[id]; !dup {
				seenID[id] = struct{}{}
				ids = append(ids, id)
			}
		}
		if name, ok := c.Metadata["filename"].(string); ok && name != "" {
			if _, dup := seenFile[name]; !dup {
				seenFile[name] = struct{}{}
				filenames = append(filenames, name)
			}
		}
	}
	return ids, filenames
}

func normalizeStatus(status string) string {
	switch status {
	case store.AnswerStatusAnswered, store.AnswerStatusPartiallyAnswered, store.AnswerStatusNotAnswered:
		return status
	default:
		return store.AnswerStatusNotAnswered
	}
}

func answerSchema() *provider.Schema {
	return &provider.Schema{
		Type: "object",
		Properties: map[string]*provider.Schema{
			"answer": {Type: "string"},
			"status": {
				Type: "string",
				Enum: []string{
					store.AnswerStatusAnswered,
					store.AnswerStatusPartiallyAnswered,
					store.AnswerStatusNotAnswered,
				},
			},
		},
		Required: []string{"answer", "status"},
	}
}
