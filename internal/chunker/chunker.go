// Package chunker splits extracted document text into overlapping windows
// and writes them to the project's vector collection. Reprocessing a source
// replaces its chunks wholesale rather than merging.
package chunker

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/rfpflow/rfpflow/internal/vector"
)

// Separator priority runs from paragraph breaks down to single characters so
// splits land on semantic boundaries whenever the window allows it.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Source identifies where a batch of chunks came from. DocumentID is the
// replace key: re-ingesting the same id drops everything written before.
type Source struct {
	TenantID   string
	ProjectID  string
	DocumentID string
	Filename   string

	// Extra is merged into every chunk's metadata. Knowledge-base pair
	// promotion uses it to tag records for later lookup.
	Extra map[string]interface{}
}

// VectorStore is the slice of the collection client ingestion needs.
type VectorStore interface {
	Add(ctx context.Context, projectID string, records []vector.Record) error
	DeleteBySource(ctx context.Context, projectID, sourceID string) error
}

// Ingestor chunks text and maintains the per-project collections.
type Ingestor struct {
	vectors  VectorStore
	splitter textsplitter.RecursiveCharacter
	logger   *log.Logger
}

func NewIngestor(vectors VectorStore, chunkSize, chunkOverlap int, logger *log.Logger) *Ingestor {
	if logger == nil {
		logger = log.New(os.Stdout, "[CHUNKER] ", log.LstdFlags)
	}
	return &Ingestor{
		vectors: vectors,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(separators),
		),
		logger: logger,
	}
}

// Split chunks text without touching the vector store.
func (g *Ingestor) Split(text string) ([]string, error) {
	chunks, err := g.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	return chunks, nil
}

// Ingest replaces the source's chunks in its project collection and returns
// how many were written. Empty text clears the source's chunks and writes
// nothing.
func (g *Ingestor) Ingest(ctx context.Context, src Source, text string) (int, error) {
	chunks, err := g.Split(text)
	if err != nil {
		return 0, err
	}

	if err := g.vectors.DeleteBySource(ctx, src.ProjectID, src.DocumentID); err != nil {
		return 0, fmt.Errorf("clear previous chunks for %s: %w", src.DocumentID, err)
	}
	if len(chunks) == 0 {
		g.logger.Printf("no chunks produced for %s; collection cleared only", src.DocumentID)
		return 0, nil
	}

	records := make([]vector.Record, len(chunks))
	for i, chunk := range chunks {
		metadata := map[string]interface{}{
			"tenant_id":    src.TenantID,
			"project_id":   src.ProjectID,
			"document_id":  src.DocumentID,
			"filename":     src.Filename,
			"chunk_index":  i,
			"total_chunks": len(chunks),
		}
		for k, v := range src.Extra {
			metadata[k] = v
		}
		records[i] = vector.Record{
			ID:       fmt.Sprintf("%s_chunk_%d", src.DocumentID, i),
			Document: chunk,
			Metadata: metadata,
		}
	}

	if err := g.vectors.Add(ctx, src.ProjectID, records); err != nil {
		return 0, err
	}
	g.logger.Printf("ingested %d chunks for %s into project %s", len(records), src.DocumentID, src.ProjectID)
	return len(records), nil
}

// IngestPair promotes an approved knowledge-base pair into the project
// collection as a retrievable pseudo-document.
func (g *Ingestor) IngestPair(ctx context.Context, tenantID, projectID, pairID, question, answer string) (int, error) {
	shortID := pairID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	src := Source{
		TenantID:   tenantID,
		ProjectID:  projectID,
		DocumentID: fmt.Sprintf("qa_pair_%s", pairID),
		Filename:   fmt.Sprintf("Knowledge Base Q&A - %s", shortID),
		Extra: map[string]interface{}{
			"qa_pair_id":    pairID,
			"document_type": "qa_pair",
			"question_text": question,
			"answer_text":   answer,
		},
	}
	combined := fmt.Sprintf("Question: %s\n\nAnswer: %s", question, answer)
	return g.Ingest(ctx, src, combined)
}
