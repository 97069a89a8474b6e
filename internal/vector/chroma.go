// Package vector provides the per-project collection abstraction over a
// Chroma similarity-search backend. The HTTP API takes pre-computed
// embeddings, so the client embeds documents and queries itself through the
// injected embedder.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Embedder produces one embedding per input text. The pipeline's model
// provider satisfies this.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Record is the persisted unit in a collection: one chunk or one
// knowledge-base pair rendering.
type Record struct {
	ID       string
	Document string
	Metadata map[string]interface{}
}

// SearchResult is one similarity hit. Distance is the backend's cosine
// distance; callers derive relevance from it.
type SearchResult struct {
	ID       string
	Document string
	Metadata map[string]interface{}
	Distance float64
}

// Client is a Chroma REST client scoped to per-project collections.
type Client struct {
	baseURL    string
	httpClient *http.Client
	embedder   Embedder
	logger     *log.Logger
}

// NewClient builds a Client for the given Chroma base URL.
func NewClient(baseURL string, embedder Embedder, timeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(log.Writer(), "[VECTOR] ", log.LstdFlags)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		embedder:   embedder,
		logger:     logger,
	}
}

type collectionInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EnsureCollection creates the project's collection if needed and returns its
// backend id. Cosine similarity is configured explicitly; the store default
// (L2) ranks text embeddings poorly.
func (c *Client) EnsureCollection(ctx context.Context, projectID string) (string, error) {
	body := map[string]interface{}{
		"name": projectID,
		"metadata": map[string]interface{}{
			"hnsw:space": "cosine",
		},
		"get_or_create": true,
	}
	var info collectionInfo
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections", body, &info); err != nil {
		return "", fmt.Errorf("ensure collection %s: %w", projectID, err)
	}
	return info.ID, nil
}

// GetCollection looks up the project's collection id. A missing collection is
// reported via ok=false, not an error.
func (c *Client) GetCollection(ctx context.Context, projectID string) (string, bool, error) {
	var info collectionInfo
	err := c.do(ctx, http.MethodGet, "/api/v1/collections/"+url.PathEscape(projectID), nil, &info)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get collection %s: %w", projectID, err)
	}
	return info.ID, true, nil
}

// DeleteCollection drops the project's collection. Deleting a collection that
// does not exist succeeds.
func (c *Client) DeleteCollection(ctx context.Context, projectID string) error {
	err := c.do(ctx, http.MethodDelete, "/api/v1/collections/"+url.PathEscape(projectID), nil, nil)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete collection %s: %w", projectID, err)
	}
	return nil
}

// Add embeds and writes records into the project's collection, creating it on
// first write.
func (c *Client) Add(ctx context.Context, projectID string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	collectionID, err := c.EnsureCollection(ctx, projectID)
	if err != nil {
		return err
	}

	ids := make([]string, len(records))
	documents := make([]string, len(records))
	metadatas := make([]map[string]interface{}, len(records))
	for i, r := range records {
		ids[i] = r.ID
		documents[i] = r.Document
		metadatas[i] = r.Metadata
	}

	embeddings, err := c.embedder.Embed(ctx, documents)
	if err != nil {
		return fmt.Errorf("embed %d records: %w", len(records), err)
	}

	body := map[string]interface{}{
		"ids":        ids,
		"embeddings": embeddings,
		"documents":  documents,
		"metadatas":  metadatas,
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+url.PathEscape(collectionID)+"/add", body, nil); err != nil {
		return fmt.Errorf("add %d records to %s: %w", len(records), projectID, err)
	}
	return nil
}

// Query embeds queryText and returns the nResults nearest records, optionally
// filtered by a metadata where clause. A missing collection yields an empty
// result list.
func (c *Client) Query(ctx context.Context, projectID, queryText string, nResults int, where map[string]interface{}) ([]SearchResult, error) {
	collectionID, ok, err := c.GetCollection(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.logger.Printf("no collection for project %s; returning empty result", projectID)
		return nil, nil
	}

	vecs, err := c.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	body := map[string]interface{}{
		"query_embeddings": vecs,
		"n_results":        nResults,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if len(where) > 0 {
		body["where"] = where
	}

	var resp struct {
		IDs       [][]string                 `json:"ids"`
		Documents [][]string                 `json:"documents"`
		Metadatas [][]map[string]interface{} `json:"metadatas"`
		Distances [][]float64                `json:"distances"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+url.PathEscape(collectionID)+"/query", body, &resp); err != nil {
		return nil, fmt.Errorf("query %s: %w", projectID, err)
	}
	if len(resp.Documents) == 0 {
		return nil, nil
	}

	out := make([]SearchResult, 0, len(resp.Documents[0]))
	for i, doc := range resp.Documents[0] {
		res := SearchResult{Document: doc}
		if len(resp.IDs) > 0 && i < len(resp.IDs[0]) {
			res.ID = resp.IDs[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			res.Metadata = resp.Metadatas[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			res.Distance = resp.Distances[0][i]
		}
		out = append(out, res)
	}
	return out, nil
}

// Get returns records matching the metadata where clause. A missing
// collection yields an empty result list.
func (c *Client) Get(ctx context.Context, projectID string, where map[string]interface{}) ([]Record, error) {
	collectionID, ok, err := c.GetCollection(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	body := map[string]interface{}{
		"include": []string{"documents", "metadatas"},
	}
	if len(where) > 0 {
		body["where"] = where
	}

	var resp struct {
		IDs       []string                 `json:"ids"`
		Documents []string                 `json:"documents"`
		Metadatas []map[string]interface{} `json:"metadatas"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+url.PathEscape(collectionID)+"/get", body, &resp); err != nil {
		return nil, fmt.Errorf("get records from %s: %w", projectID, err)
	}

	out := make([]Record, 0, len(resp.IDs))
	for i, id := range resp.IDs {
		rec := Record{ID: id}
		if i < len(resp.Documents) {
			rec.Document = resp.Documents[i]
		}
		if i < len(resp.Metadatas) {
			rec.Metadata = resp.Metadatas[i]
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes records by id from the project's collection.
func (c *Client) Delete(ctx context.Context, projectID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	collectionID, ok, err := c.GetCollection(ctx, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	body := map[string]interface{}{"ids": ids}
	if err := c.do(ctx, http.MethodPost, "/api/v1/collections/"+url.PathEscape(collectionID)+"/delete", body, nil); err != nil {
		return fmt.Errorf("delete %d records from %s: %w", len(ids), projectID, err)
	}
	return nil
}

// DeleteBySource removes every record written for the given source id
// (a document or a promoted qa pair). Used for replace-on-reprocess and
// document deletion cleanup.
func (c *Client) DeleteBySource(ctx context.Context, projectID, sourceID string) error {
	records, err := c.Get(ctx, projectID, map[string]interface{}{"document_id": sourceID})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return c.Delete(ctx, projectID, ids)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(buf.String())}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
