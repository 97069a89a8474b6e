package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeEmbedder struct {
	calls [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1.0}
	}
	return out, nil
}

func TestEnsureCollectionRequestsCosine(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/collections" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "proj-1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &fakeEmbedder{}, time.Second, nil)
	id, err := c.EnsureCollection(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if id != "col-1" {
		t.Fatalf("expected collection id col-1, got %s", id)
	}
	meta, ok := got["metadata"].(map[string]interface{})
	if !ok || meta["hnsw:space"] != "cosine" {
		t.Fatalf("expected cosine metadata, got %v", got["metadata"])
	}
	if got["get_or_create"] != true {
		t.Fatalf("expected get_or_create, got %v", got["get_or_create"])
	}
}

func TestQueryMissingCollectionReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer srv.Close()

	emb := &fakeEmbedder{}
	c := NewClient(srv.URL, emb, time.Second, nil)
	results, err := c.Query(context.Background(), "missing", "any question", 5, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
	if len(emb.calls) != 0 {
		t.Fatalf("expected no embedding calls for a missing collection, got %d", len(emb.calls))
	}
}

func TestQueryParsesNestedResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "proj-1"})
		case r.URL.Path == "/api/v1/collections/col-1/query":
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["n_results"] != float64(2) {
				t.Fatalf("expected n_results 2, got %v", body["n_results"])
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ids":       [][]string{{"doc-1_chunk_0", "doc-1_chunk_1"}},
				"documents": [][]string{{"first chunk", "second chunk"}},
				"metadatas": [][]map[string]interface{}{{
					{"document_id": "doc-1", "filename": "rfp.pdf"},
					{"document_id": "doc-1", "filename": "rfp.pdf"},
				}},
				"distances": [][]float64{{0.12, 0.47}},
			})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &fakeEmbedder{}, time.Second, nil)
	results, err := c.Query(context.Background(), "proj-1", "security question", 2, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "doc-1_chunk_0" || results[0].Document != "first chunk" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Distance != 0.47 {
		t.Fatalf("expected distance 0.47, got %f", results[1].Distance)
	}
	if results[0].Metadata["filename"] != "rfp.pdf" {
		t.Fatalf("unexpected metadata: %v", results[0].Metadata)
	}
}

func TestAddEmbedsAndWrites(t *testing.T) {
	var addBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/collections":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "proj-1"})
		case "/api/v1/collections/col-1/add":
			if err := json.NewDecoder(r.Body).Decode(&addBody); err != nil {
				t.Fatalf("decode add body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	emb := &fakeEmbedder{}
	c := NewClient(srv.URL, emb, time.Second, nil)
	err := c.Add(context.Background(), "proj-1", []Record{
		{ID: "doc-1_chunk_0", Document: "alpha", Metadata: map[string]interface{}{"chunk_index": 0}},
		{ID: "doc-1_chunk_1", Document: "beta", Metadata: map[string]interface{}{"chunk_index": 1}},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(emb.calls) != 1 || len(emb.calls[0]) != 2 {
		t.Fatalf("expected one embed call with 2 texts, got %v", emb.calls)
	}
	ids, _ := addBody["ids"].([]interface{})
	if len(ids) != 2 || ids[0] != "doc-1_chunk_0" {
		t.Fatalf("unexpected ids in add body: %v", addBody["ids"])
	}
	if embs, _ := addBody["embeddings"].([]interface{}); len(embs) != 2 {
		t.Fatalf("expected 2 embeddings, got %v", addBody["embeddings"])
	}
}

func TestDeleteBySourceCollectsMatchingIDs(t *testing.T) {
	var deleted []interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/collections/proj-1":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "proj-1"})
		case "/api/v1/collections/col-1/get":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ids":       []string{"doc-1_chunk_0", "doc-1_chunk_1"},
				"documents": []string{"a", "b"},
				"metadatas": []map[string]interface{}{{"document_id": "doc-1"}, {"document_id": "doc-1"}},
			})
		case "/api/v1/collections/col-1/delete":
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			deleted, _ = body["ids"].([]interface{})
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &fakeEmbedder{}, time.Second, nil)
	if err := c.DeleteBySource(context.Background(), "proj-1", "doc-1"); err != nil {
		t.Fatalf("DeleteBySource: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("expected 2 deleted ids, got %v", deleted)
	}
}

func TestDeleteCollectionMissingIsNoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &fakeEmbedder{}, time.Second, nil)
	if err := c.DeleteCollection(context.Background(), "gone"); err != nil {
		t.Fatalf("DeleteCollection on missing collection: %v", err)
	}
}
