// Package rerank is the client for the cross-encoder reranking service. The
// service is optional quality tooling: when it is down, slow, or answers
// nonsense, retrieval falls back to the vector store's own ordering rather
// than failing the question.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// RankedPassage is one reranked passage with its original position in the
// request.
type RankedPassage struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Index int     `json:"index"`
}

type rerankRequest struct {
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
	TopK     int      `json:"top_k"`
}

type rerankResponse struct {
	Results []RankedPassage `json:"results"`
}

// Client calls the reranking service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(os.Stdout, "[RERANK] ", log.LstdFlags)
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Rerank orders passages by cross-encoder relevance to the query and keeps
// the top k. Every failure mode degrades to the first k passages in their
// original order, with nil scores information lost but retrieval intact.
func (c *Client) Rerank(ctx context.Context, query string, passages []string, topK int) []RankedPassage {
	if len(passages) == 0 {
		return nil
	}

	ranked, err := c.call(ctx, query, passages, topK)
	if err != nil {
		c.logger.Printf("rerank failed, keeping retrieval order: %v", err)
		return fallback(passages, topK)
	}
	if len(ranked) == 0 {
		c.logger.Printf("rerank returned no results, keeping retrieval order")
		return fallback(passages, topK)
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

func (c *Client) call(ctx context.Context, query string, passages []string, topK int) ([]RankedPassage, error) {
	payload, err := json.Marshal(rerankRequest{Query: query, Passages: passages, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank service returned status %d", resp.StatusCode)
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	return decoded.Results, nil
}

func fallback(passages []string, topK int) []RankedPassage {
	if topK > len(passages) {
		topK = len(passages)
	}
	out := make([]RankedPassage, topK)
	for i := 0; i < topK; i++ {
		out[i] = RankedPassage{Text: passages[i], Index: i}
	}
	return out
}
