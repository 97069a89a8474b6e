// Package extraction turns extracted document text into persisted question
// rows. Plain documents take a single structured-output model call; large
// cell grids take a two-phase path because one call coupling "what is asked"
// with "where does the answer go" is unreliable.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rfpflow/rfpflow/internal/extract"
	"github.com/rfpflow/rfpflow/internal/provider"
	"github.com/rfpflow/rfpflow/internal/store"
)

// Item is one extracted question or requirement before persistence. Cell
// fields stay empty until localization runs on the spreadsheet path.
type Item struct {
	Question       string
	OriginalText   string
	Confidence     float64
	Order          int
	Type           string
	AnswerCell     string
	CellConfidence float64
}

// CellPrediction is one phase-two localization result.
type CellPrediction struct {
	QuestionText   string  `json:"question_text"`
	AnswerCell     string  `json:"answer_cell"`
	CellConfidence float64 `json:"cell_confidence"`
	Reasoning      string  `json:"reasoning"`
}

// Engine drives the model calls for question extraction.
type Engine struct {
	provider      provider.Provider
	templates     Templates
	maxSheetCells int
	logger        *log.Logger
}

func NewEngine(p provider.Provider, templates Templates, maxSheetCells int, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stdout, "[EXTRACTION] ", log.LstdFlags)
	}
	if maxSheetCells <= 0 {
		maxSheetCells = 100
	}
	return &Engine{provider: p, templates: templates, maxSheetCells: maxSheetCells, logger: logger}
}

// ExtractDocument runs the format-appropriate extraction path and returns
// deduplicated question rows ready for insertion. The rows carry no ids;
// the store assigns them.
func (e *Engine) ExtractDocument(ctx context.Context, doc store.Document, res extract.Result) ([]store.Question, error) {
	var items []Item
	var err error
	if res.Format == extract.FormatSpreadsheet {
		items, err = e.ExtractFromCells(ctx, res.Cells)
	} else {
		items, err = e.ExtractFromText(ctx, res.Text)
	}
	if err != nil {
		return nil, err
	}

	questions := make([]store.Question, len(items))
	for i, item := range items {
		questions[i] = store.Question{
			TenantID:             doc.TenantID,
			DealID:               doc.DealID,
			DocumentID:           doc.ID,
			QuestionText:         item.Question,
			OriginalText:         item.OriginalText,
			Type:                 item.Type,
			QuestionOrder:        item.Order,
			ExtractionConfidence: item.Confidence,
			ProcessingStatus:     store.QuestionStatusPending,
			AnswerCellReference:  item.AnswerCell,
			CellConfidence:       item.CellConfidence,
			SheetName:            res.SheetName,
		}
	}
	return questions, nil
}

// ExtractFromText runs the single-call path over the full document text.
func (e *Engine) ExtractFromText(ctx context.Context, text string) ([]Item, error) {
	prompt, err := render(e.templates.Text, "text_extraction", struct{ Text string }{Text: text})
	if err != nil {
		return nil, err
	}
	items, err := e.generateItems(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return Deduplicate(items), nil
}

// ExtractFromCells runs the two-phase spreadsheet path: extraction over the
// serialized cell listing, then answer-cell localization merged back onto the
// extracted items.
func (e *Engine) ExtractFromCells(ctx context.Context, cells []extract.Cell) ([]Item, error) {
	listing := e.serializeCells(cells)
	if listing == "" {
		return nil, nil
	}

	prompt, err := render(e.templates.Spreadsheet, "spreadsheet_extraction", struct{ CellListing string }{CellListing: listing})
	if err != nil {
		return nil, err
	}
	items, err := e.generateItems(ctx, prompt)
	if err != nil {
		return nil, err
	}
	items = Deduplicate(items)
	if len(items) == 0 {
		return nil, nil
	}

	predictions, err := e.LocalizeAnswerCells(ctx, listing, items)
	if err != nil {
		// Localization is best effort; questions without cell targets are
		// still answerable and exportable as a report.
		e.logger.Printf("answer cell localization failed: %v", err)
		return items, nil
	}
	return mergePredictions(items, predictions), nil
}

// LocalizeAnswerCells asks the model where each item's answer should be
// written. An empty prediction list is a valid outcome.
func (e *Engine) LocalizeAnswerCells(ctx context.Context, cellListing string, items []Item) ([]CellPrediction, error) {
	var originals strings.Builder
	for i, item := range items {
		fmt.Fprintf(&originals, "%d. Question: %s\n   Original text: %s\n", i+1, item.Question, item.OriginalText)
	}

	prompt, err := render(e.templates.CellLocalization, "cell_localization", struct {
		CellListing   string
		OriginalTexts string
	}{CellListing: cellListing, OriginalTexts: originals.String()})
	if err != nil {
		return nil, err
	}

	raw, err := e.provider.Generate(ctx, prompt, cellPredictionSchema())
	if err != nil {
		return nil, fmt.Errorf("cell localization call: %w", err)
	}
	payload := provider.ExtractJSON(raw)
	if payload == "" {
		return nil, nil
	}
	var predictions []CellPrediction
	if err := json.Unmarshal([]byte(payload), &predictions); err != nil {
		return nil, fmt.Errorf("parse cell predictions: %w", err)
	}
	return predictions, nil
}

// generateItems runs one extraction call and decodes the structured output.
func (e *Engine) generateItems(ctx context.Context, prompt string) ([]Item, error) {
	raw, err := e.provider.Generate(ctx, prompt, extractionSchema())
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}
	payload := provider.ExtractJSON(raw)
	if payload == "" {
		e.logger.Printf("no JSON payload in extraction response")
		return nil, nil
	}

	// The text path reports "confidence", the spreadsheet path
	// "extraction_confidence". Accept either.
	var raws []struct {
		Question             string   `json:"question"`
		OriginalText         string   `json:"original_text"`
		Confidence           *float64 `json:"confidence"`
		ExtractionConfidence *float64 `json:"extraction_confidence"`
		Order                int      `json:"order"`
		Type                 string   `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload), &raws); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}

	items := make([]Item, 0, len(raws))
	for _, r := range raws {
		if strings.TrimSpace(r.Question) == "" {
			continue
		}
		item := Item{
			Question:     strings.TrimSpace(r.Question),
			OriginalText: strings.TrimSpace(r.OriginalText),
			Order:        r.Order,
			Type:         normalizeType(r.Type),
		}
		switch {
		case r.Confidence != nil:
			item.Confidence = *r.Confidence
		case r.ExtractionConfidence != nil:
			item.Confidence = *r.ExtractionConfidence
		}
		items = append(items, item)
	}
	return items, nil
}

// Deduplicate drops later items whose (question, original text) pair matches
// an earlier one case-insensitively.
func Deduplicate(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item.Question) + "\x00" + strings.ToLower(item.OriginalText)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// mergePredictions attaches localization results by exact question text
// match. Unmatched items keep empty cell fields.
func mergePredictions(items []Item, predictions []CellPrediction) []Item {
	byQuestion := make(map[string]CellPrediction, len(predictions))
	for _, p := range predictions {
		byQuestion[p.QuestionText] = p
	}
	for i := range items {
		if p, ok := byQuestion[items[i].Question]; ok {
			items[i].AnswerCell = p.AnswerCell
			items[i].CellConfidence = p.CellConfidence
		}
	}
	return items
}

// serializeCells renders the first maxSheetCells cells as "Cell {ref}:
// {value}" lines. The cap keeps prompts bounded on large workbooks.
func (e *Engine) serializeCells(cells []extract.Cell) string {
	var lines []string
	for _, c := range cells {
		if strings.TrimSpace(c.Value) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("Cell %s: %s", c.Reference, c.Value))
		if len(lines) >= e.maxSheetCells {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func normalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case store.QuestionTypeQuestion, store.QuestionTypeRequirement, store.QuestionTypeCriteria,
		store.QuestionTypeSpecification, store.QuestionTypeFormField:
		return strings.ToLower(strings.TrimSpace(t))
	default:
		return store.QuestionTypeOther
	}
}

func extractionSchema() *provider.Schema {
	return &provider.Schema{
		Type: "array",
		Items: &provider.Schema{
			Type: "object",
			Properties: map[string]*provider.Schema{
				"question":      {Type: "string"},
				"original_text": {Type: "string"},
				"confidence":    {Type: "number"},
				"order":         {Type: "integer"},
				"type": {
					Type: "string",
					Enum: []string{
						store.QuestionTypeQuestion, store.QuestionTypeRequirement,
						store.QuestionTypeCriteria, store.QuestionTypeSpecification,
						store.QuestionTypeFormField, store.QuestionTypeOther,
					},
				},
			},
			Required: []string{"question", "original_text"},
		},
	}
}

func cellPredictionSchema() *provider.Schema {
	return &provider.Schema{
		Type: "array",
		Items: &provider.Schema{
			Type: "object",
			Properties: map[string]*provider.Schema{
				"question_text":   {Type: "string"},
				"answer_cell":     {Type: "string"},
				"cell_confidence": {Type: "number"},
				"reasoning":       {Type: "string"},
			},
			Required: []string{"question_text", "answer_cell"},
		},
	}
}
