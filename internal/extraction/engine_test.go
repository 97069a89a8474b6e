package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rfpflow/rfpflow/internal/extract"
	"github.com/rfpflow/rfpflow/internal/provider"
	"github.com/rfpflow/rfpflow/internal/store"
)

type fakeProvider struct {
	responses []string
	errs      []error
	prompts   []string
}

func (f *fakeProvider) Generate(_ context.Context, prompt string, _ *provider.Schema) (string, error) {
	call := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	if call < len(f.errs) && f.errs[call] != nil {
		return "", f.errs[call]
	}
	if call < len(f.responses) {
		return f.responses[call], nil
	}
	return "[]", nil
}

func (f *fakeProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func newTestEngine(p provider.Provider) *Engine {
	return NewEngine(p, DefaultTemplates(), 100, nil)
}

func TestExtractFromTextDeduplicatesCaseInsensitively(t *testing.T) {
	p := &fakeProvider{responses: []string{`[
		{"question": "What is your SLA?", "original_text": "What is your SLA?", "confidence": 0.95, "order": 1, "type": "question"},
		{"question": "WHAT IS YOUR SLA?", "original_text": "what is your sla?", "confidence": 0.90, "order": 2, "type": "question"},
		{"question": "Describe your backup process", "original_text": "Vendor must describe backups", "confidence": 0.80, "order": 3, "type": "requirement"}
	]`}}

	items, err := newTestEngine(p).ExtractFromText(context.Background(), "doc text")
	if err != nil {
		t.Fatalf("ExtractFromText: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected duplicate collapsed to 2 items, got %d", len(items))
	}
	if items[0].Question != "What is your SLA?" || items[0].Confidence != 0.95 {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].Type != store.QuestionTypeRequirement {
		t.Fatalf("expected requirement type, got %s", items[1].Type)
	}
	if !strings.Contains(p.prompts[0], "doc text") {
		t.Fatalf("prompt missing document text")
	}
}

func TestExtractFromTextNormalizesUnknownType(t *testing.T) {
	p := &fakeProvider{responses: []string{`[
		{"question": "What is X?", "original_text": "What is X?", "confidence": 0.5, "order": 1, "type": "mystery"}
	]`}}

	items, err := newTestEngine(p).ExtractFromText(context.Background(), "t")
	if err != nil {
		t.Fatalf("ExtractFromText: %v", err)
	}
	if items[0].Type != store.QuestionTypeOther {
		t.Fatalf("expected unknown type normalized to other, got %s", items[0].Type)
	}
}

func TestExtractFromTextToleratesWrappedJSON(t *testing.T) {
	p := &fakeProvider{responses: []string{"Here are the questions:\n```json\n" +
		`[{"question": "What is your SLA?", "original_text": "What is your SLA?", "confidence": 0.9, "order": 1, "type": "question"}]` +
		"\n```"}}

	items, err := newTestEngine(p).ExtractFromText(context.Background(), "t")
	if err != nil {
		t.Fatalf("ExtractFromText: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item from fenced response, got %d", len(items))
	}
}

func TestExtractFromCellsTwoPhase(t *testing.T) {
	cells := []extract.Cell{
		{Reference: "A1", Value: "What is your uptime SLA?", Row: 1, Column: 1},
		{Reference: "A2", Value: "Vendor must provide security certifications", Row: 2, Column: 1},
	}
	p := &fakeProvider{responses: []string{
		`[
			{"question": "What is your uptime SLA?", "original_text": "What is your uptime SLA?", "extraction_confidence": 0.95, "order": 1, "type": "question"},
			{"question": "What security certifications will you provide?", "original_text": "Vendor must provide security certifications", "extraction_confidence": 0.85, "order": 2, "type": "requirement"}
		]`,
		`[
			{"question_text": "What is your uptime SLA?", "answer_cell": "B1", "cell_confidence": 0.9, "reasoning": "Adjacent empty cell."}
		]`,
	}}

	items, err := newTestEngine(p).ExtractFromCells(context.Background(), cells)
	if err != nil {
		t.Fatalf("ExtractFromCells: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].AnswerCell != "B1" || items[0].CellConfidence != 0.9 {
		t.Fatalf("expected localization merged onto first item, got %+v", items[0])
	}
	if items[0].Confidence != 0.95 {
		t.Fatalf("expected extraction_confidence carried, got %f", items[0].Confidence)
	}
	if items[1].AnswerCell != "" {
		t.Fatalf("unmatched item should keep empty cell fields, got %+v", items[1])
	}
	if !strings.Contains(p.prompts[0], "Cell A1: What is your uptime SLA?") {
		t.Fatalf("phase one prompt missing cell listing")
	}
	if !strings.Contains(p.prompts[1], "ORIGINAL TEXT TO LOCATE") {
		t.Fatalf("phase two prompt missing locate section")
	}
	if !strings.Contains(p.prompts[1], "Vendor must provide security certifications") {
		t.Fatalf("phase two prompt missing original text")
	}
}

func TestExtractFromCellsCapsListing(t *testing.T) {
	var cells []extract.Cell
	for i := 1; i <= 120; i++ {
		cells = append(cells, extract.Cell{
			Reference: fmt.Sprintf("A%d", i),
			Value:     fmt.Sprintf("Question %d", i),
			Row:       i,
			Column:    1,
		})
	}
	p := &fakeProvider{responses: []string{"[]"}}

	if _, err := newTestEngine(p).ExtractFromCells(context.Background(), cells); err != nil {
		t.Fatalf("ExtractFromCells: %v", err)
	}
	prompt := p.prompts[0]
	if !strings.Contains(prompt, "Cell A100: Question 100") {
		t.Fatalf("prompt missing cell 100")
	}
	if strings.Contains(prompt, "Cell A101:") {
		t.Fatalf("prompt contains cells past the cap")
	}
}

func TestExtractFromCellsLocalizationFailureDegrades(t *testing.T) {
	cells := []extract.Cell{{Reference: "A1", Value: "What is X?", Row: 1, Column: 1}}
	p := &fakeProvider{
		responses: []string{`[{"question": "What is X?", "original_text": "What is X?", "extraction_confidence": 0.9, "order": 1, "type": "question"}]`, ""},
		errs:      []error{nil, errors.New("model timeout")},
	}

	items, err := newTestEngine(p).ExtractFromCells(context.Background(), cells)
	if err != nil {
		t.Fatalf("localization failure should not fail extraction: %v", err)
	}
	if len(items) != 1 || items[0].AnswerCell != "" {
		t.Fatalf("expected item without cell fields, got %+v", items)
	}
}

func TestExtractDocumentBuildsQuestionRows(t *testing.T) {
	doc := store.Document{ID: "doc-1", TenantID: "tenant-1", DealID: "deal-1"}
	res := extract.Result{
		Format:    extract.FormatSpreadsheet,
		SheetName: "Sheet1",
		Cells:     []extract.Cell{{Reference: "A1", Value: "What is your SLA?", Row: 1, Column: 1}},
	}
	p := &fakeProvider{responses: []string{
		`[{"question": "What is your SLA?", "original_text": "What is your SLA?", "extraction_confidence": 0.9, "order": 1, "type": "question"}]`,
		`[{"question_text": "What is your SLA?", "answer_cell": "B1", "cell_confidence": 0.8, "reasoning": "adjacent"}]`,
	}}

	questions, err := newTestEngine(p).ExtractDocument(context.Background(), doc, res)
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	q := questions[0]
	if q.TenantID != "tenant-1" || q.DealID != "deal-1" || q.DocumentID != "doc-1" {
		t.Fatalf("ownership not carried: %+v", q)
	}
	if q.AnswerCellReference != "B1" || q.SheetName != "Sheet1" {
		t.Fatalf("cell fields not carried: %+v", q)
	}
	if q.ProcessingStatus != store.QuestionStatusPending {
		t.Fatalf("expected pending status, got %s", q.ProcessingStatus)
	}
}

func TestDeduplicateEmpty(t *testing.T) {
	if out := Deduplicate(nil); len(out) != 0 {
		t.Fatalf("expected empty output, got %v", out)
	}
}
