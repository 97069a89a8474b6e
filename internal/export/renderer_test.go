package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/rfpflow/rfpflow/internal/store"
)

func writeSourceWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	for i := 1; i <= 10; i++ {
		if err := f.SetCellValue("Sheet1", fmt.Sprintf("A%d", i), fmt.Sprintf("Question %d", i)); err != nil {
			t.Fatalf("set cell: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
}

func TestRenderWorkbookWritesAnswersToCells(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.xlsx")
	writeSourceWorkbook(t, src)

	doc := store.Document{ID: "doc-1", OriginalFilename: "questionnaire.xlsx", FilePath: src}
	var questions []store.Question
	for i := 1; i <= 10; i++ {
		q := store.Question{ID: fmt.Sprintf("q-%d", i), QuestionText: fmt.Sprintf("Question %d", i)}
		if i <= 6 {
			q.AnswerText = fmt.Sprintf("Answer %d", i)
			q.AnswerCellReference = fmt.Sprintf("B%d", i)
			q.SheetName = "Sheet1"
		}
		questions = append(questions, q)
	}

	r := NewRenderer(filepath.Join(dir, "exports"), nil)
	res, err := r.Render("exp-1", doc, questions)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.QuestionsCount != 10 || res.AnsweredCount != 6 {
		t.Fatalf("expected 10/6 counts, got %d/%d", res.QuestionsCount, res.AnsweredCount)
	}
	if res.Filename != "export_exp-1_questionnaire.xlsx" {
		t.Fatalf("unexpected filename %s", res.Filename)
	}

	out, err := excelize.OpenFile(res.FilePath)
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer out.Close()
	for i := 1; i <= 6; i++ {
		got, err := out.GetCellValue("Sheet1", fmt.Sprintf("B%d", i))
		if err != nil || got != fmt.Sprintf("Answer %d", i) {
			t.Fatalf("cell B%d = %q (err %v)", i, got, err)
		}
	}
	for i := 7; i <= 10; i++ {
		got, _ := out.GetCellValue("Sheet1", fmt.Sprintf("B%d", i))
		if got != "" {
			t.Fatalf("cell B%d should be untouched, got %q", i, got)
		}
	}
}

func TestRenderWorkbookMissingSheetExcluded(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.xlsx")
	writeSourceWorkbook(t, src)

	doc := store.Document{ID: "doc-1", OriginalFilename: "grid.xlsx", FilePath: src}
	questions := []store.Question{
		{ID: "q-1", AnswerText: "on active sheet", AnswerCellReference: "B1"},
		{ID: "q-2", AnswerText: "on missing sheet", AnswerCellReference: "B2", SheetName: "Pricing"},
	}

	r := NewRenderer(filepath.Join(dir, "exports"), nil)
	res, err := r.Render("exp-2", doc, questions)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.AnsweredCount != 1 {
		t.Fatalf("missing sheet should be excluded from answered count, got %d", res.AnsweredCount)
	}

	out, err := excelize.OpenFile(res.FilePath)
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer out.Close()
	got, _ := out.GetCellValue("Sheet1", "B1")
	if got != "on active sheet" {
		t.Fatalf("expected answer on active sheet fallback, got %q", got)
	}
	got, _ = out.GetCellValue("Sheet1", "B2")
	if got != "" {
		t.Fatalf("missing sheet answer must not land elsewhere, got %q", got)
	}
}

func TestRenderWorkbookMissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	doc := store.Document{ID: "doc-1", OriginalFilename: "gone.xlsx", FilePath: filepath.Join(dir, "missing.xlsx")}

	r := NewRenderer(filepath.Join(dir, "exports"), nil)
	if _, err := r.Render("exp-3", doc, nil); err == nil {
		t.Fatalf("expected error for missing source workbook")
	}
}

func TestRenderReport(t *testing.T) {
	dir := t.TempDir()
	doc := store.Document{ID: "doc-1", OriginalFilename: "rfp.pdf"}
	questions := []store.Question{
		{QuestionText: "What is your SLA?", AnswerText: "99.95% uptime.", RelevanceScore: 82.5},
		{QuestionText: "What is your headcount?"},
	}

	r := NewRenderer(filepath.Join(dir, "exports"), nil)
	res, err := r.Render("exp-4", doc, questions)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.QuestionsCount != 2 || res.AnsweredCount != 1 {
		t.Fatalf("expected 2/1 counts, got %d/%d", res.QuestionsCount, res.AnsweredCount)
	}
	if res.Filename != "export_exp-4_rfp.pdf.txt" {
		t.Fatalf("unexpected filename %s", res.Filename)
	}

	data, err := os.ReadFile(res.FilePath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	report := string(data)
	for _, want := range []string{
		"Export Report for rfp.pdf",
		"Question 1: What is your SLA?",
		"Answer: 99.95% uptime.",
		"Relevance Score: 82.5%",
		"Question 2: What is your headcount?",
		"Answer: [Not answered]",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
}
