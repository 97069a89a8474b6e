// Package export renders a deal's answered questions into a downloadable
// artifact: an answered copy of the source workbook for spreadsheets, a
// linear text report for everything else.
package export

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rfpflow/rfpflow/internal/store"
)

// Result describes a finished artifact. The counts are recorded on the
// export job for auditability regardless of format.
type Result struct {
	FilePath       string
	Filename       string
	QuestionsCount int
	AnsweredCount  int
}

// Renderer writes export artifacts under a single directory.
type Renderer struct {
	exportDir string
	logger    *log.Logger
}

func NewRenderer(exportDir string, logger *log.Logger) *Renderer {
	if logger == nil {
		logger = log.New(os.Stdout, "[EXPORT] ", log.LstdFlags)
	}
	return &Renderer{exportDir: exportDir, logger: logger}
}

// Render produces the artifact for one export job. Spreadsheet sources get
// cell write-back into a copy of the original workbook; everything else gets
// a text report.
func (r *Renderer) Render(exportID string, doc store.Document, questions []store.Question) (Result, error) {
	if err := os.MkdirAll(r.exportDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create export dir: %w", err)
	}

	name := strings.ToLower(doc.OriginalFilename)
	if strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xls") {
		return r.renderWorkbook(exportID, doc, questions)
	}
	return r.renderReport(exportID, doc, questions)
}

// renderWorkbook copies the source workbook and writes each answer into its
// predicted cell. A missing sheet or unusable cell reference skips that
// question and keeps it out of the answered count; it never fails the job.
func (r *Renderer) renderWorkbook(exportID string, doc store.Document, questions []store.Question) (Result, error) {
	filename := fmt.Sprintf("export_%s_%s", exportID, doc.OriginalFilename)
	path := filepath.Join(r.exportDir, filename)
	if err := copyFile(doc.FilePath, path); err != nil {
		return Result{}, fmt.Errorf("copy source workbook: %w", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("open workbook copy: %w", err)
	}
	defer f.Close()

	activeSheet := f.GetSheetName(f.GetActiveSheetIndex())
	answered := 0
	for _, q := range questions {
		if q.AnswerText == "" || q.AnswerCellReference == "" {
			continue
		}
		sheet := q.SheetName
		if sheet == "" {
			sheet = activeSheet
		}
		idx, err := f.GetSheetIndex(sheet)
		if err != nil || idx == -1 {
			r.logger.Printf("sheet %q not found in workbook for question %s", sheet, q.ID)
			continue
		}
		if err := f.SetCellValue(sheet, q.AnswerCellReference, q.AnswerText); err != nil {
			r.logger.Printf("write cell %s on sheet %q for question %s: %v", q.AnswerCellReference, sheet, q.ID, err)
			continue
		}
		answered++
	}

	if err := f.Save(); err != nil {
		return Result{}, fmt.Errorf("save workbook: %w", err)
	}
	r.logger.Printf("workbook export %s: wrote %d of %d answers", exportID, answered, len(questions))
	return Result{
		FilePath:       path,
		Filename:       filename,
		QuestionsCount: len(questions),
		AnsweredCount:  answered,
	}, nil
}

// renderReport emits the linear text format used for non-spreadsheet
// sources.
func (r *Renderer) renderReport(exportID string, doc store.Document, questions []store.Question) (Result, error) {
	filename := fmt.Sprintf("export_%s_%s.txt", exportID, doc.OriginalFilename)
	path := filepath.Join(r.exportDir, filename)

	var b strings.Builder
	fmt.Fprintf(&b, "Export Report for %s\n", doc.OriginalFilename)
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	answered := 0
	for i, q := range questions {
		fmt.Fprintf(&b, "Question %d: %s\n", i+1, q.QuestionText)
		if q.AnswerText != "" {
			fmt.Fprintf(&b, "Answer: %s\n", q.AnswerText)
			answered++
		} else {
			b.WriteString("Answer: [Not answered]\n")
		}
		if q.RelevanceScore > 0 {
			fmt.Fprintf(&b, "Relevance Score: %.1f%%\n", q.RelevanceScore)
		}
		b.WriteString("\n" + strings.Repeat("-", 30) + "\n\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return Result{}, fmt.Errorf("write report: %w", err)
	}
	r.logger.Printf("report export %s: %d of %d questions answered", exportID, answered, len(questions))
	return Result{
		FilePath:       path,
		Filename:       filename,
		QuestionsCount: len(questions),
		AnsweredCount:  answered,
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
