// Package extract turns uploaded files into plain text. Dispatch is by
// detected MIME type, never by file extension. Extraction does not fail:
// every parse or I/O error is logged and degrades to empty output, which the
// processing stage treats as a fatal extraction result for the document.
package extract

import (
	"log"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// Known document formats after MIME dispatch.
const (
	FormatPDF         = "pdf"
	FormatDocx        = "docx"
	FormatSpreadsheet = "spreadsheet"
	FormatText        = "text"
	FormatUnsupported = "unsupported"
)

// Cell is one non-empty spreadsheet cell with its grid coordinates. Row and
// Column are 1-based.
type Cell struct {
	Reference string
	Value     string
	Row       int
	Column    int
}

// Result is the extraction output for one file. Cells and SheetName are
// populated only for spreadsheets; Text is the linear rendering for every
// format.
type Result struct {
	Text      string
	Format    string
	Cells     []Cell
	SheetName string
}

// Empty reports whether extraction produced no usable text.
func (r Result) Empty() bool {
	return r.Text == ""
}

// Extractor reads files from local storage and produces extraction results.
type Extractor struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.New(os.Stdout, "[EXTRACT] ", log.LstdFlags)
	}
	return &Extractor{logger: logger}
}

// Extract detects the file's MIME type and dispatches to the matching
// format reader. Unsupported types yield an empty result.
func (e *Extractor) Extract(path string) Result {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		e.logger.Printf("mime detection failed for %s: %v", path, err)
		return Result{Format: FormatUnsupported}
	}

	switch {
	case mtype.Is("application/pdf"):
		return Result{Format: FormatPDF, Text: e.extractPDF(path)}
	case mtype.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return Result{Format: FormatDocx, Text: e.extractDocx(path)}
	case mtype.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
		mtype.Is("application/vnd.ms-excel"):
		text, cells, sheet := e.extractSpreadsheet(path)
		return Result{Format: FormatSpreadsheet, Text: text, Cells: cells, SheetName: sheet}
	case isTextual(mtype):
		return Result{Format: FormatText, Text: e.extractPlainText(path)}
	default:
		e.logger.Printf("unsupported mime type %s for %s", mtype.String(), path)
		return Result{Format: FormatUnsupported}
	}
}

func (e *Extractor) extractPlainText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		e.logger.Printf("read text file %s: %v", path, err)
		return ""
	}
	return string(data)
}

// isTextual walks the MIME hierarchy so derived types such as text/csv and
// text/markdown fall through to the plain-text reader.
func isTextual(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
