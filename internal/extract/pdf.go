package extract

import (
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF reads per-page text and joins the pages with newlines. A page
// that fails to decode is skipped so one corrupt page does not sink the
// document. The underlying reader panics on some malformed inputs, hence the
// recover.
func (e *Extractor) extractPDF(path string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("pdf extraction panicked for %s: %v", path, r)
			text = ""
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		e.logger.Printf("open pdf %s: %v", path, err)
		return ""
	}
	defer f.Close()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Printf("extract page %d of %s: %v", i, path, err)
			continue
		}
		pages = append(pages, strings.TrimSpace(pageText))
	}
	return strings.Join(pages, "\n")
}
