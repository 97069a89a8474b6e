package extract

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strings"
)

// documentXML mirrors the parts of word/document.xml we read.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

// extractDocx reads word/document.xml out of the zip container and joins
// paragraph text with newlines.
func (e *Extractor) extractDocx(path string) string {
	reader, err := zip.OpenReader(path)
	if err != nil {
		e.logger.Printf("open docx %s: %v", path, err)
		return ""
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			e.logger.Printf("open document.xml in %s: %v", path, err)
			return ""
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			e.logger.Printf("read document.xml in %s: %v", path, err)
			return ""
		}

		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			e.logger.Printf("parse document.xml in %s: %v", path, err)
			return ""
		}

		var b strings.Builder
		for i, para := range doc.Body.Paragraphs {
			if i > 0 {
				b.WriteString("\n")
			}
			for _, run := range para.Runs {
				for _, t := range run.Text {
					b.WriteString(t.Content)
				}
			}
		}
		return strings.TrimSpace(b.String())
	}

	e.logger.Printf("no word/document.xml in %s", path)
	return ""
}
