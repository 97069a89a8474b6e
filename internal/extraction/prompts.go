package extraction

import (
	"fmt"
	"strings"
	"text/template"
)

// Prompt templates are configuration, not code. Operators can replace them
// to tune phrasing heuristics without a rebuild; the defaults below are the
// tuned production prompts.
type Templates struct {
	Text             string
	Spreadsheet      string
	CellLocalization string
}

func DefaultTemplates() Templates {
	return Templates{
		Text:             defaultTextTemplate,
		Spreadsheet:      defaultSpreadsheetTemplate,
		CellLocalization: defaultCellLocalizationTemplate,
	}
}

const defaultTextTemplate = `You are tasked with extracting questions and requirements from a document. Analyze the following text and identify all items that request information, regardless of how they are phrased.

Look for:
- Direct questions (e.g., "What is your experience?", "How do you handle security?")
- Requirements (e.g., "Describe your methodology", "Provide details of your approach")
- Criteria statements (e.g., "Must demonstrate compliance with", "Should include examples of")
- Information requests (e.g., "List your certifications", "Outline your process")
- Specification needs (e.g., "Technical specifications required", "Documentation must include")
- Evaluation criteria (e.g., "Bidders must provide evidence of", "Proposals should address")

Convert each item into a clear question format while preserving the original intent and context. Text that is already a question is kept verbatim.

Return your response as a JSON array where each item is an object with:
- "question": the item converted to a clear question format (if not already a question)
- "original_text": the exact original text from the document
- "confidence": a confidence score from 0.0 to 1.0 indicating how certain you are this requires a response
- "order": the sequential order this item appears in the document (starting from 1)
- "type": the type of request ("question", "requirement", "criteria", "specification", "other")

Document text:
{{.Text}}

Response format:
[
    {"question": "What is your company's experience with similar projects?", "original_text": "What is your company's experience with similar projects?", "confidence": 0.95, "order": 1, "type": "question"},
    {"question": "How do you ensure data security and compliance?", "original_text": "Must demonstrate compliance with data protection regulations", "confidence": 0.90, "order": 2, "type": "requirement"}
]`

const defaultSpreadsheetTemplate = `You are tasked with extracting questions and requirements from a spreadsheet. Each line below is one cell of the sheet, in the form "Cell {reference}: {value}". Identify every cell whose content requests information, regardless of how it is phrased: direct questions, requirements, criteria statements, form field labels, specification needs.

Convert each item into a clear question format while preserving the original intent. Cell content that is already a question is kept verbatim.

Return your response as a JSON array where each item is an object with:
- "question": the item converted to a clear question format (if not already a question)
- "original_text": the exact cell content the item came from
- "extraction_confidence": a confidence score from 0.0 to 1.0
- "order": the sequential order the item appears in the sheet (starting from 1)
- "type": the type of request ("question", "requirement", "criteria", "specification", "form_field", "other")

Spreadsheet cells:
{{.CellListing}}

Response format:
[
    {"question": "What is your company size?", "original_text": "Question 1: What is your company size?", "extraction_confidence": 0.95, "order": 1, "type": "question"},
    {"question": "What security certifications will you provide?", "original_text": "Vendor must provide security certifications", "extraction_confidence": 0.90, "order": 2, "type": "requirement"}
]`

const defaultCellLocalizationTemplate = `You are given the cells of a spreadsheet and a list of questions that were extracted from it. For each question, locate the cell that contains its original text, then predict which cell the answer should be written into. Answers usually go into the empty cell immediately to the right of the question, or into a designated response column.

Spreadsheet cells:
{{.CellListing}}

ORIGINAL TEXT TO LOCATE:
{{.OriginalTexts}}

Return your response as a JSON array where each item is an object with:
- "question_text": the question exactly as given above
- "answer_cell": the cell reference the answer should be written to (e.g., "B2")
- "cell_confidence": a confidence score from 0.0 to 1.0 for the predicted cell
- "reasoning": one sentence explaining the prediction

Response format:
[
    {"question_text": "What is your company size?", "answer_cell": "B1", "cell_confidence": 0.9, "reasoning": "The question sits in A1 and B1 is the empty adjacent response cell."}
]`

func render(tmplText, name string, data interface{}) (string, error) {
	tmpl, err := template.New(name).Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}
	return b.String(), nil
}
