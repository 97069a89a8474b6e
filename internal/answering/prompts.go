package answering

import (
	"fmt"
	"strings"
	"text/template"
)

// The answer prompt is replaceable configuration so the grounding rules can
// be tuned without a rebuild.
const DefaultAnswerTemplate = `You are an AI assistant helping to answer questions based on document content.

Context from relevant documents:
{{.Context}}

Question: {{.Question}}

Instructions:
- Provide a clear, concise answer based on the context provided
- Report status "answered" when the context fully supports the answer, "partiallyAnswered" when it supports only part of it, and "notAnswered" when the context does not contain the needed information
- Be specific and reference the relevant information from the context
- Keep your answer focused and professional`

func renderPrompt(tmplText, question, contextBlock string) (string, error) {
	tmpl, err := template.New("answer").Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("parse answer template: %w", err)
	}
	var b strings.Builder
	err = tmpl.Execute(&b, struct {
		Context  string
		Question string
	}{Context: contextBlock, Question: question})
	if err != nil {
		return "", fmt.Errorf("render answer template: %w", err)
	}
	return b.String(), nil
}
