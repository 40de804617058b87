// Package prompt renders retrieved chunks into the grounded prompt sent to
// the completion provider.
package prompt

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docqa/internal/retrieval"
)

// ContextChars is how many characters of each chunk go into the context.
const ContextChars = 500

// SystemInstruction is sent as the system message before every prompt.
const SystemInstruction = "You are a helpful assistant that answers questions based only on the provided context. " +
	"If the context doesn't contain enough information to answer the question, say so."

const instructions = `Based on the following document context, please provide a comprehensive and well-formatted answer to the user's question.

Instructions:
- Use only information from the provided context
- Format your response with clear headings, bullet points, or numbered lists when appropriate
- If the context doesn't contain enough information, clearly state this
- Be thorough but concise
- Use markdown formatting for better readability`

// BuildContext renders ranked results in rank order, one entry per result.
func BuildContext(results []retrieval.Result) string {
	entries := make([]string, len(results))
	for i, r := range results {
		entries[i] = fmt.Sprintf("Page %d: %s...", r.EstimatedPage, Truncate(r.Text, ContextChars))
	}
	return strings.Join(entries, "\n\n")
}

// Build wraps the context and question in the answering instructions.
func Build(question, context string) string {
	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\nContext:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nUser Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nPlease provide a well-formatted answer:")
	return sb.String()
}

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Preview shortens s to n characters, adding an ellipsis only when cut.
func Preview(s string, n int) string {
	t := Truncate(s, n)
	if len(t) < len(s) {
		return t + "..."
	}
	return s
}
