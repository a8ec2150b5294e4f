package prompt

import (
	"strings"

	"github.com/dndsage/oracle/services/assembler"
)

// Directive lines the generation provider is steered by. The say-you-don't-
// know directive is the single mechanism preventing fabricated answers: it
// is a textual contract with the provider, not an enforced guarantee.
const (
	persona = "You are Sage, a knowledgeable assistant for Dungeons & Dragons 5th Edition rules."

	DirectiveGrounding   = "1. Base your answer STRICTLY on the numbered context entries below"
	DirectiveDontKnow    = `2. If the answer is not in the context, say "I don't have that information in my current knowledge base"`
	DirectiveCitations   = `3. Cite context entries by their number when making specific claims (e.g., "According to [1]...")`
	DirectiveConciseness = "4. Be concise but complete"

	emptyContextNote = "(no relevant context was found for this question)"
)

// Service deterministically assembles guardrail prompts.
type Service struct{}

// New creates a new prompt builder.
func New() *Service {
	return &Service{}
}

// Build wraps a question and its context block into the instruction prompt
// sent to the generation provider. The layout is fixed: directives, the
// numbered context verbatim, then the question. An empty block still
// carries the don't-know directive so the provider refuses instead of
// answering from background knowledge.
func (s *Service) Build(question string, block *assembler.ContextBlock) string {
	var sb strings.Builder

	sb.WriteString(persona)
	sb.WriteString("\n\n")
	sb.WriteString("Your role is to answer questions about D&D rules, spells, and monsters using ONLY the information provided in the context below.\n\n")
	sb.WriteString("IMPORTANT RULES:\n")
	sb.WriteString(DirectiveGrounding)
	sb.WriteString("\n")
	sb.WriteString(DirectiveDontKnow)
	sb.WriteString("\n")
	sb.WriteString(DirectiveCitations)
	sb.WriteString("\n")
	sb.WriteString(DirectiveConciseness)
	sb.WriteString("\n\n")

	sb.WriteString("CONTEXT:\n")
	if block == nil || block.Empty() {
		sb.WriteString(emptyContextNote)
	} else {
		sb.WriteString(block.Text)
	}
	sb.WriteString("\n\n")

	sb.WriteString("QUESTION: ")
	sb.WriteString(question)
	sb.WriteString("\n\nANSWER:")

	return sb.String()
}
