package chat

import (
	"fmt"
	"strings"

	"github.com/axonworks/advisor-go/pkg/knowledge"
)

// NoContextPlaceholder replaces the context block when retrieval is disabled,
// fails or finds nothing.
const NoContextPlaceholder = "No additional context available."

const contextSlot = "{{context}}"

const systemPromptTemplate = `You are an AI/ML solutions advisor. You help teams decide whether and how machine learning can solve their problem, and which pre-trained models are a good starting point.

Work as a consultant running a short diagnostic interview:
- Ask one question at a time. Keep questions short and concrete.
- Gather four data points before recommending anything: the business problem, the data they have (type and volume), the industry or domain, and their constraints (latency, budget, deployment target).
- Once you have all four, give a diagnosis: the ML task type, a suggested approach, and the main risks.
- When a concrete model would help, call the searchModels tool with a focused query and, if clear, the matching task. Summarize the best options instead of listing raw results.
- If the tool reports an error, say so briefly and continue with general guidance.
- Be honest when ML is not the right tool.

Use the following reference material when it is relevant. Cite the source when you rely on it.

<context>
{{context}}
</context>`

// FormatContext renders passages as numbered blocks separated by blank lines.
func FormatContext(passages []knowledge.Passage) string {
	blocks := make([]string, 0, len(passages))
	for i, p := range passages {
		blocks = append(blocks, fmt.Sprintf("[%d] %s\nSource: %s", i+1, p.Text, p.Source))
	}
	return strings.Join(blocks, "\n\n")
}

// BuildSystemPrompt substitutes contextBlock into the system prompt template.
func BuildSystemPrompt(contextBlock string) string {
	if contextBlock == "" {
		contextBlock = NoContextPlaceholder
	}
	return strings.Replace(systemPromptTemplate, contextSlot, contextBlock, 1)
}
