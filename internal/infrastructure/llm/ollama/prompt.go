package ollama

import (
	"fmt"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

const visionPrompt = "Describe this image in detail, including all visible elements, text, charts, diagrams, and their relationships."

func buildAnswerPrompt(question string, bundle *domain.ContextBundle) string {
	var context string
	if bundle != nil {
		context = bundle.Context
	}

	return fmt.Sprintf(`Answer the user question only from the context below.
Every source is labeled with its document and page. Cite the labels you used.
If the context is insufficient, say it directly.

Question:
%s

Context:
%s
`, question, context)
}
