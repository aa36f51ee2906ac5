package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reliabledashboard/partsrelay/internal/catalog"
	"github.com/reliabledashboard/partsrelay/internal/llm"
)

const systemPrompt = `You are a product search assistant for an appliance-parts distributor. Answer the sales team's question using the catalog sample provided. Your output must be ONLY a single JSON object with exactly these fields:

{"answer": string, "productSkus": [string], "suggestions": [string]}

Rules:
- "answer" is a short, factual reply in plain text.
- "productSkus" lists SKUs from the catalog sample that answer the question, best match first. Use [] when none fit. Never invent SKUs.
- "suggestions" holds up to 3 short follow-up searches the user could run next.
- Do not include any other text, prose, or markdown.`

// BuildPrompt embeds the query and the projected catalog sample in a JSON
// completion request.
func BuildPrompt(query string, sample []catalog.Projection) llm.Prompt {
	if sample == nil {
		sample = []catalog.Projection{}
	}
	data, err := json.Marshal(sample)
	if err != nil {
		data = []byte("[]")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[Catalog Sample]\n%s\n\n", data)
	fmt.Fprintf(&sb, "[Question]\n%s", query)

	return llm.Prompt{
		System: systemPrompt,
		User:   sb.String(),
		JSON:   true,
	}
}

// sampleOf projects the first n products.
func sampleOf(products []catalog.Product, n int) []catalog.Projection {
	if n > len(products) {
		n = len(products)
	}
	out := make([]catalog.Projection, 0, n)
	for _, p := range products[:n] {
		out = append(out, p.Project())
	}
	return out
}
