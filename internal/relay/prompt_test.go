package relay

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/reliabledashboard/partsrelay/internal/catalog"
)

func TestBuildPrompt(t *testing.T) {
	sample := sampleOf(testCatalog(), 2)
	p := BuildPrompt("cheap igniter", sample)

	if !p.JSON {
		t.Error("prompt should request JSON output")
	}
	if !strings.Contains(p.System, `"productSkus"`) {
		t.Error("system prompt should describe the reply schema")
	}

	_, after, ok := strings.Cut(p.User, "[Catalog Sample]\n")
	if !ok {
		t.Fatalf("user prompt missing catalog sample:\n%s", p.User)
	}
	sampleJSON, question, ok := strings.Cut(after, "\n\n[Question]\n")
	if !ok {
		t.Fatalf("user prompt missing question:\n%s", p.User)
	}
	if question != "cheap igniter" {
		t.Errorf("question = %q", question)
	}

	var got []map[string]any
	if err := json.Unmarshal([]byte(sampleJSON), &got); err != nil {
		t.Fatalf("sample is not JSON: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("sample has %d products, want 2", len(got))
	}
	for _, key := range []string{"sku", "name", "category", "price", "in_stock"} {
		if _, ok := got[0][key]; !ok {
			t.Errorf("projection missing %q", key)
		}
	}
	if _, ok := got[0]["manufacturer"]; ok {
		t.Error("projection should not carry manufacturer")
	}
}

func TestBuildPrompt_EmptySample(t *testing.T) {
	p := BuildPrompt("q", nil)
	if !strings.Contains(p.User, "[Catalog Sample]\n[]") {
		t.Errorf("empty sample should render as []:\n%s", p.User)
	}
}

func TestSampleOf(t *testing.T) {
	products := testCatalog()
	if got := sampleOf(products, 10); len(got) != len(products) {
		t.Errorf("sampleOf(10) = %d, want %d", len(got), len(products))
	}
	got := sampleOf(products, 1)
	want := catalog.Projection{SKU: "WP3149400", Name: "Range Burner Igniter", Category: "Range", Price: products[0].Price, InStock: true}
	if len(got) != 1 || got[0] != want {
		t.Errorf("sampleOf(1) = %+v", got)
	}
}
