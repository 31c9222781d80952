package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/docreader/internal/models"
)

func sampleHits() []models.SearchHit {
	return []models.SearchHit{
		{Distance: 0.12, Meta: models.EntryMeta{DocID: "doc-1", Filename: "acme.pdf", Preview: "ACME invoice\nTotal 42.00"}},
		{Distance: 0.9, Meta: models.EntryMeta{DocID: "doc-2", Filename: "bank.png", Preview: "Statement"}},
	}
}

func TestWriteSearchHits_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchHits(&buf, "invoice", sampleHits(), OutputJSON); err != nil {
		t.Fatalf("WriteSearchHits(json): %v", err)
	}
	var decoded []models.SearchHit
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Meta.DocID != "doc-1" || decoded[0].Distance != 0.12 {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestWriteSearchHits_JSON_emptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchHits(&buf, "q", nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty hits: got %s, want []", got)
	}
}

func TestWriteSearchHits_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchHits(&buf, "invoice", sampleHits(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results", "Rank: 1 | Distance: 0.1200", "ID: doc-1", "File: bank.png"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchHits_compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchHits(&buf, "invoice", sampleHits(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want one line per hit, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "ACME invoice Total 42.00") {
		t.Errorf("preview should be flattened to one line: %q", lines[0])
	}
}

func TestWriteVerifyResult(t *testing.T) {
	res := &models.VerifyResult{
		ID:              "doc-9",
		Filename:        "scan.pdf",
		DocType:         "invoice",
		FullText:        "héllo",
		ExtractedFields: map[string]any{"status": "unverified", "confidence": 0.0},
	}
	var buf bytes.Buffer
	if err := WriteVerifyResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"ID:       doc-9", "Status:   unverified", "Text:     5 characters", "confidence:"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteVerifyResult(&buf, &models.VerifyResult{ID: "x", ExtractedFields: map[string]any{"total": 1}}, OutputCompact); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(strings.TrimSpace(buf.String()), "extracted") {
		t.Errorf("compact output: %q", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	kw := uint64(3)
	s := &Status{Documents: 3, SemanticIndexSize: 3, KeywordIndexSize: &kw, Config: &StatusConfig{VectorIndexType: "memory", EmbeddingDimensions: 384}}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, s, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"documents:            3", "keyword_index_size:   3", "vector_index_type:    memory", "embedding_dims:       384"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, ok := range []string{"text", "json", "compact"} {
		if _, err := ParseOutputFormat(ok); err != nil {
			t.Errorf("ParseOutputFormat(%q): %v", ok, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("ParseOutputFormat(yaml) should fail")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s      string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello world", 5, "hello..."},
		{"", 5, ""},
		{"abc", 0, "abc"},
		{"ééééé", 2, "éé..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.s, tt.maxLen); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
		}
	}
}
