package fields

import (
	"encoding/json"
	"io"
	"strings"
)

// Status values carried by the degraded result.
const (
	StatusUnverified = "unverified"
)

// Degraded returns the sentinel stored when the model output cannot be parsed.
func Degraded() map[string]any {
	return map[string]any{"status": StatusUnverified, "confidence": 0.0}
}

// LenientParse pulls a JSON object out of free-form model output. It takes the span from the
// first '{' to the last '}' inclusive and decodes it as exactly one object. Numbers are kept as
// json.Number. The boolean is false when no object could be decoded.
func LenientParse(raw string) (map[string]any, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(raw[start : end+1]))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil || out == nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return out, true
}
