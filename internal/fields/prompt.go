package fields

import (
	"encoding/json"
	"fmt"
)

// BuildPrompt renders the extraction instruction for text of the given doc type.
func BuildPrompt(text, docType string) string {
	names, _ := json.Marshal(FieldNames(docType))
	return fmt.Sprintf(`
You are a JSON extractor. Input is OCR text from a %s document.

Return ONLY valid JSON with fields:
%s

If something is missing, return null.

OCR TEXT:
%s
`, docType, names, text)
}
