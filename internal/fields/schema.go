// Package fields extracts structured fields from OCR text with a language model.
package fields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hyperjump/docreader/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var schemaFields = map[models.DocType][]string{
	models.DocTypeStatement:     {"accountNumber", "period", "avgBalance", "status", "confidence"},
	models.DocTypeInvoice:       {"invoiceNumber", "totalAmount", "status", "confidence"},
	models.DocTypeLoanAgreement: {"loanNumber", "principal", "status", "confidence"},
	models.DocTypeGeneric:       {"summary", "keyValues", "confidence"},
}

// FieldNames returns the fields requested for a doc type label. Unknown labels get the generic list.
func FieldNames(docType string) []string {
	names := schemaFields[models.SchemaDocType(docType)]
	return append([]string(nil), names...)
}

var (
	schemaMu       sync.Mutex
	compiledSchema = map[models.DocType]*jsonschema.Schema{}
)

// jsonSchemaFor builds the JSON Schema for a doc type: an object that must carry every field,
// where null is always accepted.
func jsonSchemaFor(dt models.DocType) map[string]any {
	props := map[string]any{}
	for _, name := range schemaFields[dt] {
		props[name] = map[string]any{}
	}
	if _, ok := props["confidence"]; ok {
		props["confidence"] = map[string]any{"type": []string{"number", "string", "null"}}
	}
	return map[string]any{
		"type":       "object",
		"required":   schemaFields[dt],
		"properties": props,
	}
}

func schemaFor(dt models.DocType) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := compiledSchema[dt]; ok {
		return s, nil
	}
	b, err := json.Marshal(jsonSchemaFor(dt))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	name := string(dt) + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	compiledSchema[dt] = s
	return s, nil
}

// Validate checks extracted fields against the doc type's schema. It only reports; callers
// keep the fields either way.
func Validate(docType string, fields map[string]any) error {
	s, err := schemaFor(models.SchemaDocType(docType))
	if err != nil {
		return err
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal fields: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("fields do not match schema: %w", err)
	}
	return nil
}
