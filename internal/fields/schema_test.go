package fields

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldNames(t *testing.T) {
	assert.Equal(t, []string{"accountNumber", "period", "avgBalance", "status", "confidence"}, FieldNames("statement"))
	assert.Equal(t, []string{"invoiceNumber", "totalAmount", "status", "confidence"}, FieldNames("invoice"))
	assert.Equal(t, []string{"loanNumber", "principal", "status", "confidence"}, FieldNames("loan_agreement"))
	assert.Equal(t, FieldNames("generic"), FieldNames("payslip"))
}

func TestValidate(t *testing.T) {
	ok := map[string]any{
		"invoiceNumber": "INV-1",
		"totalAmount":   json.Number("10"),
		"status":        nil,
		"confidence":    0.9,
	}
	require.NoError(t, Validate("invoice", ok))

	missing := map[string]any{"invoiceNumber": "INV-1"}
	assert.Error(t, Validate("invoice", missing))

	badConfidence := map[string]any{"summary": "x", "keyValues": nil, "confidence": true}
	assert.Error(t, Validate("generic", badConfidence))
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("ACME BANK\nBalance 100", "statement")
	assert.Contains(t, p, "statement document")
	assert.Contains(t, p, `["accountNumber","period","avgBalance","status","confidence"]`)
	assert.Contains(t, p, "Return ONLY valid JSON")
	assert.Contains(t, p, "return null")
	assert.True(t, strings.HasSuffix(p, "ACME BANK\nBalance 100\n"))

	unknown := BuildPrompt("t", "payslip")
	assert.Contains(t, unknown, "payslip document")
	assert.Contains(t, unknown, `["summary","keyValues","confidence"]`)
}
