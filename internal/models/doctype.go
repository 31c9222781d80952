package models

import "strings"

// DocType labels the kind of document submitted for verification.
type DocType string

const (
	DocTypeStatement     DocType = "statement"
	DocTypeInvoice       DocType = "invoice"
	DocTypeLoanAgreement DocType = "loan_agreement"
	DocTypeGeneric       DocType = "generic"
)

// KnownDocTypes lists the doc types that have a dedicated field schema.
var KnownDocTypes = []DocType{DocTypeStatement, DocTypeInvoice, DocTypeLoanAgreement, DocTypeGeneric}

// SchemaDocType maps a caller-supplied label onto a known doc type.
// Unrecognized labels map to DocTypeGeneric; the label itself is still stored verbatim.
func SchemaDocType(label string) DocType {
	l := DocType(strings.TrimSpace(label))
	for _, dt := range KnownDocTypes {
		if l == dt {
			return dt
		}
	}
	return DocTypeGeneric
}
