// Package format knows what the columns of an upload mean: the closed set of
// semantic fields, the registry of known export presets, and the regex-based
// auto-mapper used when no preset matches.
package format

import "strings"

// SemanticField is the meaning assigned to a source column.
type SemanticField string

const (
	FieldDate          SemanticField = "date"
	FieldVendor        SemanticField = "vendor"
	FieldAmount        SemanticField = "amount"
	FieldOutflow       SemanticField = "outflow"
	FieldInflow        SemanticField = "inflow"
	FieldDescription   SemanticField = "description"
	FieldCategory      SemanticField = "category"
	FieldCategoryGroup SemanticField = "category_group"
	FieldAccount       SemanticField = "account"
	FieldIgnore        SemanticField = "ignore"
)

// Fields lists every semantic field other than ignore.
var Fields = []SemanticField{
	FieldDate,
	FieldVendor,
	FieldAmount,
	FieldOutflow,
	FieldInflow,
	FieldDescription,
	FieldCategory,
	FieldCategoryGroup,
	FieldAccount,
}

// ParseField normalizes s into a SemanticField. Unknown values are ignore.
func ParseField(s string) SemanticField {
	f := SemanticField(strings.ToLower(strings.TrimSpace(s)))
	if f.Valid() {
		return f
	}
	return FieldIgnore
}

// Valid reports whether f is one of the known fields, ignore included.
func (f SemanticField) Valid() bool {
	if f == FieldIgnore {
		return true
	}
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// ColumnMapping binds one source header to a semantic field.
type ColumnMapping struct {
	SourceHeader string        `json:"sourceHeader"`
	Field        SemanticField `json:"field"`
}

// Index returns the position of the first header bound to field, or -1.
// Headers are compared case-insensitively after trimming.
func Index(headers []string, mappings []ColumnMapping, field SemanticField) int {
	for _, m := range mappings {
		if m.Field != field {
			continue
		}
		for i, h := range headers {
			if normalizeHeader(h) == normalizeHeader(m.SourceHeader) {
				return i
			}
		}
	}
	return -1
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
