package format

// Preset describes a known export layout. Presets are plain data: adding a
// format is adding an entry to registry.
type Preset struct {
	ID                       string          `json:"id"`
	Version                  int             `json:"version"`
	DisplayName              string          `json:"displayName"`
	DetectHeaders            []string        `json:"detectHeaders"`
	ColumnMappings           []ColumnMapping `json:"columnMappings"`
	SupportsMultipleAccounts bool            `json:"supportsMultipleAccounts"`
	StartingBalanceMarker    string          `json:"startingBalanceMarker,omitempty"`
}

// MappingsFor returns one mapping per header, using the preset's binding for
// headers it knows and ignore for the rest.
func (p *Preset) MappingsFor(headers []string) []ColumnMapping {
	known := make(map[string]SemanticField, len(p.ColumnMappings))
	for _, m := range p.ColumnMappings {
		key := normalizeHeader(m.SourceHeader)
		if _, seen := known[key]; !seen {
			known[key] = m.Field
		}
	}

	mappings := make([]ColumnMapping, len(headers))
	for i, h := range headers {
		field, ok := known[normalizeHeader(h)]
		if !ok {
			field = FieldIgnore
		}
		mappings[i] = ColumnMapping{SourceHeader: h, Field: field}
	}
	return mappings
}

func m(header string, field SemanticField) ColumnMapping {
	return ColumnMapping{SourceHeader: header, Field: field}
}

// registry is the ordered preset list consulted by DetectFormat. More
// specific layouts come first.
var registry = []Preset{
	{
		ID:          "ynab",
		Version:     1,
		DisplayName: "YNAB",
		DetectHeaders: []string{
			"Account", "Flag", "Date", "Payee", "Category Group/Category",
			"Category Group", "Category", "Memo", "Outflow", "Inflow", "Cleared",
		},
		ColumnMappings: []ColumnMapping{
			m("Account", FieldAccount),
			m("Flag", FieldIgnore),
			m("Date", FieldDate),
			m("Payee", FieldVendor),
			m("Category Group/Category", FieldIgnore),
			m("Category Group", FieldCategoryGroup),
			m("Category", FieldCategory),
			m("Memo", FieldDescription),
			m("Outflow", FieldOutflow),
			m("Inflow", FieldInflow),
			m("Cleared", FieldIgnore),
		},
		SupportsMultipleAccounts: true,
		StartingBalanceMarker:    "Starting Balance",
	},
	{
		ID:          "ynab4",
		Version:     1,
		DisplayName: "YNAB 4",
		DetectHeaders: []string{
			"Account", "Date", "Payee", "Master Category", "Sub Category",
			"Memo", "Outflow", "Inflow",
		},
		ColumnMappings: []ColumnMapping{
			m("Account", FieldAccount),
			m("Flag", FieldIgnore),
			m("Check Number", FieldIgnore),
			m("Date", FieldDate),
			m("Payee", FieldVendor),
			m("Category", FieldIgnore),
			m("Master Category", FieldCategoryGroup),
			m("Sub Category", FieldCategory),
			m("Memo", FieldDescription),
			m("Outflow", FieldOutflow),
			m("Inflow", FieldInflow),
			m("Cleared", FieldIgnore),
			m("Running Balance", FieldIgnore),
		},
		SupportsMultipleAccounts: true,
		StartingBalanceMarker:    "Starting Balance",
	},
	{
		ID:            "monzo",
		Version:       1,
		DisplayName:   "Monzo",
		DetectHeaders: []string{"Transaction ID", "Date", "Name", "Emoji", "Category", "Amount"},
		ColumnMappings: []ColumnMapping{
			m("Date", FieldDate),
			m("Name", FieldVendor),
			m("Category", FieldCategory),
			m("Amount", FieldAmount),
			m("Notes and #tags", FieldDescription),
		},
	},
	{
		ID:            "starling",
		Version:       1,
		DisplayName:   "Starling Bank",
		DetectHeaders: []string{"Date", "Counter Party", "Reference", "Spending Category"},
		ColumnMappings: []ColumnMapping{
			m("Date", FieldDate),
			m("Counter Party", FieldVendor),
			m("Reference", FieldDescription),
			m("Amount (GBP)", FieldAmount),
			m("Spending Category", FieldCategory),
		},
	},
	{
		ID:            "revolut",
		Version:       1,
		DisplayName:   "Revolut",
		DetectHeaders: []string{"Type", "Product", "Started Date", "Completed Date", "Description", "Amount"},
		ColumnMappings: []ColumnMapping{
			m("Completed Date", FieldDate),
			m("Description", FieldVendor),
			m("Amount", FieldAmount),
		},
	},
	{
		ID:            "nationwide",
		Version:       1,
		DisplayName:   "Nationwide",
		DetectHeaders: []string{"Date", "Transaction type", "Description", "Paid out", "Paid in"},
		ColumnMappings: []ColumnMapping{
			m("Date", FieldDate),
			m("Description", FieldVendor),
			m("Transaction type", FieldDescription),
			m("Paid out", FieldOutflow),
			m("Paid in", FieldInflow),
		},
	},
}

// Presets returns a copy of the registry in detection order.
func Presets() []Preset {
	out := make([]Preset, len(registry))
	copy(out, registry)
	return out
}

// PresetByID looks a preset up by its identifier.
func PresetByID(id string) (*Preset, bool) {
	for i := range registry {
		if registry[i].ID == id {
			p := registry[i]
			return &p, true
		}
	}
	return nil, false
}

// DetectFormat returns the first preset whose detect headers are all present
// in headers. Comparison ignores case, surrounding whitespace and order;
// extra headers in the input do not prevent a match.
func DetectFormat(headers []string) (*Preset, bool) {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[normalizeHeader(h)] = struct{}{}
	}

	for i := range registry {
		if containsAll(present, registry[i].DetectHeaders) {
			p := registry[i]
			return &p, true
		}
	}
	return nil, false
}

func containsAll(present map[string]struct{}, required []string) bool {
	if len(required) == 0 {
		return false
	}
	for _, r := range required {
		if _, ok := present[normalizeHeader(r)]; !ok {
			return false
		}
	}
	return true
}
