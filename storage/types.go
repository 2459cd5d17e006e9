package storage

// Binding is one RDF term in a SPARQL JSON result row.
type Binding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// SparqlResult contains the variables and rows of a SELECT query. Unbound
// variables are absent from a row.
type SparqlResult struct {
	Vars     []string             `json:"vars"`
	Bindings []map[string]Binding `json:"bindings"`
	Debug    string               `json:"debug,omitempty"`
}

// Value returns the lexical value of a variable in a row.
func (r SparqlResult) Value(row int, variable string) (string, bool) {
	if row < 0 || row >= len(r.Bindings) {
		return "", false
	}
	b, ok := r.Bindings[row][variable]
	return b.Value, ok
}

// Len is the number of result rows.
func (r SparqlResult) Len() int {
	return len(r.Bindings)
}

// DatasetInfo summarizes a dataset for the metadata endpoints.
type DatasetInfo struct {
	UUID          string `json:"uuid"`
	PortalURI     string `json:"portal-uri,omitempty"`
	TotalSubjects int    `json:"total-subjects"`
}
