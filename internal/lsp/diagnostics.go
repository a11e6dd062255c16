package lsp

// DiagnosticStore holds published diagnostics per document. Each
// publish replaces the previous list for that URI; an empty publish
// clears it. The store is owned by the main goroutine.
type DiagnosticStore struct {
	byURI map[DocumentURI][]Diagnostic
}

// NewDiagnosticStore creates an empty store.
func NewDiagnosticStore() *DiagnosticStore {
	return &DiagnosticStore{byURI: make(map[DocumentURI][]Diagnostic)}
}

// Set replaces the diagnostics for a document.
func (d *DiagnosticStore) Set(uri DocumentURI, diags []Diagnostic) {
	if len(diags) == 0 {
		delete(d.byURI, uri)
		return
	}
	d.byURI[uri] = diags
}

// Get returns the diagnostics for a document.
func (d *DiagnosticStore) Get(uri DocumentURI) []Diagnostic {
	return d.byURI[uri]
}

// ForLine returns the diagnostics covering a 0-based line.
func (d *DiagnosticStore) ForLine(uri DocumentURI, line int) []Diagnostic {
	var out []Diagnostic
	for _, diag := range d.byURI[uri] {
		if line >= diag.Range.Start.Line && line <= diag.Range.End.Line {
			out = append(out, diag)
		}
	}
	return out
}

// Counts returns the number of errors and warnings for a document.
func (d *DiagnosticStore) Counts(uri DocumentURI) (errors, warnings int) {
	for _, diag := range d.byURI[uri] {
		switch diag.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		}
	}
	return errors, warnings
}

// Clear drops all diagnostics, for session reset.
func (d *DiagnosticStore) Clear() {
	d.byURI = make(map[DocumentURI][]Diagnostic)
}

// ClearURI drops diagnostics for one document, for document switches.
func (d *DiagnosticStore) ClearURI(uri DocumentURI) {
	delete(d.byURI, uri)
}

// Len returns the number of documents with diagnostics.
func (d *DiagnosticStore) Len() int {
	return len(d.byURI)
}
