package document

// Page is one extracted page of a revision. Immutable once extracted.
type Page struct {
	Index   int    // Position within the revision (0-based)
	Text    string // Normalized page text
	Hash    string // Content hash of the normalized text
	Section string // Enclosing section name from the revision outline
	Form    string // Form/label name parsed from the page, if any
}

// Revision is one full version of the document as an ordered page
// sequence. Immutable.
type Revision struct {
	ID       string // Version identifier, e.g. "1.0.0"
	Filename string
	Pages    []Page
}

// NumPages returns the page count.
func (r *Revision) NumPages() int {
	return len(r.Pages)
}

// SectionPages returns the indices (0-based) of all pages whose
// section name equals name, in order.
func (r *Revision) SectionPages(name string) []int {
	var idx []int
	for i, p := range r.Pages {
		if p.Section == name {
			idx = append(idx, i)
		}
	}
	return idx
}

// Sections returns the distinct section names in first-appearance
// order, skipping pages with no section.
func (r *Revision) Sections() []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range r.Pages {
		if p.Section == "" || seen[p.Section] {
			continue
		}
		seen[p.Section] = true
		names = append(names, p.Section)
	}
	return names
}
