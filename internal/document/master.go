package document

// MasterPage is a committed page of the consolidated document with
// its provenance.
type MasterPage struct {
	Text       string
	Hash       string
	TrackerKey string // Normalized section key, empty for unbookmarked pages
	Version    int    // Version number within the tracker
	SourceID   string // Revision the page came from
	SourcePage int    // Page number in the source revision (1-based)
	Section    string // Section name as seen in the source revision
}

// Master is the single running consolidated page sequence. Pages are
// only ever inserted, never deleted. The backing store is a blocked
// sequence (a flat list of bounded chunks) so mid-document insertion
// shifts one chunk plus the chunk directory instead of the whole page
// array.
type Master struct {
	blocks []*block
	count  int
}

type block struct {
	pages []MasterPage
}

// Chunk sizing: blocks split at splitAt and are created at most
// targetSize long, keeping per-insert copying bounded.
const (
	targetSize = 64
	splitAt    = 128
)

// NewMaster returns an empty master document.
func NewMaster() *Master {
	return &Master{}
}

// Len returns the total page count.
func (m *Master) Len() int {
	return m.count
}

// Append adds pages at the end of the document.
func (m *Master) Append(pages ...MasterPage) {
	for len(pages) > 0 {
		n := len(pages)
		if n > targetSize {
			n = targetSize
		}
		b := &block{pages: make([]MasterPage, n)}
		copy(b.pages, pages[:n])
		m.blocks = append(m.blocks, b)
		m.count += n
		pages = pages[n:]
	}
}

// Insert places pages so that the first inserted page ends up at
// position pos (0-based); existing pages from pos onward shift right.
// pos == Len() is equivalent to Append.
func (m *Master) Insert(pos int, pages ...MasterPage) {
	if len(pages) == 0 {
		return
	}
	if pos >= m.count {
		m.Append(pages...)
		return
	}
	if pos < 0 {
		pos = 0
	}

	bi, off := m.locate(pos)
	b := m.blocks[bi]

	merged := make([]MasterPage, 0, len(b.pages)+len(pages))
	merged = append(merged, b.pages[:off]...)
	merged = append(merged, pages...)
	merged = append(merged, b.pages[off:]...)
	b.pages = merged
	m.count += len(pages)

	if len(b.pages) > splitAt {
		m.splitBlock(bi)
	}
}

// Page returns the page at position i (0-based).
func (m *Master) Page(i int) MasterPage {
	bi, off := m.locate(i)
	return m.blocks[bi].pages[off]
}

// Range returns a copy of pages [start, end] using 1-based inclusive
// bounds, matching how version records address the document.
func (m *Master) Range(start, end int) []MasterPage {
	if start < 1 || end > m.count || start > end {
		return nil
	}
	out := make([]MasterPage, 0, end-start+1)
	for i := start - 1; i < end; i++ {
		out = append(out, m.Page(i))
	}
	return out
}

// All returns every page in order.
func (m *Master) All() []MasterPage {
	out := make([]MasterPage, 0, m.count)
	for _, b := range m.blocks {
		out = append(out, b.pages...)
	}
	return out
}

// locate finds the block index and offset holding position i.
func (m *Master) locate(i int) (int, int) {
	if i < 0 || i >= m.count {
		panic("document: position out of range")
	}
	for bi, b := range m.blocks {
		if i < len(b.pages) {
			return bi, i
		}
		i -= len(b.pages)
	}
	panic("document: inconsistent block count")
}

// splitBlock breaks an oversized block into target-sized pieces.
func (m *Master) splitBlock(bi int) {
	src := m.blocks[bi].pages
	var pieces []*block
	for len(src) > 0 {
		n := len(src)
		if n > targetSize {
			n = targetSize
		}
		nb := &block{pages: make([]MasterPage, n)}
		copy(nb.pages, src[:n])
		pieces = append(pieces, nb)
		src = src[n:]
	}
	rest := make([]*block, 0, len(m.blocks)-1+len(pieces))
	rest = append(rest, m.blocks[:bi]...)
	rest = append(rest, pieces...)
	rest = append(rest, m.blocks[bi+1:]...)
	m.blocks = rest
}
