package revision

import (
	"strconv"
	"strings"
	"time"

	"github.com/FocuswithJustin/redline/core/ooxml"
)

// insertionIDOffset keeps insertion-marker ids out of the deletion id space
// within one run.
const insertionIDOffset = 1000

// Applicator mutates one parsed document tree, applying tracked edits on
// behalf of a single author. It is single-use and not safe for concurrent
// access; every apply call builds its own.
type Applicator struct {
	root   *ooxml.Node // w:document element
	author string
	now    func() time.Time

	revisionID  int
	annotations []annotation
	outcomes    []Outcome
}

// NewApplicator wraps a parsed document root for editing.
func NewApplicator(root *ooxml.Node, author string) *Applicator {
	return &Applicator{
		root:       root,
		author:     author,
		now:        time.Now,
		revisionID: 1,
	}
}

func (a *Applicator) timestamp() string {
	return a.now().Format(time.RFC3339)
}

// applyReplace locates oldText and splices in: the unmatched head of the
// first affected segment, a deletion marker with one sub-run per affected
// segment (each keeping its own formatting), the insertion of newText, and
// the unmatched tail of the last affected segment. Returns false when
// oldText cannot be located.
func (a *Applicator) applyReplace(oldText, newText string) bool {
	m := locate(a.root, oldText)
	if m == nil {
		return false
	}
	a.spliceRevision(m, a.insertionElements(newText, m.affected, m.affected[0].rPr))
	return true
}

// applyDelete is applyReplace without the insertion step.
func (a *Applicator) applyDelete(text string) bool {
	m := locate(a.root, text)
	if m == nil {
		return false
	}
	a.spliceRevision(m, nil)
	return true
}

// spliceRevision removes the affected elements and inserts, at the same
// position: head remainder, deletion marker, optional insertion elements,
// tail remainder.
func (a *Applicator) spliceRevision(m *match, insertions []*ooxml.Node) {
	first := m.affected[0]
	last := m.affected[len(m.affected)-1]
	firstIdx := ooxml.ChildIndex(m.paragraph, first.element)

	var newElements []*ooxml.Node
	if first.before != "" {
		newElements = append(newElements, a.segmentElement(first.before, first.segment))
	}
	newElements = append(newElements, a.newDeletion(m.affected))
	newElements = append(newElements, insertions...)
	if last.after != "" {
		newElements = append(newElements, a.segmentElement(last.after, last.segment))
	}

	// Affected elements can repeat when a hyperlink contributed several
	// inner runs; remove each source element once, in order.
	seen := make(map[*ooxml.Node]bool)
	for _, af := range m.affected {
		if !seen[af.element] {
			seen[af.element] = true
			ooxml.Detach(af.element)
		}
	}

	for i, el := range newElements {
		ooxml.InsertChildAt(m.paragraph, firstIdx+i, el)
	}
	a.revisionID++
}

// applyInsert locates anchor context and inserts newText immediately after
// it. A match ending at a segment boundary inserts between elements; a match
// ending mid-segment splits that segment around the insertion marker.
func (a *Applicator) applyInsert(contextText, newText string) bool {
	m := locate(a.root, contextText)
	if m == nil {
		return false
	}

	last := m.affected[len(m.affected)-1]
	lastIdx := ooxml.ChildIndex(m.paragraph, last.element)
	ins := a.newInsertion(newText, last.rPr)

	if last.after == "" {
		ooxml.InsertChildAt(m.paragraph, lastIdx+1, ins)
	} else {
		ooxml.Detach(last.element)
		head := a.segmentElement(runeSlice(last.text, 0, last.clipEnd), last.segment)
		tail := a.segmentElement(last.after, last.segment)
		ooxml.InsertChildAt(m.paragraph, lastIdx, head)
		ooxml.InsertChildAt(m.paragraph, lastIdx+1, ins)
		ooxml.InsertChildAt(m.paragraph, lastIdx+2, tail)
	}

	a.revisionID++
	return true
}

// segmentElement rebuilds the structural element for a remainder of seg
// carrying text. Hyperlink segments are rebuilt by cloning the original
// hyperlink (preserving r:id and any attribute this package never
// interprets) and replacing its children; plain segments become a w:r.
func (a *Applicator) segmentElement(text string, seg segment) *ooxml.Node {
	if seg.kind == hyperlinkRun && seg.element != nil {
		return hyperlinkWithRun(seg.element, ooxml.NewRun(text, seg.rPr))
	}
	return ooxml.NewRun(text, seg.rPr)
}

// hyperlinkWithRun clones original, clears the copy's children, and installs
// child as the only content.
func hyperlinkWithRun(original, child *ooxml.Node) *ooxml.Node {
	hl := ooxml.Clone(original)
	hl.FirstChild = nil
	hl.LastChild = nil
	ooxml.AppendChild(hl, child)
	return hl
}

// newDeletion builds a w:del wrapping one w:delText sub-run per affected
// segment, each keeping that segment's own formatting. A deletion spanning a
// bold run and a plain run therefore records which part was bold.
func (a *Applicator) newDeletion(affected []affectedSegment) *ooxml.Node {
	del := ooxml.NewWordEl("del")
	ooxml.SetAttr(del, "w", "id", strconv.Itoa(a.revisionID))
	ooxml.SetAttr(del, "w", "author", a.author)
	ooxml.SetAttr(del, "w", "date", a.timestamp())

	for _, seg := range affected {
		if seg.matched == "" {
			continue
		}
		r := ooxml.NewWordEl("r")
		if seg.rPr != nil {
			ooxml.AppendChild(r, ooxml.Clone(seg.rPr))
		}
		delText := ooxml.NewWordEl("delText")
		ooxml.SetAttr(delText, "xml", "space", "preserve")
		ooxml.AppendChild(delText, ooxml.NewText(seg.matched))
		ooxml.AppendChild(r, delText)
		ooxml.AppendChild(del, r)
	}
	return del
}

// newInsertion builds a w:ins carrying text, with formatting cloned from rPr
// so inserted text keeps the style of the text it stands next to.
func (a *Applicator) newInsertion(text string, rPr *ooxml.Node) *ooxml.Node {
	ins := ooxml.NewWordEl("ins")
	ooxml.SetAttr(ins, "w", "id", strconv.Itoa(a.revisionID+insertionIDOffset))
	ooxml.SetAttr(ins, "w", "author", a.author)
	ooxml.SetAttr(ins, "w", "date", a.timestamp())
	ooxml.AppendChild(ins, ooxml.NewRun(text, rPr))
	return ins
}

// insertionElements builds the insertion side of a replacement. When an
// affected hyperlink's matched text reappears verbatim in newText, that
// portion is re-wrapped in a clone of the hyperlink with the insertion
// inside it (w:hyperlink > w:ins > w:r is valid OOXML), so the link survives
// the rewrite. Everything else becomes flat insertions.
func (a *Applicator) insertionElements(newText string, affected []affectedSegment, rPr *ooxml.Node) []*ooxml.Node {
	type hyperlinkPart struct {
		text    string
		element *ooxml.Node
		rPr     *ooxml.Node
	}
	var hyperlinks []hyperlinkPart
	for _, seg := range affected {
		if seg.kind == hyperlinkRun && seg.matched != "" {
			hyperlinks = append(hyperlinks, hyperlinkPart{
				text:    seg.matched,
				element: seg.element,
				rPr:     seg.rPr,
			})
		}
	}

	if len(hyperlinks) == 0 {
		return []*ooxml.Node{a.newInsertion(newText, rPr)}
	}

	var elements []*ooxml.Node
	remaining := newText
	for _, hl := range hyperlinks {
		idx := strings.Index(remaining, hl.text)
		if idx < 0 {
			// The rewrite dropped this link's anchor text; the link is lost.
			continue
		}
		if before := remaining[:idx]; before != "" {
			elements = append(elements, a.newInsertion(before, rPr))
		}
		elements = append(elements, hyperlinkWithRun(hl.element, a.newInsertion(hl.text, hl.rPr)))
		remaining = remaining[idx+len(hl.text):]
	}
	if remaining != "" {
		elements = append(elements, a.newInsertion(remaining, rPr))
	}

	if len(elements) == 0 {
		return []*ooxml.Node{a.newInsertion(newText, rPr)}
	}
	return elements
}
