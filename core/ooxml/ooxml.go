// Package ooxml provides a mutable DOM layer for WordprocessingML parts.
// It wraps github.com/antchfx/xmlquery behind splice-oriented primitives:
// paragraph editing is modeled as removing N children and inserting M new
// ones at the same position, so sibling-pointer surgery lives here and
// nowhere else.
//
// Security note: xmlquery parses with Go's encoding/xml, which does not
// fetch external entities, so crafted documents cannot trigger XXE.
package ooxml

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/redline/core/errors"
)

// WordprocessingML namespaces.
const (
	// NSWordML is the main WordprocessingML namespace (w:).
	NSWordML = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	// NSDocRels is the officeDocument relationships namespace (r:).
	NSDocRels = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	// NSXML is the built-in xml: namespace (xml:space).
	NSXML = "http://www.w3.org/XML/1998/namespace"
	// NSPackageRels is the package-level relationships namespace.
	NSPackageRels = "http://schemas.openxmlformats.org/package/2006/relationships"
	// NSContentTypes is the [Content_Types].xml namespace.
	NSContentTypes = "http://schemas.openxmlformats.org/package/2006/content-types"
)

// Node is the underlying DOM node type. Aliased so callers spell ooxml.Node
// while helper functions and xmlquery interoperate freely.
type Node = xmlquery.Node

// Document is a parsed XML part.
type Document struct {
	root *Node
}

// Parse parses an XML part into a mutable document tree.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewParse("XML", "", err.Error())
	}
	return &Document{root: root}, nil
}

// Root returns the document's root element (first element child of the
// document node), or nil for an empty document.
func (d *Document) Root() *Node {
	for child := d.root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}

// Bytes serializes the document, ensuring an XML declaration is present.
func (d *Document) Bytes() []byte {
	out := d.root.OutputXML(true)
	if !strings.HasPrefix(out, "<?xml") {
		out = xmlDeclaration + out
	}
	return []byte(out)
}

const xmlDeclaration = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// Marshal serializes a standalone element tree with an XML declaration.
// Used for parts built from scratch, such as word/comments.xml.
func Marshal(n *Node) []byte {
	return []byte(xmlDeclaration + n.OutputXML(true))
}

// IsElement reports whether n is an element with the given namespace URI and
// local name.
func IsElement(n *Node, ns, local string) bool {
	return n != nil && n.Type == xmlquery.ElementNode && n.NamespaceURI == ns && n.Data == local
}

// IsWordEl reports whether n is a w: element with the given local name.
func IsWordEl(n *Node, local string) bool {
	return IsElement(n, NSWordML, local)
}

// Paragraphs returns every w:p under n in document order.
func Paragraphs(n *Node) []*Node {
	var out []*Node
	walk(n, func(d *Node) {
		if IsWordEl(d, "p") {
			out = append(out, d)
		}
	})
	return out
}

func walk(n *Node, fn func(*Node)) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			fn(child)
		}
		walk(child, fn)
	}
}

// Children returns the element children of n in order.
func Children(n *Node) []*Node {
	var out []*Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			out = append(out, child)
		}
	}
	return out
}

// FindChild returns the first direct element child matching ns and local,
// or nil.
func FindChild(n *Node, ns, local string) *Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if IsElement(child, ns, local) {
			return child
		}
	}
	return nil
}

// FindChildren returns all direct element children matching ns and local.
func FindChildren(n *Node, ns, local string) []*Node {
	var out []*Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if IsElement(child, ns, local) {
			out = append(out, child)
		}
	}
	return out
}

// Detach unlinks n from its parent, fixing all sibling pointers.
func Detach(n *Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	if parent.FirstChild == n {
		parent.FirstChild = n.NextSibling
	}
	if parent.LastChild == n {
		parent.LastChild = n.PrevSibling
	}
	if n.PrevSibling != nil {
		n.PrevSibling.NextSibling = n.NextSibling
	}
	if n.NextSibling != nil {
		n.NextSibling.PrevSibling = n.PrevSibling
	}
	n.Parent = nil
	n.PrevSibling = nil
	n.NextSibling = nil
}

// InsertBefore inserts n immediately before ref under ref's parent.
func InsertBefore(ref, n *Node) {
	parent := ref.Parent
	n.Parent = parent
	n.PrevSibling = ref.PrevSibling
	n.NextSibling = ref
	if ref.PrevSibling != nil {
		ref.PrevSibling.NextSibling = n
	} else if parent != nil {
		parent.FirstChild = n
	}
	ref.PrevSibling = n
}

// InsertAfter inserts n immediately after ref under ref's parent.
func InsertAfter(ref, n *Node) {
	parent := ref.Parent
	n.Parent = parent
	n.NextSibling = ref.NextSibling
	n.PrevSibling = ref
	if ref.NextSibling != nil {
		ref.NextSibling.PrevSibling = n
	} else if parent != nil {
		parent.LastChild = n
	}
	ref.NextSibling = n
}

// AppendChild appends n as the last child of parent.
func AppendChild(parent, n *Node) {
	n.Parent = parent
	n.PrevSibling = parent.LastChild
	n.NextSibling = nil
	if parent.LastChild != nil {
		parent.LastChild.NextSibling = n
	} else {
		parent.FirstChild = n
	}
	parent.LastChild = n
}

// InsertChildAt inserts n so that it becomes the idx-th element child of
// parent. An idx at or past the current element count appends.
func InsertChildAt(parent *Node, idx int, n *Node) {
	children := Children(parent)
	if idx >= 0 && idx < len(children) {
		InsertBefore(children[idx], n)
		return
	}
	AppendChild(parent, n)
}

// ChildIndex returns the position of child among parent's element children,
// or -1 when child is not a direct element child.
func ChildIndex(parent, child *Node) int {
	for i, c := range Children(parent) {
		if c == child {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of n, detached from any tree. Attributes are
// copied verbatim, which is what preserves opaque metadata such as a
// hyperlink's relationship id without this package interpreting it.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		out.Attr = make([]xmlquery.Attr, len(n.Attr))
		copy(out.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		AppendChild(out, Clone(child))
	}
	return out
}

// NewWordEl creates a detached w: element with the given local name.
func NewWordEl(local string) *Node {
	return &Node{
		Type:         xmlquery.ElementNode,
		Data:         local,
		Prefix:       "w",
		NamespaceURI: NSWordML,
	}
}

// NewElement creates a detached element without a namespace prefix.
func NewElement(local, ns string) *Node {
	return &Node{
		Type:         xmlquery.ElementNode,
		Data:         local,
		NamespaceURI: ns,
	}
}

// NewText creates a detached text node.
func NewText(text string) *Node {
	return &Node{
		Type: xmlquery.TextNode,
		Data: text,
	}
}

// SetAttr sets (or replaces) an attribute identified by prefix and local
// name. An empty prefix produces an unprefixed attribute.
func SetAttr(n *Node, prefix, local, value string) {
	ns := ""
	switch prefix {
	case "w":
		ns = NSWordML
	case "r":
		ns = NSDocRels
	case "xml":
		ns = NSXML
	}
	for i := range n.Attr {
		if n.Attr[i].Name.Local == local && n.Attr[i].Name.Space == prefix {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xmlquery.Attr{
		Name:         xml.Name{Space: prefix, Local: local},
		Value:        value,
		NamespaceURI: ns,
	})
}

// Attr returns the value of the attribute with the given prefix and local
// name, or "". Attributes are also matched on bare local name when the
// part was authored without prefixes.
func Attr(n *Node, prefix, local string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Name.Local != local {
			continue
		}
		if a.Name.Space == prefix || a.Name.Space == "" {
			return a.Value
		}
	}
	return ""
}

// DeclareNamespace adds an xmlns:prefix declaration to n.
func DeclareNamespace(n *Node, prefix, uri string) {
	n.Attr = append(n.Attr, xmlquery.Attr{
		Name:  xml.Name{Space: "xmlns", Local: prefix},
		Value: uri,
	})
}

// RunText concatenates the text of a run's direct w:t children. delText and
// instrText are deliberately excluded: already-deleted text must not match
// again.
func RunText(run *Node) string {
	var sb strings.Builder
	for _, t := range FindChildren(run, NSWordML, "t") {
		sb.WriteString(textContent(t))
	}
	return sb.String()
}

func textContent(n *Node) string {
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.TextNode || child.Type == xmlquery.CharDataNode {
			sb.WriteString(child.Data)
		}
	}
	return sb.String()
}

// NewRun builds a w:r with the given text, cloning rPr (may be nil) for
// formatting. The w:t carries xml:space="preserve" so edge whitespace
// survives round trips through Word.
func NewRun(text string, rPr *Node) *Node {
	r := NewWordEl("r")
	if rPr != nil {
		AppendChild(r, Clone(rPr))
	}
	t := NewWordEl("t")
	SetAttr(t, "xml", "space", "preserve")
	AppendChild(t, NewText(text))
	AppendChild(r, t)
	return r
}
