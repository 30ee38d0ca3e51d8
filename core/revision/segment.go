package revision

import (
	"strings"

	"github.com/FocuswithJustin/redline/core/ooxml"
)

// segmentKind distinguishes plain runs from hyperlink-wrapped runs.
type segmentKind int

const (
	plainRun segmentKind = iota
	hyperlinkRun
)

// segment is a contiguous span of paragraph text with uniform structural
// context. Offsets are rune indices into the paragraph's concatenated text;
// each paragraph has its own coordinate space, so matches never span two
// paragraphs.
//
// Segments are recomputed fresh for every locate: earlier edits mutate the
// tree, so caching them across edits would leave stale element references.
type segment struct {
	element *ooxml.Node // direct paragraph child this text was read from
	text    string
	start   int
	end     int
	rPr     *ooxml.Node // formatting handle; cloned when reused, never moved
	kind    segmentKind
}

// scanParagraph flattens a paragraph's direct children into position-indexed
// segments. A w:r becomes one segment. A w:hyperlink is flattened into one
// segment: its text is the concatenation of all inner runs and its
// formatting comes from the first inner run, so a hyperlink is atomic for
// matching purposes. Children with no text are omitted.
func scanParagraph(paragraph *ooxml.Node) []segment {
	var segments []segment
	pos := 0

	for _, child := range ooxml.Children(paragraph) {
		switch {
		case ooxml.IsWordEl(child, "r"):
			text := ooxml.RunText(child)
			if text == "" {
				continue
			}
			n := runeLen(text)
			segments = append(segments, segment{
				element: child,
				text:    text,
				start:   pos,
				end:     pos + n,
				rPr:     ooxml.FindChild(child, ooxml.NSWordML, "rPr"),
				kind:    plainRun,
			})
			pos += n

		case ooxml.IsWordEl(child, "hyperlink"):
			var sb strings.Builder
			var rPr *ooxml.Node
			for _, run := range ooxml.FindChildren(child, ooxml.NSWordML, "r") {
				sb.WriteString(ooxml.RunText(run))
				if rPr == nil {
					rPr = ooxml.FindChild(run, ooxml.NSWordML, "rPr")
				}
			}
			text := sb.String()
			if text == "" {
				continue
			}
			n := runeLen(text)
			segments = append(segments, segment{
				element: child,
				text:    text,
				start:   pos,
				end:     pos + n,
				rPr:     rPr,
				kind:    hyperlinkRun,
			})
			pos += n
		}
	}
	return segments
}

// anchorCandidate is a text span usable as a comment anchor. Unlike the
// locate scanner it also reads runs inside w:ins, because by the time
// comments are placed the tree already contains insertion markers from
// earlier edits in the same batch.
type anchorCandidate struct {
	element *ooxml.Node // paragraph child to bracket with comment markers
	text    string
	start   int
	end     int
}

// scanForAnchors flattens a paragraph for comment anchoring: plain runs,
// runs inside insertion markers, and runs inside hyperlinks.
func scanForAnchors(paragraph *ooxml.Node) []anchorCandidate {
	var out []anchorCandidate
	pos := 0

	add := func(element *ooxml.Node, text string) {
		if text == "" {
			return
		}
		n := runeLen(text)
		out = append(out, anchorCandidate{
			element: element,
			text:    text,
			start:   pos,
			end:     pos + n,
		})
		pos += n
	}

	for _, child := range ooxml.Children(paragraph) {
		switch {
		case ooxml.IsWordEl(child, "r"):
			add(child, ooxml.RunText(child))
		case ooxml.IsWordEl(child, "ins"), ooxml.IsWordEl(child, "hyperlink"):
			for _, run := range ooxml.FindChildren(child, ooxml.NSWordML, "r") {
				add(child, ooxml.RunText(run))
			}
		}
	}
	return out
}

// runeLen returns the length of s in runes.
func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// runeIndex returns the rune offset of the first occurrence of needle in
// haystack, or -1. An empty needle yields -1: empty targets can never match.
func runeIndex(haystack, needle string) int {
	if needle == "" {
		return -1
	}
	byteIdx := strings.Index(haystack, needle)
	if byteIdx < 0 {
		return -1
	}
	return runeLen(haystack[:byteIdx])
}

// runeSlice returns haystack[from:to] in rune offsets, clamped to bounds.
func runeSlice(s string, from, to int) string {
	r := []rune(s)
	if from < 0 {
		from = 0
	}
	if to > len(r) {
		to = len(r)
	}
	if from >= to {
		return ""
	}
	return string(r[from:to])
}
