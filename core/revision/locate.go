package revision

import (
	"strings"

	"github.com/FocuswithJustin/redline/core/normalize"
	"github.com/FocuswithJustin/redline/core/ooxml"
)

// affectedSegment is a segment clipped against a match span. before and
// after hold the segment text outside the span; matched holds the overlap.
// A segment fully inside the span has empty before/after.
type affectedSegment struct {
	segment
	clipStart int
	clipEnd   int
	before    string
	matched   string
	after     string
}

// match is the outcome of locating source text inside one paragraph.
// The concatenation of the affected segments' matched substrings equals the
// located original text exactly (not the normalized form).
type match struct {
	paragraph *ooxml.Node
	start     int
	end       int
	affected  []affectedSegment
}

// matchedText returns the original text the span covers.
func (m *match) matchedText() string {
	var sb strings.Builder
	for _, a := range m.affected {
		sb.WriteString(a.matched)
	}
	return sb.String()
}

// locate searches all paragraphs in document order for sourceText. Four
// strategies are tried per paragraph, returning on the first hit:
//
//  1. exact substring match
//  2. normalized match, mapped back to original offsets
//  3. exact match with leading bullets stripped from sourceText
//  4. normalized match of the bullet-stripped sourceText
//
// The first paragraph containing any hit wins; within a paragraph the first
// occurrence wins. Returns nil when nothing matches.
func locate(root *ooxml.Node, sourceText string) *match {
	if strings.TrimSpace(sourceText) == "" {
		return nil
	}

	sourceNorm := normalize.Normalize(sourceText)
	sourceNoBullet := normalize.StripLeadingBullets(sourceText)
	sourceNoBulletNorm := normalize.Normalize(sourceNoBullet)

	for _, paragraph := range ooxml.Paragraphs(root) {
		segments := scanParagraph(paragraph)
		if len(segments) == 0 {
			continue
		}

		var sb strings.Builder
		for _, s := range segments {
			sb.WriteString(s.text)
		}
		fullText := sb.String()
		if strings.TrimSpace(fullText) == "" {
			continue
		}

		// Strategy 1: exact match.
		if idx := runeIndex(fullText, sourceText); idx >= 0 {
			if m := buildMatch(paragraph, segments, idx, idx+runeLen(sourceText)); m != nil {
				return m
			}
		}

		fullNorm, posMap := normalize.NormalizeWithMap(fullText)

		// Strategy 2: normalized match.
		if idx := runeIndex(fullNorm, sourceNorm); idx >= 0 {
			if start, end, ok := mapSpan(posMap, idx, runeLen(sourceNorm)); ok {
				if m := buildMatch(paragraph, segments, start, end); m != nil {
					return m
				}
			}
		}

		// Strategy 3: bullet-stripped exact match.
		if sourceNoBullet != "" && sourceNoBullet != sourceText {
			if idx := runeIndex(fullText, sourceNoBullet); idx >= 0 {
				if m := buildMatch(paragraph, segments, idx, idx+runeLen(sourceNoBullet)); m != nil {
					return m
				}
			}
		}

		// Strategy 4: bullet-stripped normalized match.
		if sourceNoBulletNorm != "" && sourceNoBulletNorm != sourceNorm {
			if idx := runeIndex(fullNorm, sourceNoBulletNorm); idx >= 0 {
				if start, end, ok := mapSpan(posMap, idx, runeLen(sourceNoBulletNorm)); ok {
					if m := buildMatch(paragraph, segments, start, end); m != nil {
						return m
					}
				}
			}
		}
	}
	return nil
}

// mapSpan translates a span in normalized coordinates back to original rune
// offsets via the normalizer's position map. The end offset points one past
// the original rune that produced the last normalized rune.
func mapSpan(posMap []int, normStart, normLen int) (int, int, bool) {
	if len(posMap) == 0 || normLen <= 0 {
		return 0, 0, false
	}
	if normStart+normLen > len(posMap) {
		return 0, 0, false
	}
	origStart := posMap[normStart]
	origEnd := posMap[normStart+normLen-1] + 1
	return origStart, origEnd, true
}

// buildMatch clips the segments overlapping [start, end) and assembles the
// match. Returns nil when the span overlaps no segment.
func buildMatch(paragraph *ooxml.Node, segments []segment, start, end int) *match {
	var affected []affectedSegment
	for _, s := range segments {
		if s.end <= start || s.start >= end {
			continue
		}
		clipStart := start - s.start
		if clipStart < 0 {
			clipStart = 0
		}
		clipEnd := end - s.start
		if n := runeLen(s.text); clipEnd > n {
			clipEnd = n
		}
		affected = append(affected, affectedSegment{
			segment:   s,
			clipStart: clipStart,
			clipEnd:   clipEnd,
			before:    runeSlice(s.text, 0, clipStart),
			matched:   runeSlice(s.text, clipStart, clipEnd),
			after:     runeSlice(s.text, clipEnd, runeLen(s.text)),
		})
	}
	if len(affected) == 0 {
		return nil
	}
	return &match{
		paragraph: paragraph,
		start:     start,
		end:       end,
		affected:  affected,
	}
}

// locateAnchor searches for comment anchor text using the broadened scanner
// (plain runs, insertion markers, hyperlinks). An exact hit returns the
// paragraph child containing the match start; a normalized hit falls back to
// the paragraph's first candidate element. Returns (nil, nil) when the
// anchor cannot be found.
func locateAnchor(root *ooxml.Node, anchorText string) (*ooxml.Node, *ooxml.Node) {
	if strings.TrimSpace(anchorText) == "" {
		return nil, nil
	}
	anchorNorm := normalize.Normalize(anchorText)

	for _, paragraph := range ooxml.Paragraphs(root) {
		candidates := scanForAnchors(paragraph)
		if len(candidates) == 0 {
			continue
		}

		var sb strings.Builder
		for _, c := range candidates {
			sb.WriteString(c.text)
		}
		fullText := sb.String()

		if idx := runeIndex(fullText, anchorText); idx >= 0 {
			for _, c := range candidates {
				if c.start <= idx && idx < c.end {
					return paragraph, c.element
				}
			}
			continue
		}

		if anchorNorm != "" && strings.Contains(normalize.Normalize(fullText), anchorNorm) {
			return paragraph, candidates[0].element
		}
	}
	return nil, nil
}
