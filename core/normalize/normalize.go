// Package normalize provides text canonicalization for fuzzy document matching.
// LLM-produced snippets and rendered document text disagree on quote glyphs,
// dashes, whitespace, and list bullets; these helpers fold both sides onto a
// common form while keeping a way back to original string positions.
//
// All positions are rune indices, not byte offsets.
package normalize

import "strings"

// bulletRunes are list-marker glyphs that renderers display but that do not
// exist in the underlying run text (they come from paragraph numbering).
var bulletRunes = map[rune]bool{
	'•': true, // •
	'·': true, // ·
	'▪': true, // ▪
	'▸': true, // ▸
	'►': true, // ►
	'◆': true, // ◆
	'◇': true, // ◇
	'○': true, // ○
	'●': true, // ●
	'■': true, // ■
	'□': true, // □
}

// foldRune maps a rune onto its canonical form. The second return is false
// when the rune contributes nothing to the normalized text (zero-width
// characters and the BOM).
func foldRune(r rune) (rune, bool) {
	switch r {
	case '“', '”':
		return '"', true
	case '‘', '’':
		return '\'', true
	case '–', '—':
		return '-', true
	case '\u00a0':
		return ' ', true
	case '\u200b', '\u200c', '\u200d', '\ufeff':
		return 0, false
	}
	return r, true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// Normalize canonicalizes text for matching: smart quotes to straight quotes,
// en/em dashes to hyphens, non-breaking spaces to spaces, zero-width
// characters removed, whitespace runs collapsed to a single space, and the
// result trimmed. Normalize is idempotent.
func Normalize(text string) string {
	out, _ := NormalizeWithMap(text)
	return out
}

// NormalizeWithMap canonicalizes text like Normalize and additionally returns
// a position map: posMap[i] is the rune index in the original string that
// produced rune i of the normalized string. An empty or all-whitespace input
// yields an empty string and a nil map.
func NormalizeWithMap(text string) (string, []int) {
	var out []rune
	var posMap []int
	prevSpace := true

	for origIdx, r := range []rune(text) {
		folded, keep := foldRune(r)
		if !keep {
			continue
		}
		if isSpace(folded) {
			if !prevSpace {
				out = append(out, ' ')
				posMap = append(posMap, origIdx)
				prevSpace = true
			}
			continue
		}
		out = append(out, folded)
		posMap = append(posMap, origIdx)
		prevSpace = false
	}

	// Collapsing leaves at most one trailing space.
	if n := len(out); n > 0 && out[n-1] == ' ' {
		out = out[:n-1]
		posMap = posMap[:n-1]
	}
	if len(out) == 0 {
		return "", nil
	}
	return string(out), posMap
}

// StripLeadingBullets removes bullet glyphs and the whitespace following them
// from the start of text. Repeated bullets are all removed.
func StripLeadingBullets(text string) string {
	s := strings.TrimLeft(text, " \t\n\r")
	for s != "" {
		r := []rune(s)[0]
		if !bulletRunes[r] {
			break
		}
		s = strings.TrimLeft(s[len(string(r)):], " \t\n\r")
	}
	return s
}
