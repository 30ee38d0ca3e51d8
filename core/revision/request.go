// Package revision applies tracked, collaborative-style edits to
// WordprocessingML documents. Target text is located across formatting runs
// and hyperlinks with a cascade of matching strategies, mutations are
// expressed as w:del/w:ins revision markers that preserve per-run formatting,
// and every edit is annotated with a Word comment carrying its rationale.
package revision

import (
	"encoding/json"
	"strings"

	"github.com/FocuswithJustin/redline/core/errors"
)

// Kind identifies the requested edit operation.
type Kind string

const (
	// KindReplace substitutes located text with replacement text.
	KindReplace Kind = "replace"
	// KindDelete removes located text.
	KindDelete Kind = "delete"
	// KindInsert inserts replacement text after located anchor text.
	KindInsert Kind = "insert"
	// KindComment attaches a comment to located text without mutating it.
	KindComment Kind = "comment"
)

// EditRequest is one requested change. Constructed by the caller, consumed
// once, never mutated by this package (the conflict pre-processor returns
// rewritten copies).
type EditRequest struct {
	// Kind selects the operation.
	Kind Kind `json:"kind"`
	// SourceText is the text to locate. For Insert it is the anchor/context
	// the new text is inserted after; for all other kinds it is required.
	SourceText string `json:"source_text"`
	// ReplacementText is the new text for Replace and Insert.
	ReplacementText string `json:"replacement_text,omitempty"`
	// Category is a free-form label (e.g. "SEO", "TECHNICAL", "STYLE")
	// passed through to the generated comment.
	Category string `json:"category,omitempty"`
	// Rationale is embedded into the generated comment text.
	Rationale string `json:"rationale,omitempty"`
}

// validate checks structural requirements. It does not check whether the
// text exists in the document; that is the locator's job.
func (r EditRequest) validate() error {
	switch r.Kind {
	case KindReplace, KindDelete, KindComment:
		if strings.TrimSpace(r.SourceText) == "" {
			return errors.NewValidation("source_text", "required for kind "+string(r.Kind))
		}
	case KindInsert:
		if strings.TrimSpace(r.SourceText) == "" {
			return errors.NewValidation("source_text", "anchor text required for insert")
		}
	default:
		return errors.NewUnsupported("operation", "kind '"+string(r.Kind)+"' is not recognized")
	}
	if (r.Kind == KindReplace || r.Kind == KindInsert) && r.ReplacementText == "" {
		return errors.NewValidation("replacement_text", "required for kind "+string(r.Kind))
	}
	return nil
}

// DecodeRequests parses an ordered JSON array of edit requests. Kind values
// are lower-cased, so "Replace" and "REPLACE" are accepted.
func DecodeRequests(data []byte) ([]EditRequest, error) {
	var reqs []EditRequest
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, errors.NewParse("JSON", "", err.Error())
	}
	for i := range reqs {
		reqs[i].Kind = Kind(strings.ToLower(string(reqs[i].Kind)))
	}
	return reqs, nil
}
