package revision

import (
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/redline/core/normalize"
)

// Preprocess demotes conflicting requests. When several requests target the
// same source text (compared in normalized form), the first keeps its kind
// and every later one is rewritten into a Comment that records the intended
// action, proposed replacement, and original rationale. This guarantees at
// most one structural mutation per distinct source span: first-write-wins,
// in arrival order.
//
// The input slice is not mutated; demoted requests are rewritten copies.
func Preprocess(requests []EditRequest) []EditRequest {
	seen := make(map[[32]byte]int, len(requests))
	out := make([]EditRequest, 0, len(requests))

	for idx, req := range requests {
		if req.SourceText == "" {
			out = append(out, req)
			continue
		}

		key := blake3.Sum256([]byte(normalize.Normalize(req.SourceText)))
		if _, dup := seen[key]; dup {
			out = append(out, demote(req))
			continue
		}
		seen[key] = idx
		out = append(out, req)
	}
	return out
}

// demote rewrites a conflicting request into a non-mutating comment whose
// rationale embeds what the request originally wanted.
func demote(req EditRequest) EditRequest {
	rationale := fmt.Sprintf("[Conflicting revision - %s]", req.Kind)
	if req.ReplacementText != "" {
		rationale += fmt.Sprintf(" Suggestion: %s.", req.ReplacementText)
	}
	rationale += fmt.Sprintf(" Reason: %s", req.Rationale)

	demoted := req
	demoted.Kind = KindComment
	demoted.Rationale = rationale
	return demoted
}
