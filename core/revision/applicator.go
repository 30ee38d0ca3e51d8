package revision

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/redline/core/docx"
	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/ooxml"
	"github.com/FocuswithJustin/redline/internal/logging"
)

// DefaultAuthor is used when the caller passes an empty author string.
const DefaultAuthor = "AI Review Agent"

// Apply runs the full pipeline on a .docx byte blob: unpack, enable revision
// tracking, demote conflicting requests, apply each edit in input order
// against the live tree, materialize comments, and repack.
//
// Per-request failures (target not found, malformed request, unknown kind)
// are reported in the returned Report and never abort the batch. Structural
// failures (corrupt container, filesystem errors) return a non-nil error and
// no output; the scratch directory is removed on every path.
func Apply(docBytes []byte, requests []EditRequest, author string) ([]byte, *Report, error) {
	start := time.Now()
	if author == "" {
		author = DefaultAuthor
	}
	runID := uuid.NewString()

	pkg, err := docx.Unpack(docBytes)
	if err != nil {
		return nil, nil, err
	}
	defer pkg.Close()

	if err := pkg.EnableTrackRevisions(); err != nil {
		return nil, nil, err
	}

	docData, err := pkg.ReadPart(docx.DocumentPart)
	if err != nil {
		return nil, nil, err
	}
	doc, err := ooxml.Parse(docData)
	if err != nil {
		return nil, nil, errors.Wrap(err, "document part")
	}
	root := doc.Root()
	if root == nil {
		return nil, nil, errors.NewParse("XML", docx.DocumentPart, "no root element")
	}

	a := NewApplicator(root, author)
	processed := Preprocess(requests)
	for idx, req := range processed {
		a.processRequest(idx, req)
	}

	if err := a.materializeComments(pkg); err != nil {
		return nil, nil, err
	}

	if err := pkg.WritePart(docx.DocumentPart, doc.Bytes()); err != nil {
		return nil, nil, err
	}
	out, err := pkg.Pack()
	if err != nil {
		return nil, nil, err
	}

	digest := blake3.Sum256(out)
	report := a.report(runID, hex.EncodeToString(digest[:]))
	logging.DocumentProcessed(runID, report.TotalRequests, report.Applied,
		report.Failed, report.AnnotationsAdded, time.Since(start))
	return out, report, nil
}

// processRequest applies one request and records exactly one outcome, even
// when processing panics. This is the per-request error boundary: nothing a
// single request does may abort the rest of the batch.
func (a *Applicator) processRequest(idx int, req EditRequest) {
	defer func() {
		if r := recover(); r != nil {
			a.fail(idx, req.Kind, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := req.validate(); err != nil {
		a.fail(idx, req.Kind, err.Error())
		return
	}

	category := req.Category
	if category == "" {
		category = "GENERAL"
	}

	switch req.Kind {
	case KindReplace:
		if !a.applyReplace(req.SourceText, req.ReplacementText) {
			a.fail(idx, req.Kind, errors.NewNotFound("text", req.SourceText).Error())
			return
		}
		a.registerAnnotation(req.ReplacementText, category, req.Rationale)
		a.succeed(idx, req.Kind)

	case KindDelete:
		if !a.applyDelete(req.SourceText) {
			a.fail(idx, req.Kind, errors.NewNotFound("text", req.SourceText).Error())
			return
		}
		a.registerAnnotation(req.SourceText, category, "Removed: "+req.Rationale)
		a.succeed(idx, req.Kind)

	case KindInsert:
		if !a.applyInsert(req.SourceText, req.ReplacementText) {
			a.fail(idx, req.Kind, errors.NewNotFound("anchor", req.SourceText).Error())
			return
		}
		a.registerAnnotation(req.ReplacementText, category, "Inserted: "+req.Rationale)
		a.succeed(idx, req.Kind)

	case KindComment:
		if locate(a.root, req.SourceText) == nil {
			a.fail(idx, req.Kind, errors.NewNotFound("text", req.SourceText).Error())
			return
		}
		a.registerAnnotation(req.SourceText, category, req.Rationale)
		a.succeed(idx, req.Kind)
	}
}

func (a *Applicator) succeed(idx int, kind Kind) {
	a.outcomes = append(a.outcomes, Outcome{Index: idx, Action: string(kind), Success: true})
	logging.EditOutcome(idx, string(kind), true)
}

func (a *Applicator) fail(idx int, kind Kind, reason string) {
	a.outcomes = append(a.outcomes, Outcome{Index: idx, Action: string(kind), Success: false, Error: reason})
	logging.EditOutcome(idx, string(kind), false, "error", reason)
}

// report assembles the aggregate result from the recorded outcomes.
func (a *Applicator) report(runID, digest string) *Report {
	applied := 0
	for _, o := range a.outcomes {
		if o.Success {
			applied++
		}
	}
	return &Report{
		RunID:            runID,
		TotalRequests:    len(a.outcomes),
		Applied:          applied,
		Failed:           len(a.outcomes) - applied,
		AnnotationsAdded: len(a.annotations),
		DocumentDigest:   digest,
		Details:          a.outcomes,
	}
}
