package revision

import (
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/redline/core/docx"
	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/ooxml"
	"github.com/FocuswithJustin/redline/internal/logging"
)

// annotation is a comment queued for attachment to a text span. All
// annotations are materialized together after the edits, because the anchor
// text may only exist inside markup created by an earlier edit in the batch.
type annotation struct {
	id     int    // sequential per run, starting at 0
	anchor string // text the comment is bound to, searched post-edit
	body   string // "[{category}] {rationale}"
	author string
}

// registerAnnotation queues a comment for later materialization.
func (a *Applicator) registerAnnotation(anchor, category, rationale string) {
	a.annotations = append(a.annotations, annotation{
		id:     len(a.annotations),
		anchor: anchor,
		body:   fmt.Sprintf("[%s] %s", category, rationale),
		author: a.author,
	})
}

// materializeComments writes all queued annotations: comment bodies go into
// a word/comments.xml part, and each locatable anchor is bracketed with
// range markers and a reference run in the main content tree. The part is
// registered in the container manifest and relationship table.
//
// Annotations whose anchor cannot be located are dropped silently: comments
// are best-effort decoration, never a reason to fail the run.
func (a *Applicator) materializeComments(pkg *docx.Package) error {
	if len(a.annotations) == 0 {
		return nil
	}

	comments := ooxml.NewWordEl("comments")
	ooxml.DeclareNamespace(comments, "w", ooxml.NSWordML)

	for _, ann := range a.annotations {
		comment := ooxml.NewWordEl("comment")
		ooxml.SetAttr(comment, "w", "id", strconv.Itoa(ann.id))
		ooxml.SetAttr(comment, "w", "author", ann.author)
		ooxml.SetAttr(comment, "w", "date", a.timestamp())

		p := ooxml.NewWordEl("p")
		ooxml.AppendChild(p, ooxml.NewRun(ann.body, nil))
		ooxml.AppendChild(comment, p)
		ooxml.AppendChild(comments, comment)

		a.markCommentRange(ann)
	}

	if err := pkg.WritePart(docx.CommentsPart, ooxml.Marshal(comments)); err != nil {
		return errors.Wrap(err, "comments part")
	}
	return pkg.RegisterCommentsPart()
}

// markCommentRange brackets the annotation's anchor element with
// commentRangeStart/commentRangeEnd markers and appends the commentReference
// run that ties the span to the comment body.
func (a *Applicator) markCommentRange(ann annotation) {
	paragraph, target := locateAnchor(a.root, ann.anchor)
	if paragraph == nil || target == nil {
		logging.AnnotationDropped(ann.id, errors.Preview(ann.anchor))
		return
	}

	idx := ooxml.ChildIndex(paragraph, target)

	start := ooxml.NewWordEl("commentRangeStart")
	ooxml.SetAttr(start, "w", "id", strconv.Itoa(ann.id))
	ooxml.InsertChildAt(paragraph, idx, start)

	end := ooxml.NewWordEl("commentRangeEnd")
	ooxml.SetAttr(end, "w", "id", strconv.Itoa(ann.id))
	ooxml.InsertChildAt(paragraph, idx+2, end)

	refRun := ooxml.NewWordEl("r")
	ref := ooxml.NewWordEl("commentReference")
	ooxml.SetAttr(ref, "w", "id", strconv.Itoa(ann.id))
	ooxml.AppendChild(refRun, ref)
	ooxml.InsertChildAt(paragraph, idx+3, refRun)
}
