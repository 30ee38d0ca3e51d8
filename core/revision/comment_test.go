package revision

import (
	"strings"
	"testing"

	"github.com/FocuswithJustin/redline/core/docx"
	"github.com/FocuswithJustin/redline/core/ooxml"
)

// commentFixture unpacks a one-paragraph container and wires an applicator to
// its parsed document tree.
func commentFixture(t *testing.T, body string) (*Applicator, *ooxml.Document, *docx.Package) {
	t.Helper()
	pkg, err := docx.Unpack(buildDocx(t, body))
	if err != nil {
		t.Fatalf("Unpack failed: %v", err)
	}
	t.Cleanup(func() { pkg.Close() })

	data, err := pkg.ReadPart(docx.DocumentPart)
	if err != nil {
		t.Fatalf("ReadPart failed: %v", err)
	}
	doc, err := ooxml.Parse(data)
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}
	return NewApplicator(doc.Root(), "Reviewer"), doc, pkg
}

// TestMaterializeCommentsPlacesMarkers verifies the comment body lands in the
// comments part and the anchor is bracketed in the document tree.
func TestMaterializeCommentsPlacesMarkers(t *testing.T) {
	a, doc, pkg := commentFixture(t, para(run("The quick brown fox jumps.")))

	a.registerAnnotation("quick brown", "STYLE", "tone")
	if err := a.materializeComments(pkg); err != nil {
		t.Fatalf("materializeComments failed: %v", err)
	}

	comments, err := pkg.ReadPart(docx.CommentsPart)
	if err != nil {
		t.Fatalf("comments part not written: %v", err)
	}
	for _, want := range []string{"[STYLE] tone", `w:id="0"`, `w:author="Reviewer"`} {
		if !strings.Contains(string(comments), want) {
			t.Errorf("comments part missing %q: %s", want, comments)
		}
	}

	p := firstParagraph(t, doc.Root())
	children := ooxml.Children(p)
	// commentRangeStart, original run, commentRangeEnd, reference run
	if len(children) != 4 {
		t.Fatalf("paragraph has %d children, want 4", len(children))
	}
	if !ooxml.IsWordEl(children[0], "commentRangeStart") {
		t.Error("missing commentRangeStart before the anchor")
	}
	if !ooxml.IsWordEl(children[2], "commentRangeEnd") {
		t.Error("missing commentRangeEnd after the anchor")
	}
	ref := ooxml.FindChild(children[3], ooxml.NSWordML, "commentReference")
	if ref == nil {
		t.Fatal("missing commentReference run")
	}
	if got := ooxml.Attr(ref, "w", "id"); got != "0" {
		t.Errorf("commentReference id = %q, want 0", got)
	}

	// Manifest and relationships were registered.
	ct, _ := pkg.ReadPart(docx.ContentTypesPart)
	if !strings.Contains(string(ct), "/word/comments.xml") {
		t.Error("content types not updated")
	}
}

// TestMaterializeCommentsNone verifies no part is created for an empty queue.
func TestMaterializeCommentsNone(t *testing.T) {
	a, _, pkg := commentFixture(t, para(run("content")))

	if err := a.materializeComments(pkg); err != nil {
		t.Fatalf("materializeComments failed: %v", err)
	}
	if pkg.HasPart(docx.CommentsPart) {
		t.Error("comments part should not exist without annotations")
	}
}

// TestMaterializeCommentsSequentialIDs verifies ids count up from zero in
// registration order.
func TestMaterializeCommentsSequentialIDs(t *testing.T) {
	a, _, pkg := commentFixture(t, para(run("alpha beta gamma")))

	a.registerAnnotation("alpha", "A", "first")
	a.registerAnnotation("gamma", "B", "second")
	if err := a.materializeComments(pkg); err != nil {
		t.Fatalf("materializeComments failed: %v", err)
	}

	comments, _ := pkg.ReadPart(docx.CommentsPart)
	for _, want := range []string{`w:id="0"`, `w:id="1"`, "[A] first", "[B] second"} {
		if !strings.Contains(string(comments), want) {
			t.Errorf("comments part missing %q", want)
		}
	}
}

// TestMissingAnchorKeepsBodyDropsMarkers verifies an unlocatable anchor drops
// the range markers silently while the comment body is still written.
func TestMissingAnchorKeepsBodyDropsMarkers(t *testing.T) {
	a, doc, pkg := commentFixture(t, para(run("real text")))

	a.registerAnnotation("real text", "A", "anchored")
	a.registerAnnotation("phantom text", "B", "orphaned")
	if err := a.materializeComments(pkg); err != nil {
		t.Fatalf("materializeComments failed: %v", err)
	}

	comments, _ := pkg.ReadPart(docx.CommentsPart)
	if !strings.Contains(string(comments), "[B] orphaned") {
		t.Error("orphaned comment body must still be written")
	}

	docXML := ooxml.Marshal(doc.Root())
	if got := strings.Count(string(docXML), "commentRangeStart"); got != 1 {
		t.Errorf("document has %d range starts, want 1 (orphan dropped)", got)
	}
}
