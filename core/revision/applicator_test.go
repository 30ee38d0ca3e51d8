package revision

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/FocuswithJustin/redline/core/docx"
	"github.com/FocuswithJustin/redline/core/ooxml"
)

const fixtureSettingsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:settings xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:zoom w:percent="100"/>
</w:settings>`

const fixtureContentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
  <Override PartName="/word/settings.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"/>
</Types>`

const fixtureRootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const fixtureDocRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings" Target="settings.xml"/>
</Relationships>`

// buildDocx assembles a minimal .docx container whose document body holds the
// given paragraphs.
func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	parts := map[string]string{
		docx.ContentTypesPart: fixtureContentTypesXML,
		"_rels/.rels":         fixtureRootRelsXML,
		docx.DocumentPart:     docHeader + body + docFooter,
		docx.SettingsPart:     fixtureSettingsXML,
		docx.DocumentRelsPart: fixtureDocRelsXML,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// zipPart reads one entry of a packed container, failing when absent.
func zipPart(t *testing.T, blob []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		t.Fatalf("output is not a zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}
	t.Fatalf("part %s missing from output", name)
	return ""
}

func zipHasPart(t *testing.T, blob []byte, name string) bool {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		t.Fatalf("output is not a zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

// acceptedText renders the document as a reader accepting all revisions
// would see it: deleted spans vanish, inserted spans stay.
func acceptedText(t *testing.T, documentXML string) string {
	t.Helper()
	doc, err := ooxml.Parse([]byte(documentXML))
	if err != nil {
		t.Fatalf("parse output document: %v", err)
	}
	var sb strings.Builder
	collectAccepted(doc.Root(), &sb)
	return sb.String()
}

func collectAccepted(n *ooxml.Node, sb *strings.Builder) {
	if n == nil || ooxml.IsWordEl(n, "del") {
		return
	}
	if ooxml.IsWordEl(n, "t") {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			sb.WriteString(c.Data)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectAccepted(c, sb)
	}
}

// TestApplyReplace exercises the whole pipeline: unpack, track-changes flag,
// replacement markers, comment part registration, repack.
func TestApplyReplace(t *testing.T) {
	in := buildDocx(t, para(run("The quick brown fox jumps.")))
	requests := []EditRequest{{
		Kind:            KindReplace,
		SourceText:      "quick brown",
		ReplacementText: "slow red",
		Category:        "STYLE",
		Rationale:       "tone",
	}}

	out, report, err := Apply(in, requests, "Reviewer")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if report.TotalRequests != 1 || report.Applied != 1 || report.Failed != 0 {
		t.Errorf("report counts = %d/%d/%d, want 1/1/0",
			report.TotalRequests, report.Applied, report.Failed)
	}
	if report.AnnotationsAdded != 1 {
		t.Errorf("AnnotationsAdded = %d, want 1", report.AnnotationsAdded)
	}
	if report.RunID == "" {
		t.Error("report is missing its run id")
	}
	if len(report.DocumentDigest) != 64 {
		t.Errorf("digest %q is not a 256-bit hex string", report.DocumentDigest)
	}

	docXML := zipPart(t, out, docx.DocumentPart)
	if got := acceptedText(t, docXML); got != "The slow red fox jumps." {
		t.Errorf("accepted text = %q", got)
	}
	if !strings.Contains(docXML, "<w:del") || !strings.Contains(docXML, "<w:ins") {
		t.Error("document is missing revision markers")
	}
	if !strings.Contains(docXML, `w:author="Reviewer"`) {
		t.Error("revision markers missing the author")
	}
	if !strings.Contains(docXML, "commentRangeStart") {
		t.Error("document is missing comment range markers")
	}

	settings := zipPart(t, out, docx.SettingsPart)
	if !strings.Contains(settings, "trackRevisions") {
		t.Error("settings part is missing the trackRevisions flag")
	}

	comments := zipPart(t, out, docx.CommentsPart)
	if !strings.Contains(comments, "[STYLE] tone") {
		t.Errorf("comments part missing the annotation body: %s", comments)
	}

	ct := zipPart(t, out, docx.ContentTypesPart)
	if !strings.Contains(ct, "/word/comments.xml") {
		t.Error("content types missing the comments override")
	}
	rels := zipPart(t, out, docx.DocumentRelsPart)
	if !strings.Contains(rels, `Target="comments.xml"`) {
		t.Error("document relationships missing the comments entry")
	}
}

// TestApplyDeleteAndInsert verifies the other mutating kinds plus their
// comment rationales end to end.
func TestApplyDeleteAndInsert(t *testing.T) {
	in := buildDocx(t, para(run("The quick brown fox jumps.")))
	requests := []EditRequest{
		{Kind: KindDelete, SourceText: "quick ", Rationale: "redundant", Category: "CLARITY"},
		{Kind: KindInsert, SourceText: "fox", ReplacementText: " swiftly", Rationale: "emphasis"},
	}

	out, report, err := Apply(in, requests, "")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if report.Applied != 2 || report.Failed != 0 {
		t.Fatalf("report = %d applied / %d failed, want 2/0: %+v",
			report.Applied, report.Failed, report.Details)
	}

	docXML := zipPart(t, out, docx.DocumentPart)
	if got := acceptedText(t, docXML); got != "The brown fox swiftly jumps." {
		t.Errorf("accepted text = %q", got)
	}
	// Empty author falls back to the default.
	if !strings.Contains(docXML, `w:author="`+DefaultAuthor+`"`) {
		t.Error("default author not applied")
	}

	comments := zipPart(t, out, docx.CommentsPart)
	if !strings.Contains(comments, "[CLARITY] Removed: redundant") {
		t.Errorf("delete rationale missing: %s", comments)
	}
	if !strings.Contains(comments, "[GENERAL] Inserted: emphasis") {
		t.Errorf("insert rationale with default category missing: %s", comments)
	}
}

// TestApplyConflictDemotion verifies first-write-wins across the pipeline:
// the second request on the same span is demoted to a comment, and since the
// span was already rewritten its strict lookup fails and is reported.
func TestApplyConflictDemotion(t *testing.T) {
	in := buildDocx(t, para(run("The quick brown fox jumps.")))
	requests := []EditRequest{
		{Kind: KindReplace, SourceText: "quick brown", ReplacementText: "slow red", Rationale: "first"},
		{Kind: KindDelete, SourceText: "quick brown", Rationale: "second"},
	}

	out, report, err := Apply(in, requests, "Reviewer")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if report.TotalRequests != 2 || report.Applied != 1 || report.Failed != 1 {
		t.Fatalf("report counts = %d/%d/%d, want 2/1/1",
			report.TotalRequests, report.Applied, report.Failed)
	}
	if report.Details[1].Action != string(KindComment) {
		t.Errorf("conflicting request action = %q, want demotion to comment", report.Details[1].Action)
	}
	if got := acceptedText(t, zipPart(t, out, docx.DocumentPart)); got != "The slow red fox jumps." {
		t.Errorf("accepted text = %q, only the first edit should apply", got)
	}
}

// TestApplyConflictAfterComment verifies a demoted request still succeeds
// when the winning request did not mutate the span.
func TestApplyConflictAfterComment(t *testing.T) {
	in := buildDocx(t, para(run("The quick brown fox jumps.")))
	requests := []EditRequest{
		{Kind: KindComment, SourceText: "quick brown", Rationale: "note"},
		{Kind: KindReplace, SourceText: "quick brown", ReplacementText: "slow red", Rationale: "tone"},
	}

	out, report, err := Apply(in, requests, "Reviewer")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if report.Applied != 2 || report.Failed != 0 {
		t.Fatalf("report = %d applied / %d failed, want 2/0: %+v",
			report.Applied, report.Failed, report.Details)
	}
	if got := acceptedText(t, zipPart(t, out, docx.DocumentPart)); got != "The quick brown fox jumps." {
		t.Errorf("accepted text = %q, no structural edit should apply", got)
	}

	comments := zipPart(t, out, docx.CommentsPart)
	if !strings.Contains(comments, "[Conflicting revision - replace]") {
		t.Errorf("demoted comment missing the original kind: %s", comments)
	}
	if !strings.Contains(comments, "Suggestion: slow red.") {
		t.Errorf("demoted comment missing the proposed text: %s", comments)
	}
}

// TestApplyNotFound verifies a per-request miss never aborts the batch.
func TestApplyNotFound(t *testing.T) {
	in := buildDocx(t, para(run("stable content")))
	requests := []EditRequest{
		{Kind: KindReplace, SourceText: "absent text", ReplacementText: "x", Rationale: "r"},
		{Kind: KindDelete, SourceText: "stable ", Rationale: "r"},
	}

	out, report, err := Apply(in, requests, "Reviewer")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if report.Applied != 1 || report.Failed != 1 {
		t.Fatalf("report = %d applied / %d failed, want 1/1", report.Applied, report.Failed)
	}
	failed := report.Details[0]
	if failed.Success || !strings.Contains(failed.Error, "not found") {
		t.Errorf("failed outcome = %+v", failed)
	}
	if got := acceptedText(t, zipPart(t, out, docx.DocumentPart)); got != "content" {
		t.Errorf("accepted text = %q", got)
	}
}

// TestApplyNoRequests verifies an empty batch still round-trips the container
// and arms revision tracking.
func TestApplyNoRequests(t *testing.T) {
	in := buildDocx(t, para(run("untouched")))

	out, report, err := Apply(in, nil, "Reviewer")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if report.TotalRequests != 0 || report.AnnotationsAdded != 0 {
		t.Errorf("report = %+v, want empty counts", report)
	}
	if got := acceptedText(t, zipPart(t, out, docx.DocumentPart)); got != "untouched" {
		t.Errorf("accepted text = %q", got)
	}
	if !strings.Contains(zipPart(t, out, docx.SettingsPart), "trackRevisions") {
		t.Error("trackRevisions must be enabled even with no edits")
	}
	if zipHasPart(t, out, docx.CommentsPart) {
		t.Error("no comments part should be created without annotations")
	}
}

// TestApplyMalformedRequest verifies validation failures surface as outcomes.
func TestApplyMalformedRequest(t *testing.T) {
	in := buildDocx(t, para(run("content")))
	requests := []EditRequest{
		{Kind: KindReplace, SourceText: "content"}, // missing replacement
		{Kind: "merge", SourceText: "content"},     // unknown kind
	}

	_, report, err := Apply(in, requests, "Reviewer")
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if report.Applied != 0 || report.Failed != 2 {
		t.Fatalf("report = %d applied / %d failed, want 0/2", report.Applied, report.Failed)
	}
}

// TestApplyCorruptContainer verifies structural failures abort with an error.
func TestApplyCorruptContainer(t *testing.T) {
	if _, _, err := Apply([]byte("not a docx"), nil, ""); err == nil {
		t.Error("Apply should fail on a corrupt container")
	}
}
