// Package docx handles the .docx compound container: unpacking to a scratch
// directory, part access, revision-tracking settings, comment part
// registration, and repacking. The container structure is preserved
// part-for-part except where explicitly modified.
package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/ooxml"
)

// Well-known part names.
const (
	DocumentPart     = "word/document.xml"
	SettingsPart     = "word/settings.xml"
	CommentsPart     = "word/comments.xml"
	ContentTypesPart = "[Content_Types].xml"
	DocumentRelsPart = "word/_rels/document.xml.rels"
)

const (
	commentsContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.comments+xml"
	commentsRelType     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/comments"
)

// Package is an unpacked .docx container rooted at a scratch directory.
// A Package is scoped to one apply call; Close must run on every exit path.
type Package struct {
	scratch string
}

// Unpack extracts the container into a fresh scratch directory.
func Unpack(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.NewParse("zip container", "", err.Error())
	}

	scratch, err := os.MkdirTemp("", "redline-*")
	if err != nil {
		return nil, errors.NewIO("create scratch directory", "", err)
	}

	pkg := &Package{scratch: scratch}
	for _, f := range zr.File {
		if err := pkg.extractFile(f); err != nil {
			pkg.Close()
			return nil, err
		}
	}
	if !pkg.HasPart(DocumentPart) {
		pkg.Close()
		return nil, errors.NewNotFound("part", DocumentPart)
	}
	return pkg, nil
}

func (p *Package) extractFile(f *zip.File) error {
	target, err := p.partPath(f.Name)
	if err != nil {
		return err
	}
	if f.FileInfo().IsDir() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.NewIO("create directory", filepath.Dir(target), err)
	}

	rc, err := f.Open()
	if err != nil {
		return errors.NewIO("open zip entry", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return errors.NewIO("create file", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return errors.NewIO("extract", f.Name, err)
	}
	return nil
}

// partPath resolves a part name inside the scratch directory, rejecting
// entries that would escape it.
func (p *Package) partPath(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", errors.NewParse("zip container", name, "entry escapes scratch directory")
	}
	return filepath.Join(p.scratch, clean), nil
}

// Close removes the scratch directory. Safe to call more than once.
func (p *Package) Close() error {
	if p.scratch == "" {
		return nil
	}
	err := os.RemoveAll(p.scratch)
	p.scratch = ""
	return err
}

// HasPart reports whether the container holds the named part.
func (p *Package) HasPart(name string) bool {
	path, err := p.partPath(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadPart returns the raw bytes of a part.
func (p *Package) ReadPart(name string) ([]byte, error) {
	path, err := p.partPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read part", name, err)
	}
	return data, nil
}

// WritePart replaces (or creates) a part with the given bytes.
func (p *Package) WritePart(name string, data []byte) error {
	path, err := p.partPath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIO("create directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewIO("write part", name, err)
	}
	return nil
}

// EnableTrackRevisions sets w:trackRevisions in word/settings.xml.
// Idempotent: an existing flag is left alone. A container without a
// settings part is left alone too.
func (p *Package) EnableTrackRevisions() error {
	if !p.HasPart(SettingsPart) {
		return nil
	}
	data, err := p.ReadPart(SettingsPart)
	if err != nil {
		return err
	}
	doc, err := ooxml.Parse(data)
	if err != nil {
		return errors.Wrap(err, "settings part")
	}
	settings := doc.Root()
	if settings == nil {
		return errors.NewParse("XML", SettingsPart, "no root element")
	}
	if ooxml.FindChild(settings, ooxml.NSWordML, "trackRevisions") != nil {
		return nil
	}
	ooxml.AppendChild(settings, ooxml.NewWordEl("trackRevisions"))
	return p.WritePart(SettingsPart, doc.Bytes())
}

// RegisterCommentsPart records word/comments.xml in the content-type
// manifest and the document relationship table. Duplicate-guarded so a
// re-run does not add second entries.
func (p *Package) RegisterCommentsPart() error {
	if err := p.registerContentType(); err != nil {
		return err
	}
	return p.registerRelationship()
}

func (p *Package) registerContentType() error {
	data, err := p.ReadPart(ContentTypesPart)
	if err != nil {
		return err
	}
	doc, err := ooxml.Parse(data)
	if err != nil {
		return errors.Wrap(err, "content types part")
	}
	types := doc.Root()
	if types == nil {
		return errors.NewParse("XML", ContentTypesPart, "no root element")
	}

	for _, override := range ooxml.FindChildren(types, ooxml.NSContentTypes, "Override") {
		if ooxml.Attr(override, "", "PartName") == "/"+CommentsPart {
			return nil
		}
	}

	override := ooxml.NewElement("Override", ooxml.NSContentTypes)
	ooxml.SetAttr(override, "", "PartName", "/"+CommentsPart)
	ooxml.SetAttr(override, "", "ContentType", commentsContentType)
	ooxml.AppendChild(types, override)
	return p.WritePart(ContentTypesPart, doc.Bytes())
}

func (p *Package) registerRelationship() error {
	data, err := p.ReadPart(DocumentRelsPart)
	if err != nil {
		return err
	}
	doc, err := ooxml.Parse(data)
	if err != nil {
		return errors.Wrap(err, "relationships part")
	}
	rels := doc.Root()
	if rels == nil {
		return errors.NewParse("XML", DocumentRelsPart, "no root element")
	}

	existing := ooxml.FindChildren(rels, ooxml.NSPackageRels, "Relationship")
	for _, rel := range existing {
		if ooxml.Attr(rel, "", "Target") == "comments.xml" {
			return nil
		}
	}

	rel := ooxml.NewElement("Relationship", ooxml.NSPackageRels)
	ooxml.SetAttr(rel, "", "Id", relID(len(existing)+1))
	ooxml.SetAttr(rel, "", "Type", commentsRelType)
	ooxml.SetAttr(rel, "", "Target", "comments.xml")
	ooxml.AppendChild(rels, rel)
	return p.WritePart(DocumentRelsPart, doc.Bytes())
}

func relID(n int) string {
	return "rId" + strconv.Itoa(n)
}

// Pack rebuilds the container from the scratch directory, deflate-compressed.
func (p *Package) Pack() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	err := filepath.WalkDir(p.scratch, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.scratch, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	if err != nil {
		zw.Close()
		return nil, errors.NewIO("repack", p.scratch, err)
	}
	if err := zw.Close(); err != nil {
		return nil, errors.NewIO("repack", p.scratch, err)
	}
	return buf.Bytes(), nil
}
