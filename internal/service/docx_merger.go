package service

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"doc-merge-server/internal/domain"
)

const pageBreakParagraph = `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`

// DocxMerger implements domain.DocumentMerger for DOCX inputs using the
// element-copy strategy: the first input becomes the base package and
// every block-level element of the remaining inputs is appended to its
// body, separated by an explicit page break (or a section break when
// the preceding document carries page geometry of its own).
//
// Preservation of headers, footers and page geometry is best effort:
// each appended document's trailing sectPr travels with its content,
// and the header/footer parts it references are copied into the output
// package under renamed part names with rewritten relationship IDs.
// Failures in these secondary carry-over steps are skipped, never
// escalated.
type DocxMerger struct {
	logger domain.Logger
}

// NewDocxMerger creates a new DOCX merger
func NewDocxMerger(logger domain.Logger) *DocxMerger {
	return &DocxMerger{logger: logger}
}

// Kind returns the document kind this merger handles
func (m *DocxMerger) Kind() domain.DocumentKind {
	return domain.KindDOCX
}

// Merge concatenates the documents at paths into outputPath. A single
// input is copied byte for byte without touching the merge algorithm.
func (m *DocxMerger) Merge(paths []string, outputPath string) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: no input files", domain.ErrDocumentMerge)
	}

	if len(paths) == 1 {
		if err := copyFile(paths[0], outputPath); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrDocumentMerge, err)
		}
		return nil
	}

	base, err := readDocxPackage(paths[0])
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrDocumentMerge, filepath.Base(paths[0]), err)
	}

	builder, err := newDocxBuilder(base, m.logger)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrDocumentMerge, filepath.Base(paths[0]), err)
	}

	for i, p := range paths[1:] {
		src, err := readDocxPackage(p)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrDocumentMerge, filepath.Base(p), err)
		}
		if err := builder.append(src, i+1); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrDocumentMerge, filepath.Base(p), err)
		}
	}

	data, err := builder.assemble()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDocumentMerge, err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("%w: write output: %v", domain.ErrDocumentMerge, err)
	}

	m.logger.Info("Merged DOCX documents", "sources", len(paths), "output", filepath.Base(outputPath))
	return nil
}

// docxPackage is a DOCX file loaded fully into memory: a zip container
// of OOXML parts, entry order preserved.
type docxPackage struct {
	names []string
	parts map[string][]byte
}

func readDocxPackage(p string) (*docxPackage, error) {
	r, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	defer r.Close()

	pkg := &docxPackage{parts: make(map[string][]byte)}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open part %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read part %s: %w", f.Name, err)
		}
		pkg.names = append(pkg.names, f.Name)
		pkg.parts[f.Name] = data
	}

	if _, ok := pkg.parts["word/document.xml"]; !ok {
		return nil, fmt.Errorf("word/document.xml not found in archive")
	}
	return pkg, nil
}

func (p *docxPackage) part(name string) ([]byte, bool) {
	data, ok := p.parts[name]
	return data, ok
}

// relationship is one entry of an OPC relationships part.
type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

type relationshipsXML struct {
	XMLName xml.Name       `xml:"Relationships"`
	Rels    []relationship `xml:"Relationship"`
}

// relationships parses the named rels part. A missing part yields an
// empty map, not an error.
func (p *docxPackage) relationships(name string) (map[string]relationship, error) {
	data, ok := p.parts[name]
	if !ok {
		return map[string]relationship{}, nil
	}
	var doc relationshipsXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	rels := make(map[string]relationship, len(doc.Rels))
	for _, r := range doc.Rels {
		rels[r.ID] = r
	}
	return rels, nil
}

type contentTypesXML struct {
	XMLName  xml.Name `xml:"Types"`
	Defaults []struct {
		Extension   string `xml:"Extension,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Default"`
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

// contentTypes parses [Content_Types].xml into default (by extension)
// and override (by part name) maps.
func (p *docxPackage) contentTypes() (defaults, overrides map[string]string, err error) {
	data, ok := p.parts["[Content_Types].xml"]
	if !ok {
		return nil, nil, fmt.Errorf("[Content_Types].xml not found in archive")
	}
	var doc contentTypesXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse [Content_Types].xml: %w", err)
	}
	defaults = make(map[string]string, len(doc.Defaults))
	for _, d := range doc.Defaults {
		defaults[strings.ToLower(d.Extension)] = d.ContentType
	}
	overrides = make(map[string]string, len(doc.Overrides))
	for _, o := range doc.Overrides {
		overrides[o.PartName] = o.ContentType
	}
	return defaults, overrides, nil
}

// splitDocumentXML splits word/document.xml into the markup before the
// body content, the body content itself with any trailing sectPr
// detached, that sectPr (may be empty), and the closing markup.
func splitDocumentXML(data []byte) (prefix, inner, sectPr, suffix string, err error) {
	s := string(data)

	bodyStart := strings.Index(s, "<w:body")
	if bodyStart < 0 {
		return "", "", "", "", fmt.Errorf("no w:body element")
	}
	openEnd := strings.Index(s[bodyStart:], ">")
	if openEnd < 0 {
		return "", "", "", "", fmt.Errorf("malformed w:body element")
	}
	contentStart := bodyStart + openEnd + 1

	bodyEnd := strings.LastIndex(s, "</w:body>")
	if bodyEnd < 0 || bodyEnd < contentStart {
		return "", "", "", "", fmt.Errorf("w:body element not closed")
	}

	prefix = s[:contentStart]
	suffix = s[bodyEnd:]
	inner = strings.TrimSpace(s[contentStart:bodyEnd])

	// A sectPr that is the last child of the body holds the final
	// section's page geometry and header/footer references. Detach it
	// only when it really is the body's own last child: either its
	// closing tag ends the body, or the tail is a single self-closing
	// sectPr element with nothing after it. A paragraph-level sectPr
	// inside a trailing pPr must stay where it is.
	if idx := strings.LastIndex(inner, "<w:sectPr"); idx >= 0 {
		tail := inner[idx:]
		selfClosing := !strings.Contains(tail, "</w:sectPr>") &&
			strings.HasSuffix(tail, "/>") &&
			strings.Index(tail, ">") == len(tail)-1
		if strings.HasSuffix(inner, "</w:sectPr>") || selfClosing {
			sectPr = tail
			inner = strings.TrimSpace(inner[:idx])
		}
	}

	return prefix, inner, sectPr, suffix, nil
}

const documentRelsName = "word/_rels/document.xml.rels"

var (
	relIDRe     = regexp.MustCompile(`r:(?:id|embed|link)="([^"]+)"`)
	hdrFtrRefRe = regexp.MustCompile(`<w:(?:headerReference|footerReference)\b[^>]*/>`)
)

// docxBuilder accumulates the merged package.
type docxBuilder struct {
	base   *docxPackage
	logger domain.Logger

	prefix      string
	suffix      string
	body        []string
	finalSectPr string

	baseRelIDs   map[string]bool
	extraRels    []relationship
	newParts     map[string][]byte
	newPartOrder []string
	importCache  map[string]string

	ctDefaults    map[string]string
	ctOverrides   map[string]string
	addDefaults   map[string]string
	addOverrides  map[string]string
	overrideOrder []string
	relSeq        int
}

func newDocxBuilder(base *docxPackage, logger domain.Logger) (*docxBuilder, error) {
	docXML, _ := base.part("word/document.xml")
	prefix, inner, sectPr, suffix, err := splitDocumentXML(docXML)
	if err != nil {
		return nil, err
	}

	baseRels, err := base.relationships(documentRelsName)
	if err != nil {
		return nil, err
	}
	relIDs := make(map[string]bool, len(baseRels))
	for id := range baseRels {
		relIDs[id] = true
	}

	defaults, overrides, err := base.contentTypes()
	if err != nil {
		return nil, err
	}

	return &docxBuilder{
		base:         base,
		logger:       logger,
		prefix:       prefix,
		suffix:       suffix,
		body:         []string{inner},
		finalSectPr:  sectPr,
		baseRelIDs:   relIDs,
		newParts:     make(map[string][]byte),
		importCache:  make(map[string]string),
		ctDefaults:   defaults,
		ctOverrides:  overrides,
		addDefaults:  make(map[string]string),
		addOverrides: make(map[string]string),
	}, nil
}

// append splices src's body content onto the merged body. idx numbers
// the appended document and keeps imported part names unique.
func (b *docxBuilder) append(src *docxPackage, idx int) error {
	docXML, _ := src.part("word/document.xml")
	_, inner, sectPr, _, err := splitDocumentXML(docXML)
	if err != nil {
		return err
	}

	srcRels, err := src.relationships(documentRelsName)
	if err != nil {
		// Unreadable rels: content still merges, references degrade.
		b.logger.Debug("Skipping relationship carry-over", "reason", err)
		srcRels = map[string]relationship{}
	}

	// The preceding document's section properties become a paragraph
	// level section break, which starts the next content on a fresh
	// page while keeping that document's headers and geometry. Without
	// them, an explicit page break separates the two documents.
	if b.finalSectPr != "" {
		b.body = append(b.body, `<w:p><w:pPr>`+b.finalSectPr+`</w:pPr></w:p>`)
	} else {
		b.body = append(b.body, pageBreakParagraph)
	}

	b.body = append(b.body, b.adoptContent(inner, src, srcRels, idx))

	// A document without its own sectPr keeps the previous finalSectPr,
	// so its content stays under the preceding section's geometry and
	// headers, the same way Word treats an unterminated final section.
	if sectPr != "" {
		adopted := b.adoptContent(sectPr, src, srcRels, idx)
		b.finalSectPr = b.dropDanglingHeaderRefs(adopted)
	}

	return nil
}

// adoptContent rewrites every relationship reference in the given XML
// fragment so it resolves inside the merged package, importing the
// referenced parts as needed. References that cannot be carried over
// are left untouched.
func (b *docxBuilder) adoptContent(xmlStr string, src *docxPackage, srcRels map[string]relationship, idx int) string {
	seen := make(map[string]bool)
	for _, m := range relIDRe.FindAllStringSubmatch(xmlStr, -1) {
		rid := m[1]
		if seen[rid] {
			continue
		}
		seen[rid] = true

		rel, ok := srcRels[rid]
		if !ok {
			continue
		}
		newID := b.importRelationship(rel, src, idx)
		if newID == "" || newID == rid {
			continue
		}
		xmlStr = strings.ReplaceAll(xmlStr, `"`+rid+`"`, `"`+newID+`"`)
	}
	return xmlStr
}

// importRelationship carries one relationship of an appended document
// into the merged package and returns the replacement ID, or "" when
// the carry-over is skipped.
func (b *docxBuilder) importRelationship(rel relationship, src *docxPackage, idx int) string {
	cacheKey := fmt.Sprintf("%d:%s", idx, rel.ID)
	if id, ok := b.importCache[cacheKey]; ok {
		return id
	}

	if rel.TargetMode == "External" {
		newID := b.nextRelID()
		b.extraRels = append(b.extraRels, relationship{ID: newID, Type: rel.Type, Target: rel.Target, TargetMode: "External"})
		b.importCache[cacheKey] = newID
		return newID
	}

	partName := resolvePartName("word", rel.Target)
	data, ok := src.part(partName)
	if !ok {
		b.logger.Debug("Referenced part missing, skipping carry-over", "part", partName)
		b.importCache[cacheKey] = ""
		return ""
	}

	newPartName := renamedPartName(partName, idx)
	data = b.importSubResources(data, partName, newPartName, src, idx)
	b.addPart(newPartName, data, src)

	newID := b.nextRelID()
	b.extraRels = append(b.extraRels, relationship{ID: newID, Type: rel.Type, Target: strings.TrimPrefix(newPartName, "word/")})
	b.importCache[cacheKey] = newID
	return newID
}

// importSubResources copies an imported part's own relationships (its
// images and similar one-level dependencies) into the merged package
// and returns the part data unchanged. The rels file is rewritten to
// point at the copied targets.
func (b *docxBuilder) importSubResources(data []byte, partName, newPartName string, src *docxPackage, idx int) []byte {
	relsName := relsPartName(partName)
	relsData, ok := src.part(relsName)
	if !ok {
		return data
	}

	var doc relationshipsXML
	if err := xml.Unmarshal(relsData, &doc); err != nil {
		b.logger.Debug("Unreadable part relationships, skipping sub-resources", "part", relsName)
		return data
	}

	relsStr := string(relsData)
	partDir := path.Dir(partName)
	for _, sub := range doc.Rels {
		if sub.TargetMode == "External" {
			continue
		}
		subName := resolvePartName(partDir, sub.Target)
		subData, ok := src.part(subName)
		if !ok {
			continue
		}
		newSubName := renamedPartName(subName, idx)
		b.addPart(newSubName, subData, src)

		newTarget := relativeTarget(partDir, newSubName)
		relsStr = strings.ReplaceAll(relsStr, `Target="`+sub.Target+`"`, `Target="`+newTarget+`"`)
	}

	b.newParts[relsPartName(newPartName)] = []byte(relsStr)
	b.newPartOrder = append(b.newPartOrder, relsPartName(newPartName))
	return data
}

// addPart registers an imported part and the content-type entry it
// needs in the merged package.
func (b *docxBuilder) addPart(name string, data []byte, src *docxPackage) {
	if _, exists := b.newParts[name]; exists {
		return
	}
	b.newParts[name] = data
	b.newPartOrder = append(b.newPartOrder, name)

	srcDefaults, srcOverrides, err := src.contentTypes()
	if err != nil {
		return
	}

	origName := originalPartName(name)
	if ct, ok := srcOverrides["/"+origName]; ok {
		if _, have := b.ctOverrides["/"+name]; !have {
			if _, queued := b.addOverrides["/"+name]; !queued {
				b.addOverrides["/"+name] = ct
				b.overrideOrder = append(b.overrideOrder, "/"+name)
			}
		}
		return
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return
	}
	if _, have := b.ctDefaults[ext]; have {
		return
	}
	if ct, ok := srcDefaults[ext]; ok {
		b.addDefaults[ext] = ct
	} else {
		b.addDefaults[ext] = "application/octet-stream"
	}
}

// dropDanglingHeaderRefs removes header/footer references whose
// relationship does not exist in the merged package; a missing header
// copies as absent rather than producing a broken reference.
func (b *docxBuilder) dropDanglingHeaderRefs(sectPr string) string {
	known := make(map[string]bool, len(b.baseRelIDs)+len(b.extraRels))
	for id := range b.baseRelIDs {
		known[id] = true
	}
	for _, r := range b.extraRels {
		known[r.ID] = true
	}

	return hdrFtrRefRe.ReplaceAllStringFunc(sectPr, func(ref string) string {
		m := relIDRe.FindStringSubmatch(ref)
		if m == nil || !known[m[1]] {
			b.logger.Debug("Dropping dangling header/footer reference", "ref", ref)
			return ""
		}
		return ref
	})
}

func (b *docxBuilder) nextRelID() string {
	for {
		b.relSeq++
		id := fmt.Sprintf("rIdM%d", b.relSeq)
		if !b.baseRelIDs[id] {
			b.baseRelIDs[id] = true
			return id
		}
	}
}

// assemble writes the merged package: the base's parts in their
// original order with the rewritten document body, relationships and
// content types, followed by the imported parts.
func (b *docxBuilder) assemble() ([]byte, error) {
	mergedDoc := b.prefix + strings.Join(b.body, "") + b.finalSectPr + b.suffix

	relsData, err := b.assembleRels()
	if err != nil {
		return nil, err
	}
	ctData, err := b.assembleContentTypes()
	if err != nil {
		return nil, err
	}

	replaced := map[string][]byte{
		"word/document.xml":   []byte(mergedDoc),
		documentRelsName:      relsData,
		"[Content_Types].xml": ctData,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	written := make(map[string]bool)
	for _, name := range b.base.names {
		data := b.base.parts[name]
		if r, ok := replaced[name]; ok {
			data = r
		}
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("write part %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write part %s: %w", name, err)
		}
		written[name] = true
	}

	// The base may lack a rels part entirely when relationships were
	// imported into an unusual package.
	if !written[documentRelsName] && len(b.extraRels) > 0 {
		w, err := zw.Create(documentRelsName)
		if err != nil {
			return nil, fmt.Errorf("write part %s: %w", documentRelsName, err)
		}
		if _, err := w.Write(relsData); err != nil {
			return nil, fmt.Errorf("write part %s: %w", documentRelsName, err)
		}
	}

	for _, name := range b.newPartOrder {
		if written[name] {
			continue
		}
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("write part %s: %w", name, err)
		}
		if _, err := w.Write(b.newParts[name]); err != nil {
			return nil, fmt.Errorf("write part %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize package: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *docxBuilder) assembleRels() ([]byte, error) {
	if len(b.extraRels) == 0 {
		if data, ok := b.base.part(documentRelsName); ok {
			return data, nil
		}
	}

	var sb strings.Builder
	for _, r := range b.extraRels {
		sb.WriteString(`<Relationship Id="` + xmlEscape(r.ID) + `" Type="` + xmlEscape(r.Type) + `" Target="` + xmlEscape(r.Target) + `"`)
		if r.TargetMode != "" {
			sb.WriteString(` TargetMode="` + r.TargetMode + `"`)
		}
		sb.WriteString(`/>`)
	}

	if data, ok := b.base.part(documentRelsName); ok {
		s := string(data)
		end := strings.LastIndex(s, "</Relationships>")
		if end < 0 {
			return nil, fmt.Errorf("malformed %s", documentRelsName)
		}
		return []byte(s[:end] + sb.String() + s[end:]), nil
	}

	return []byte(xml.Header +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		sb.String() + `</Relationships>`), nil
}

func (b *docxBuilder) assembleContentTypes() ([]byte, error) {
	data, _ := b.base.part("[Content_Types].xml")
	if len(b.addDefaults) == 0 && len(b.addOverrides) == 0 {
		return data, nil
	}

	var sb strings.Builder
	exts := make([]string, 0, len(b.addDefaults))
	for ext := range b.addDefaults {
		exts = append(exts, ext)
	}
	// Map order is random; keep output deterministic.
	sort.Strings(exts)
	for _, ext := range exts {
		sb.WriteString(`<Default Extension="` + ext + `" ContentType="` + xmlEscape(b.addDefaults[ext]) + `"/>`)
	}
	for _, part := range b.overrideOrder {
		sb.WriteString(`<Override PartName="` + xmlEscape(part) + `" ContentType="` + xmlEscape(b.addOverrides[part]) + `"/>`)
	}

	s := string(data)
	end := strings.LastIndex(s, "</Types>")
	if end < 0 {
		return nil, fmt.Errorf("malformed [Content_Types].xml")
	}
	return []byte(s[:end] + sb.String() + s[end:]), nil
}

// resolvePartName resolves a relationship target relative to baseDir
// into a package part name.
func resolvePartName(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(baseDir, target))
}

// renamedPartName prefixes the base filename so imported parts never
// collide with the base package's own parts.
func renamedPartName(partName string, idx int) string {
	dir := path.Dir(partName)
	name := fmt.Sprintf("merged%d_%s", idx, path.Base(partName))
	if dir == "." {
		return name
	}
	return dir + "/" + name
}

// originalPartName undoes renamedPartName for content-type lookups.
var mergedPrefixRe = regexp.MustCompile(`merged\d+_`)

func originalPartName(name string) string {
	dir := path.Dir(name)
	base := mergedPrefixRe.ReplaceAllString(path.Base(name), "")
	if dir == "." {
		return base
	}
	return dir + "/" + base
}

// relsPartName returns the name of the rels part for a given part.
func relsPartName(partName string) string {
	dir := path.Dir(partName)
	if dir == "." {
		return "_rels/" + path.Base(partName) + ".rels"
	}
	return dir + "/_rels/" + path.Base(partName) + ".rels"
}

// relativeTarget expresses partName relative to fromDir for use as a
// relationship target.
func relativeTarget(fromDir, partName string) string {
	if strings.HasPrefix(partName, fromDir+"/") {
		return strings.TrimPrefix(partName, fromDir+"/")
	}
	return "/" + partName
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
