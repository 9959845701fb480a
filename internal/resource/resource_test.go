package resource

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T) (*Renderer, *Documents) {
	t.Helper()
	docs := NewDocuments(store.NewLayout(t.TempDir()))
	return NewRenderer(docs), docs
}

func TestRenderNoResources(t *testing.T) {
	r, _ := newRenderer(t)
	assert.Empty(t, r.Render(&domain.Agent{ID: "a1"}))
}

func TestRenderTools(t *testing.T) {
	r, _ := newRenderer(t)
	agent := &domain.Agent{ID: "a1", Resources: []domain.Resource{
		{Type: domain.ResourceTool, Name: "Web Search"},
		{Type: domain.ResourceTool, Name: "ticket_lookup", Description: "Find a support ticket by id"},
	}}

	out := r.Render(agent)
	assert.True(t, strings.HasPrefix(out, "\n=== Available Tools ==="))
	assert.Contains(t, out, "**Web Search**")
	assert.Contains(t, out, "  Usage: When you need to search for information online")
	assert.Contains(t, out, "**ticket_lookup**\n  Description: Find a support ticket by id\n  Note: This is a custom tool.")
	assert.Contains(t, out, "When using tools, describe what you're doing and why.")
}

func TestRenderLinks(t *testing.T) {
	r, _ := newRenderer(t)
	agent := &domain.Agent{ID: "a1", Resources: []domain.Resource{
		{Type: domain.ResourceLink, Name: "Docs", Value: "https://docs.example.com"},
	}}

	out := r.Render(agent)
	assert.Equal(t, "=== Available Links ===\nYou can reference these links for information:\n  - Docs: https://docs.example.com\n", out)
}

func TestRenderDocuments(t *testing.T) {
	r, docs := newRenderer(t)

	short, err := docs.Save("a1", "notes.md", strings.NewReader("# Notes\nremember this"))
	require.NoError(t, err)
	long, err := docs.Save("a1", "big.txt", strings.NewReader(strings.Repeat("a", 2500)))
	require.NoError(t, err)
	binary, err := docs.Save("a1", "slides.pptx", bytes.NewReader([]byte{0x50, 0x4b}))
	require.NoError(t, err)

	agent := &domain.Agent{ID: "a1", Resources: []domain.Resource{
		{Type: domain.ResourceDocument, Name: "Notes", Value: short},
		{Type: domain.ResourceDocument, Name: "Big", Value: long},
		{Type: domain.ResourceDocument, Name: "Slides", Value: binary},
		{Type: domain.ResourceDocument, Name: "Empty"},
	}}

	out := r.Render(agent)
	assert.Contains(t, out, "=== Available Documents ===")
	assert.Contains(t, out, "**Document: Notes**\nContent:\n# Notes\nremember this")
	assert.Contains(t, out, strings.Repeat("a", 2000)+"\n... [Document continues, 2500 total characters]")
	assert.NotContains(t, out, strings.Repeat("a", 2001))
	assert.Contains(t, out, "**Document: Slides**\nPath: slides.pptx\nNote: [Unsupported file type: .pptx.")
	assert.Contains(t, out, "**Document: Empty**\nNo file path specified")
}

func TestRenderMissingDocument(t *testing.T) {
	r, _ := newRenderer(t)
	agent := &domain.Agent{ID: "a1", Resources: []domain.Resource{
		{Type: domain.ResourceDocument, Name: "Gone", Value: "gone.txt"},
	}}
	assert.Contains(t, r.Render(agent), "Path: gone.txt\nNote: [File not found]")
}

func TestComposePrompt(t *testing.T) {
	assert.Equal(t, "hello", ComposePrompt("", "hello"))
	assert.Equal(t, "CTX\n\n=== User Request ===\nhello", ComposePrompt("CTX", "hello"))
}

func TestLookupTool(t *testing.T) {
	info, ok := LookupTool("Code Executor")
	require.True(t, ok)
	assert.Equal(t, "code_executor", info.Key)

	_, ok = LookupTool("teleporter")
	assert.False(t, ok)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.txt":        "report.txt",
		"../../etc/passwd":  "passwd",
		"my file (1).md":    "my file 1.md",
		"???":               "document",
		"..":                "document",
		"notes_v2-final.md": "notes_v2-final.md",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, SanitizeFilename(in))
		})
	}
}

func TestDocumentsSaveListDelete(t *testing.T) {
	_, docs := newRenderer(t)

	name, err := docs.Save("a1", "faq.txt", strings.NewReader("q and a"))
	require.NoError(t, err)
	assert.Equal(t, "faq.txt", name)

	names, err := docs.List("a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"faq.txt"}, names)

	require.NoError(t, docs.Delete("a1", "faq.txt"))
	assert.ErrorIs(t, docs.Delete("a1", "faq.txt"), ErrDocumentMissing)

	names, err = docs.List("a2")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDocumentsSaveTooLarge(t *testing.T) {
	_, docs := newRenderer(t)
	_, err := docs.Save("a1", "huge.txt", bytes.NewReader(make([]byte, MaxDocumentSize+1)))
	assert.ErrorIs(t, err, ErrDocumentTooLarge)

	_, statErr := os.Stat(filepath.Join(docs.layout.DocumentsDir("a1"), "huge.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

// minimalPDF builds a one-page PDF showing text in Helvetica.
func minimalPDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 24 Tf 72 700 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

// minimalDOCX builds a Word document whose body holds paragraphs.
func minimalDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&body, "<w:p><w:r><w:t>%s</w:t></w:r></w:p>", p)
	}
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() + `</w:body></w:document>`,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractPDF(t *testing.T) {
	docs := NewDocuments(store.NewLayout(t.TempDir()))
	name, err := docs.Save("a1", "report.pdf", bytes.NewReader(minimalPDF("Quarterly revenue grew")))
	require.NoError(t, err)

	ex := docs.Extract("a1", name)
	assert.Empty(t, ex.Note)
	assert.Contains(t, ex.Text, "Quarterly revenue grew")
}

func TestExtractDOCX(t *testing.T) {
	docs := NewDocuments(store.NewLayout(t.TempDir()))
	name, err := docs.Save("a1", "brief.docx", bytes.NewReader(minimalDOCX(t, "First paragraph", "Second paragraph")))
	require.NoError(t, err)

	ex := docs.Extract("a1", name)
	assert.Empty(t, ex.Note)
	assert.Equal(t, "First paragraph\nSecond paragraph", ex.Text)
}

func TestExtractCorruptDocuments(t *testing.T) {
	docs := NewDocuments(store.NewLayout(t.TempDir()))
	pdfName, err := docs.Save("a1", "broken.pdf", strings.NewReader("not a pdf at all"))
	require.NoError(t, err)
	docxName, err := docs.Save("a1", "broken.docx", strings.NewReader("not a zip"))
	require.NoError(t, err)

	ex := docs.Extract("a1", pdfName)
	assert.Empty(t, ex.Text)
	assert.True(t, strings.HasPrefix(ex.Note, "Error reading PDF: "), ex.Note)

	ex = docs.Extract("a1", docxName)
	assert.Empty(t, ex.Text)
	assert.True(t, strings.HasPrefix(ex.Note, "Error reading Word document: "), ex.Note)
}

func TestRenderPDFDocument(t *testing.T) {
	r, docs := newRenderer(t)
	name, err := docs.Save("a1", "deck.pdf", bytes.NewReader(minimalPDF("Launch checklist")))
	require.NoError(t, err)

	agent := &domain.Agent{ID: "a1", Resources: []domain.Resource{
		{Type: domain.ResourceDocument, Name: "Deck", Value: name},
	}}
	out := r.Render(agent)
	assert.Contains(t, out, "**Document: Deck**\nContent:\n")
	assert.Contains(t, out, "Launch checklist")
}

func TestParagraphsKeepsTabsAndBreaks(t *testing.T) {
	body := `<w:document xmlns:w="x"><w:body>` +
		`<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>c</w:t><w:br/><w:t>d</w:t></w:r></w:p>` +
		`<w:p></w:p></w:body></w:document>`
	got, err := paragraphs(body)
	require.NoError(t, err)
	assert.Equal(t, "a\tb\nc\nd\n", got)
}
