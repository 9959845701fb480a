package resource

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/soyeahso/agentforge/internal/store"
)

// MaxDocumentSize caps uploaded documents.
const MaxDocumentSize = 10 << 20

var (
	ErrDocumentTooLarge = errors.New("document exceeds size limit")
	ErrDocumentMissing  = errors.New("document not found")
)

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".py": true, ".js": true, ".json": true,
	".yaml": true, ".yml": true, ".csv": true, ".html": true, ".css": true, ".xml": true,
}

// SanitizeFilename keeps letters, digits, '.', '_', '-' and spaces. An
// empty result becomes "document".
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-' || r == ' ':
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "document"
	}
	return out
}

// Documents stores files attached to agents as document resources.
type Documents struct {
	layout store.Layout
}

// NewDocuments creates a document store over layout.
func NewDocuments(layout store.Layout) *Documents {
	return &Documents{layout: layout}
}

func (d *Documents) path(agentID, filename string) (string, error) {
	if err := store.CheckID(agentID); err != nil {
		return "", err
	}
	return filepath.Join(d.layout.DocumentsDir(agentID), SanitizeFilename(filename)), nil
}

// Save writes r under the agent's documents directory and returns the
// stored filename to be used as the resource value.
func (d *Documents) Save(agentID, filename string, r io.Reader) (string, error) {
	path, err := d.path(agentID, filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("creating documents directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating document: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, MaxDocumentSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxDocumentSize {
		err = ErrDocumentTooLarge
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return filepath.Base(path), nil
}

// List returns the stored document filenames for an agent.
func (d *Documents) List(agentID string) ([]string, error) {
	if err := store.CheckID(agentID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.layout.DocumentsDir(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Delete removes a stored document.
func (d *Documents) Delete(agentID, filename string) error {
	path, err := d.path(agentID, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrDocumentMissing
		}
		return err
	}
	return nil
}

// Extracted is the result of reading a document for context: either its
// text or a note explaining why no text is available.
type Extracted struct {
	Text string
	Note string
}

// Extract reads the text of a stored document. Plain-text formats are
// read as is, PDF and DOCX files are converted to text, and anything else
// yields a note.
func (d *Documents) Extract(agentID, filename string) Extracted {
	path, err := d.path(agentID, filename)
	if err != nil {
		return Extracted{Note: "Error reading file: " + err.Error()}
	}
	ext := strings.ToLower(filepath.Ext(path))

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Extracted{Note: "File not found"}
		}
		return Extracted{Note: "Error reading file: " + err.Error()}
	}

	switch {
	case ext == ".pdf":
		text, err := pdfText(path)
		if err != nil {
			return Extracted{Note: "Error reading PDF: " + err.Error()}
		}
		return Extracted{Text: text}
	case ext == ".docx":
		text, err := docxText(path)
		if err != nil {
			return Extracted{Note: "Error reading Word document: " + err.Error()}
		}
		return Extracted{Text: text}
	case !textExtensions[ext]:
		return Extracted{Note: fmt.Sprintf("Unsupported file type: %s. File saved at: %s", ext, path)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Extracted{Note: "Error reading file: " + err.Error()}
	}
	return Extracted{Text: strings.ToValidUTF8(string(data), "")}
}

// pdfText returns the plain text of every page, one line break after each.
func pdfText(path string) (text string, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		s, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(s)
		b.WriteString("\n")
	}
	return strings.ToValidUTF8(b.String(), ""), nil
}

// docxText returns the body paragraphs of a Word document joined by line
// breaks.
func docxText(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", err
	}
	defer r.Close()
	return paragraphs(r.Editable().GetContent())
}

// paragraphs flattens WordprocessingML: text runs are concatenated, tabs
// and breaks kept, and each w:p ends a line.
func paragraphs(body string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(body))
	var lines []string
	var cur strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				lines = append(lines, cur.String())
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return strings.Join(lines, "\n"), nil
}
