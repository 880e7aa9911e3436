package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/hyperjump/docfill/internal/docerr"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// Namespaces of the WordprocessingML text element (transitional and strict).
const (
	wordNamespace       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	wordStrictNamespace = "http://purl.oclc.org/ooxml/wordprocessingml/main"
)

// partNameRe extracts PartName from Override elements in [Content_Types].xml.
var partNameRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)

// partNameRe2 handles the case where ContentType appears before PartName.
var partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

// OpenDocx validates that content is a zip archive and returns a reader over it.
func OpenDocx(content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, docerr.Malformed("open docx", fmt.Errorf("not a zip: %w", err))
	}
	return zr, nil
}

// MainDocumentPath returns the archive path of the main document part,
// falling back to word/document.xml when [Content_Types].xml does not name one.
func MainDocumentPath(zr *zip.Reader) string {
	if p := findDocxMainDocumentPath(zr); p != "" {
		return p
	}
	return docxDocumentXMLPath
}

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	data, ok, err := readZipFile(zr, contentTypesPath)
	if err != nil || !ok {
		return ""
	}
	content := string(data)
	if matches := partNameRe.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimPrefix(matches[1], "/")
	}
	if matches := partNameRe2.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimPrefix(matches[1], "/")
	}
	return ""
}

func readZipFile(zr *zip.Reader, name string) ([]byte, bool, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, true, fmt.Errorf("open %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return nil, true, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return buf.Bytes(), true, nil
	}
	return nil, false, nil
}

// DocumentText returns the concatenated text of every <w:t> run in the main
// document part. Runs are joined without separators so a placeholder that a
// word processor split across runs ("{na" + "me}") reads back whole.
func DocumentText(content []byte) (string, error) {
	return mainPartText(content, false)
}

// ParagraphText is DocumentText with a line break after each paragraph, for
// display. Trailing empty lines are dropped.
func ParagraphText(content []byte) (string, error) {
	text, err := mainPartText(content, true)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(text, "\n"), nil
}

func mainPartText(content []byte, breakParagraphs bool) (string, error) {
	zr, err := OpenDocx(content)
	if err != nil {
		return "", err
	}
	docPath := MainDocumentPath(zr)
	docXML, ok, err := readZipFile(zr, docPath)
	if err != nil {
		return "", docerr.Malformed("extract docx", err)
	}
	if !ok {
		return "", docerr.Malformed("extract docx", fmt.Errorf("%s not found", docPath))
	}
	text, err := runText(docXML, breakParagraphs)
	if err != nil {
		return "", docerr.Malformed("extract docx", fmt.Errorf("parse %s: %w", docPath, err))
	}
	return text, nil
}

func isTextElement(name xml.Name) bool {
	if name.Local != "t" {
		return false
	}
	switch name.Space {
	case wordNamespace, wordStrictNamespace, "w":
		return true
	}
	return false
}

func isParagraph(name xml.Name) bool {
	return name.Local == "p" && (name.Space == wordNamespace || name.Space == wordStrictNamespace || name.Space == "w")
}

func runText(docXML []byte, breakParagraphs bool) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(docXML))
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if isTextElement(t.Name) {
				inText = true
			}
		case xml.EndElement:
			if isTextElement(t.Name) {
				inText = false
			}
			if breakParagraphs && isParagraph(t.Name) {
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
