package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/hyperjump/docfill/internal/docerr"
)

// PDFDocument summarises a converted rendition.
type PDFDocument struct {
	Pages int
	Text  string
}

// PDFInfo parses content as a PDF and returns its page count and plain text.
// Pages whose text cannot be decoded contribute nothing to Text.
func PDFInfo(content []byte) (*PDFDocument, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, docerr.Malformed("open pdf", err)
	}
	numPages := r.NumPage()
	if numPages < 1 {
		return nil, docerr.Malformed("open pdf", fmt.Errorf("document has no pages"))
	}
	var buf bytes.Buffer
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteByte('\n')
		}
	}
	return &PDFDocument{Pages: numPages, Text: buf.String()}, nil
}
