// Package docx extracts the plain text of Office Open XML word processing
// documents.
package docx

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	wordNS       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	documentPart = "word/document.xml"
)

// ErrNotDocx is returned when the file is not a word processing document.
var ErrNotDocx = errors.New("not a docx document")

// ExtractFile returns the text of the document at path, one line per
// paragraph.
func ExtractFile(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotDocx, err)
	}
	defer func() { _ = zr.Close() }()
	return extract(&zr.Reader)
}

// Extract is ExtractFile over an in-memory archive.
func Extract(r io.ReaderAt, size int64) (string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotDocx, err)
	}
	return extract(zr)
}

func extract(zr *zip.Reader) (string, error) {
	for _, f := range zr.File {
		if f.Name != documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", documentPart, err)
		}
		defer func() { _ = rc.Close() }()
		return paragraphs(rc)
	}
	return "", fmt.Errorf("%w: missing %s", ErrNotDocx, documentPart)
}

// paragraphs walks the body, concatenating the text runs of each w:p.
// Tabs and breaks inside a run are kept; paragraphs are joined with "\n".
func paragraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var lines []string
	var cur strings.Builder
	inPara := false
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", documentPart, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				inPara = true
				cur.Reset()
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				if inPara {
					lines = append(lines, cur.String())
				}
				inPara = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
