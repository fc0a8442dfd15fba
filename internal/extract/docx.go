package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const (
	wordNS         = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	wordStrictNS   = "http://purl.oclc.org/ooxml/wordprocessingml/main"
	markupCompatNS = "http://schemas.openxmlformats.org/markup-compatibility/2006"

	defaultMainPart = "word/document.xml"

	// maxPartSize caps the decompressed main document part.
	maxPartSize = 64 << 20
)

type packageRelationships struct {
	Relationships []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// parseDocx returns the raw text of a .docx file: paragraph text separated by blank lines,
// tabs and line breaks preserved, everything else dropped.
func parseDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	name := mainPartName(files)
	part, ok := files[name]
	if !ok {
		return "", fmt.Errorf("%s not found in archive", name)
	}
	if part.UncompressedSize64 > maxPartSize {
		return "", fmt.Errorf("%s too large: %d bytes", name, part.UncompressedSize64)
	}

	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	return documentText(io.LimitReader(rc, maxPartSize))
}

// mainPartName resolves the officeDocument relationship from the package rels,
// falling back to the conventional location.
func mainPartName(files map[string]*zip.File) string {
	f, ok := files["_rels/.rels"]
	if !ok {
		return defaultMainPart
	}
	rc, err := f.Open()
	if err != nil {
		return defaultMainPart
	}
	defer rc.Close()

	var rels packageRelationships
	if err := xml.NewDecoder(rc).Decode(&rels); err != nil {
		return defaultMainPart
	}
	for _, r := range rels.Relationships {
		if strings.HasSuffix(r.Type, "/officeDocument") && r.Target != "" {
			return strings.TrimPrefix(path.Clean("/"+r.Target), "/")
		}
	}
	return defaultMainPart
}

func documentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var sb strings.Builder
	var inText, sawRoot bool

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !sawRoot {
				if t.Name.Local != "document" || !isWordNS(t.Name.Space) {
					return "", fmt.Errorf("unexpected root element %q", t.Name.Local)
				}
				sawRoot = true
				continue
			}
			// Fallback repeats the content of the preferred Choice branch.
			if t.Name.Space == markupCompatNS && t.Name.Local == "Fallback" {
				if err := dec.Skip(); err != nil {
					return "", fmt.Errorf("parse document xml: %w", err)
				}
				continue
			}
			if !isWordNS(t.Name.Space) {
				continue
			}
			switch t.Name.Local {
			case "pPr", "rPr", "sectPr":
				// properties hold tab stops and styling, never text
				if err := dec.Skip(); err != nil {
					return "", fmt.Errorf("parse document xml: %w", err)
				}
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}

		case xml.EndElement:
			if !isWordNS(t.Name.Space) {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n\n")
			}

		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	if !sawRoot {
		return "", errors.New("document part is empty")
	}
	return sb.String(), nil
}

func isWordNS(space string) bool {
	return space == wordNS || space == wordStrictNS
}
