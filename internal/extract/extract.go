// Package extract reduces uploaded documents to their raw text.
//
// Supported formats:
//   - .txt  plain text, returned verbatim
//   - .docx Office Open XML word-processing document (ZIP container -> main document part)
//
// Formatting, styles, images and structural markup are discarded.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"plagcheck/internal/model"
)

// ErrUnsupportedFormat is returned for any format other than plain text and docx.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ExtractionError reports a document that could not be reduced to text:
// unreadable, corrupt, or not actually in its declared format.
type ExtractionError struct {
	Path   string
	Format model.Format
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Path, e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Detect returns the document format implied by the file extension.
func Detect(filename string) (model.Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return model.FormatText, nil
	case ".docx":
		return model.FormatDocx, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// SupportedExtensions lists the accepted file extensions.
func SupportedExtensions() []string {
	return []string{".txt", ".docx"}
}

// Extract reads the file at path and returns its text. The file is left untouched.
func Extract(path string, format model.Format) (string, error) {
	if err := checkFormat(format); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Format: format, Err: err}
	}
	text, err := Parse(data, format)
	if err != nil {
		var ee *ExtractionError
		if errors.As(err, &ee) {
			ee.Path = path
		}
		return "", err
	}
	return text, nil
}

// Parse returns the text held in data, interpreted as format.
func Parse(data []byte, format model.Format) (string, error) {
	switch format {
	case model.FormatText:
		return parseText(data), nil
	case model.FormatDocx:
		text, err := parseDocx(data)
		if err != nil {
			return "", &ExtractionError{Format: format, Err: err}
		}
		return text, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func checkFormat(format model.Format) error {
	switch format {
	case model.FormatText, model.FormatDocx:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
