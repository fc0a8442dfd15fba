package model

// Format identifies the declared kind of an uploaded document.
type Format string

const (
	FormatText Format = "txt"
	FormatDocx Format = "docx"
)

// Document is an uploaded file awaiting extraction.
// It only lives for the duration of a single comparison request; StorageKey
// points at the staged copy, which is removed once extraction finishes.
type Document struct {
	Filename    string `json:"filename"`
	Format      Format `json:"format"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	StorageKey  string `json:"storage_key,omitempty"`
}
