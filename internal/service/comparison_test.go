package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"plagcheck/internal/extract"
	"plagcheck/internal/metrics"
	"plagcheck/internal/model"
	"plagcheck/internal/storage"
	storeMocks "plagcheck/internal/storage/mocks"
)

func upload(name, content string) Upload {
	return Upload{
		Filename:    name,
		ContentType: "application/octet-stream",
		Size:        int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func docx(t *testing.T, paragraphs ...string) string {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString("<w:p><w:r><w:t>" + p + "</w:t></w:r></w:p>")
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.String()
}

// stagedFiles lists regular files left behind in a disk staging directory.
func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func newDiskService(t *testing.T, opts Options) (ComparisonService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewDisk(dir)
	require.NoError(t, err)
	return NewComparisonService(store, opts), dir
}

func TestComparisonService_Compare(t *testing.T) {
	tests := []struct {
		name       string
		uploads    func(t *testing.T) []Upload
		wantResp   model.ComparisonResponse
		wantErr    error
		wantExtErr bool
	}{
		{
			name: "identical plain text",
			uploads: func(t *testing.T) []Upload {
				return []Upload{upload("a.txt", "the same essay"), upload("b.txt", "the same essay")}
			},
			wantResp: model.ComparisonResponse{Similarity: "100.00%", Status: model.StatusPlagiarismDetected},
		},
		{
			name: "disjoint plain text",
			uploads: func(t *testing.T) []Upload {
				return []Upload{upload("a.txt", "abcdef"), upload("b.txt", "uvwxyz")}
			},
			wantResp: model.ComparisonResponse{Similarity: "0.00%", Status: model.StatusPlagiarismFree},
		},
		{
			name: "text against docx",
			uploads: func(t *testing.T) []Upload {
				return []Upload{
					upload("a.txt", "The quick brown fox"),
					upload("b.DOCX", docx(t, "The quick brown fox")),
				}
			},
			// 2*19 / (19+21)
			wantResp: model.ComparisonResponse{Similarity: "95.00%", Status: model.StatusPlagiarismDetected},
		},
		{
			name: "corrupted docx",
			uploads: func(t *testing.T) []Upload {
				return []Upload{upload("a.txt", "hello"), upload("b.docx", "not a zip archive")}
			},
			wantExtErr: true,
		},
		{
			name: "single document",
			uploads: func(t *testing.T) []Upload {
				return []Upload{upload("a.txt", "hello")}
			},
			wantErr: ErrInvalidInputCount,
		},
		{
			name: "three documents",
			uploads: func(t *testing.T) []Upload {
				return []Upload{upload("a.txt", "a"), upload("b.txt", "b"), upload("c.txt", "c")}
			},
			wantErr: ErrInvalidInputCount,
		},
		{
			name: "unsupported format",
			uploads: func(t *testing.T) []Upload {
				return []Upload{upload("a.txt", "hello"), upload("b.pdf", "%PDF-1.7")}
			},
			wantErr: extract.ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, dir := newDiskService(t, Options{Threshold: 0.7})

			res, err := svc.Compare(context.Background(), tt.uploads(t))

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			case tt.wantExtErr:
				var ee *extract.ExtractionError
				require.ErrorAs(t, err, &ee)
				assert.Equal(t, "b.docx", ee.Path)
				assert.Equal(t, model.FormatDocx, ee.Format)
				assert.Nil(t, res)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantResp, res.Response())
				assert.Equal(t, 0.7, res.Threshold)
			}
			assert.Empty(t, stagedFiles(t, dir))
		})
	}
}

func TestComparisonService_Compare_NothingOpenedOnValidationFailure(t *testing.T) {
	store := new(storeMocks.MockStorage)
	svc := NewComparisonService(store, Options{})

	opened := false
	tracked := Upload{Filename: "a.txt", Size: 1, Open: func() (io.ReadCloser, error) {
		opened = true
		return io.NopCloser(strings.NewReader("a")), nil
	}}

	_, err := svc.Compare(context.Background(), []Upload{tracked})
	assert.ErrorIs(t, err, ErrInvalidInputCount)

	_, err = svc.Compare(context.Background(), []Upload{tracked, upload("b.rtf", "b")})
	assert.ErrorIs(t, err, extract.ErrUnsupportedFormat)

	assert.False(t, opened)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestComparisonService_Compare_DocumentTooLarge(t *testing.T) {
	t.Run("declared size", func(t *testing.T) {
		svc, dir := newDiskService(t, Options{MaxDocumentBytes: 4})
		_, err := svc.Compare(context.Background(), []Upload{upload("a.txt", "abc"), upload("b.txt", "abcde")})
		assert.ErrorIs(t, err, ErrDocumentTooLarge)
		assert.Empty(t, stagedFiles(t, dir))
	})

	t.Run("undeclared size", func(t *testing.T) {
		svc, dir := newDiskService(t, Options{MaxDocumentBytes: 4})
		big := upload("b.txt", "abcdefgh")
		big.Size = 0
		_, err := svc.Compare(context.Background(), []Upload{upload("a.txt", "abc"), big})
		assert.ErrorIs(t, err, ErrDocumentTooLarge)
		assert.Empty(t, stagedFiles(t, dir))
	})
}

func TestComparisonService_Compare_StorageFailures(t *testing.T) {
	t.Run("put fails", func(t *testing.T) {
		store := new(storeMocks.MockStorage)
		store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{}, errors.New("disk full"))
		store.On("Delete", mock.Anything, mock.Anything).Return(nil)

		svc := NewComparisonService(store, Options{})
		_, err := svc.Compare(context.Background(), []Upload{upload("a.txt", "x"), upload("b.txt", "y")})

		assert.ErrorIs(t, err, ErrInternal)
		assert.ErrorContains(t, err, "disk full")
		// every staging key that was handed out is released, even after a failed Put
		putKeys := map[string]bool{}
		for _, c := range store.Calls {
			if c.Method == "Put" {
				putKeys[c.Arguments.String(1)] = true
			}
		}
		for _, c := range store.Calls {
			if c.Method == "Delete" {
				assert.True(t, putKeys[c.Arguments.String(1)])
				delete(putKeys, c.Arguments.String(1))
			}
		}
		assert.Empty(t, putKeys)
	})

	t.Run("open fails", func(t *testing.T) {
		store := new(storeMocks.MockStorage)
		svc := NewComparisonService(store, Options{})
		broken := Upload{Filename: "b.txt", Size: 1, Open: func() (io.ReadCloser, error) {
			return nil, errors.New("multipart gone")
		}}
		store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil).Maybe()
		store.On("Get", mock.Anything, mock.Anything).
			Return(io.NopCloser(strings.NewReader("x")), storage.ObjectInfo{}, nil).Maybe()
		store.On("Delete", mock.Anything, mock.Anything).Return(nil).Maybe()

		_, err := svc.Compare(context.Background(), []Upload{upload("a.txt", "x"), broken})
		assert.ErrorIs(t, err, ErrInternal)
	})

	t.Run("cleanup failure is logged only", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		store := new(storeMocks.MockStorage)
		store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "uploads/") && strings.HasSuffix(key, ".txt")
		}), mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
			return opt.Metadata["original-filename"] != ""
		})).Return(storage.ObjectInfo{}, nil)
		store.On("Get", mock.Anything, mock.Anything).
			Return(io.NopCloser(strings.NewReader("same")), storage.ObjectInfo{}, nil).Once()
		store.On("Get", mock.Anything, mock.Anything).
			Return(io.NopCloser(strings.NewReader("same")), storage.ObjectInfo{}, nil).Once()
		store.On("Delete", mock.Anything, mock.Anything).Return(errors.New("permission denied"))

		svc := NewComparisonService(store, Options{Logger: zap.New(core)})
		res, err := svc.Compare(context.Background(), []Upload{upload("a.TXT", "same"), upload("b.txt", "same")})

		require.NoError(t, err)
		assert.Equal(t, 1.0, res.Ratio)
		assert.Equal(t, 2, logs.FilterMessage("staged_document_cleanup_failed").Len())
		store.AssertNumberOfCalls(t, "Delete", 2)
	})
}

func TestComparisonService_Compare_CanceledContextStillCleansUp(t *testing.T) {
	store := new(storeMocks.MockStorage)
	ctx, cancel := context.WithCancel(context.Background())

	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(storage.ObjectInfo{}, context.Canceled)
	store.On("Delete", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), mock.Anything).
		Return(nil)

	svc := NewComparisonService(store, Options{})
	_, err := svc.Compare(ctx, []Upload{upload("a.txt", "x"), upload("b.txt", "y")})

	assert.ErrorIs(t, err, context.Canceled)
	store.AssertNumberOfCalls(t, "Delete", 2)
}

func TestComparisonService_Compare_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	svc, _ := newDiskService(t, Options{Metrics: m})

	_, err = svc.Compare(context.Background(), []Upload{upload("a.txt", "same"), upload("b.txt", "same")})
	require.NoError(t, err)
	_, err = svc.Compare(context.Background(), []Upload{upload("a.txt", "same"), upload("b.docx", "junk")})
	require.Error(t, err)

	expected := `
# HELP plagcheck_comparisons_total Document comparisons by outcome.
# TYPE plagcheck_comparisons_total counter
plagcheck_comparisons_total{outcome="failed"} 1
plagcheck_comparisons_total{outcome="plagiarism_detected"} 1
# HELP plagcheck_extraction_failures_total Documents that could not be reduced to text.
# TYPE plagcheck_extraction_failures_total counter
plagcheck_extraction_failures_total{format="docx"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"plagcheck_comparisons_total", "plagcheck_extraction_failures_total"))
}

func TestComparisonService_Threshold(t *testing.T) {
	// "abcd" vs "bcde" scores exactly 0.75
	uploads := func() []Upload { return []Upload{upload("a.txt", "abcd"), upload("b.txt", "bcde")} }

	strict, _ := newDiskService(t, Options{Threshold: 0.75})
	res, err := strict.Compare(context.Background(), uploads())
	require.NoError(t, err)
	assert.False(t, res.Plagiarized)
	assert.Equal(t, "75.00%", res.Percentage())

	lenient, _ := newDiskService(t, Options{Threshold: 0.5})
	res, err = lenient.Compare(context.Background(), uploads())
	require.NoError(t, err)
	assert.True(t, res.Plagiarized)

	def, _ := newDiskService(t, Options{})
	res, err = def.Compare(context.Background(), uploads())
	require.NoError(t, err)
	assert.Equal(t, 0.7, res.Threshold)
	assert.True(t, res.Plagiarized)
}

func TestComparisonService_CompareFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}
	a := write("a.txt", "The quick brown fox")
	b := write("b.docx", docx(t, "The quick brown fox"))
	bad := write("bad.docx", "garbage")

	svc := NewComparisonService(new(storeMocks.MockStorage), Options{})

	res, err := svc.CompareFiles(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, "95.00%", res.Percentage())
	assert.FileExists(t, a)
	assert.FileExists(t, b)

	_, err = svc.CompareFiles(context.Background(), []string{a, bad})
	var ee *extract.ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, bad, ee.Path)

	_, err = svc.CompareFiles(context.Background(), []string{a, filepath.Join(dir, "missing.txt")})
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = svc.CompareFiles(context.Background(), []string{a})
	assert.ErrorIs(t, err, ErrInvalidInputCount)

	small := NewComparisonService(new(storeMocks.MockStorage), Options{MaxDocumentBytes: 5})
	_, err = small.CompareFiles(context.Background(), []string{a, a})
	assert.ErrorIs(t, err, ErrDocumentTooLarge)
}

func TestComparisonService_ScoredTextLimit(t *testing.T) {
	svc, dir := newDiskService(t, Options{MaxScoredRunes: 5})

	// "héllo" is six bytes but five characters
	res, err := svc.Compare(context.Background(), []Upload{upload("a.txt", "héllo"), upload("b.txt", "hallo")})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, res.Ratio, 1e-12)

	_, err = svc.Compare(context.Background(), []Upload{upload("a.txt", "hello"), upload("b.txt", "hello!")})
	assert.ErrorIs(t, err, ErrDocumentTooLarge)
	assert.Empty(t, stagedFiles(t, dir))

	_, err = svc.Compare(context.Background(), []Upload{upload("a.txt", "hello"), upload("b.docx", docx(t, "hello"))})
	assert.ErrorIs(t, err, ErrDocumentTooLarge, "docx text gains paragraph breaks")
}

func TestComparisonService_ScoringStopsWithContext(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(a, []byte("some text"), 0o644))

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	svc := NewComparisonService(nil, Options{Metrics: m})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := svc.CompareFiles(ctx, []string{a, a})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, context.Canceled)

	expected := `
# HELP plagcheck_comparisons_total Document comparisons by outcome.
# TYPE plagcheck_comparisons_total counter
plagcheck_comparisons_total{outcome="failed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "plagcheck_comparisons_total"))
}
