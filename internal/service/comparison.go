package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"plagcheck/internal/extract"
	"plagcheck/internal/logger"
	"plagcheck/internal/metrics"
	"plagcheck/internal/model"
	"plagcheck/internal/similarity"
	"plagcheck/internal/storage"
)

const (
	// RequiredDocuments is the number of documents taking part in one comparison.
	RequiredDocuments = 2

	// DefaultMaxDocumentBytes applies when Options.MaxDocumentBytes is not set.
	DefaultMaxDocumentBytes int64 = 10 << 20
	// DefaultMaxScoredRunes applies when Options.MaxScoredRunes is not set.
	DefaultMaxScoredRunes = 200_000
	// DefaultScoreTimeout applies when Options.ScoreTimeout is not set.
	DefaultScoreTimeout = 30 * time.Second

	stagingPrefix  = "uploads"
	cleanupTimeout = 5 * time.Second
)

// Upload is a document received from a client. Content is opened lazily so that
// nothing is read before the request has been validated.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// ComparisonService defines the use cases for comparing two documents.
type ComparisonService interface {
	// Compare stages both uploads, extracts their text, and scores them against each other.
	// Staged copies are removed before Compare returns, whatever the outcome.
	Compare(ctx context.Context, uploads []Upload) (*model.ComparisonResult, error)

	// CompareFiles runs the same pipeline on local files. The files are read in place.
	CompareFiles(ctx context.Context, paths []string) (*model.ComparisonResult, error)
}

// Options tune a ComparisonService. Zero values fall back to defaults.
type Options struct {
	Threshold        float64
	MaxDocumentBytes int64
	// MaxScoredRunes limits the extracted text of each document; longer texts are rejected
	// with ErrDocumentTooLarge before scoring.
	MaxScoredRunes int
	ScoreTimeout   time.Duration
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

type comparisonService struct {
	store        storage.Storage
	threshold    float64
	maxBytes     int64
	maxRunes     int
	scoreTimeout time.Duration
	log          *zap.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

// NewComparisonService constructs a new ComparisonService staging uploads in store.
func NewComparisonService(store storage.Storage, opts Options) ComparisonService {
	if opts.Threshold <= 0 {
		opts.Threshold = similarity.DefaultThreshold
	}
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	if opts.MaxScoredRunes <= 0 {
		opts.MaxScoredRunes = DefaultMaxScoredRunes
	}
	if opts.ScoreTimeout <= 0 {
		opts.ScoreTimeout = DefaultScoreTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &comparisonService{
		store:        store,
		threshold:    opts.Threshold,
		maxBytes:     opts.MaxDocumentBytes,
		maxRunes:     opts.MaxScoredRunes,
		scoreTimeout: opts.ScoreTimeout,
		log:          opts.Logger,
		metrics:      opts.Metrics,
		tracer:       otel.Tracer("plagcheck/internal/service"),
	}
}

func (s *comparisonService) Compare(ctx context.Context, uploads []Upload) (res *model.ComparisonResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ComparisonService.Compare")
	defer func() { s.finish(ctx, span, err) }()

	if len(uploads) != RequiredDocuments {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInputCount, len(uploads))
	}

	docs := make([]model.Document, len(uploads))
	for i, up := range uploads {
		format, err := extract.Detect(up.Filename)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", up.Filename, err)
		}
		if up.Size > s.maxBytes {
			return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrDocumentTooLarge, up.Filename, up.Size, s.maxBytes)
		}
		docs[i] = model.Document{
			Filename:    up.Filename,
			Format:      format,
			Size:        up.Size,
			ContentType: up.ContentType,
		}
	}

	texts := make([]string, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	for i := range uploads {
		g.Go(func() error {
			text, err := s.stageAndExtract(gctx, uploads[i], &docs[i])
			if err != nil {
				return err
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.score(ctx, texts[0], texts[1])
}

func (s *comparisonService) CompareFiles(ctx context.Context, paths []string) (res *model.ComparisonResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ComparisonService.CompareFiles")
	defer func() { s.finish(ctx, span, err) }()

	if len(paths) != RequiredDocuments {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInputCount, len(paths))
	}

	docs := make([]model.Document, len(paths))
	for i, p := range paths {
		format, err := extract.Detect(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		docs[i] = model.Document{Filename: p, Format: format}
		fi, err := os.Stat(p)
		if err != nil {
			return nil, &extract.ExtractionError{Path: p, Format: format, Err: err}
		}
		if fi.Size() > s.maxBytes {
			return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrDocumentTooLarge, p, fi.Size(), s.maxBytes)
		}
		docs[i].Size = fi.Size()
	}

	texts := make([]string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i := range docs {
		g.Go(func() error {
			text, err := s.extract(gctx, docs[i], func() (string, error) {
				return extract.Extract(docs[i].Filename, docs[i].Format)
			})
			if err != nil {
				return err
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.score(ctx, texts[0], texts[1])
}

// stageAndExtract copies one upload into staging storage, reads it back and extracts its text.
// The staged object is deleted on every path out of this function.
func (s *comparisonService) stageAndExtract(ctx context.Context, up Upload, doc *model.Document) (string, error) {
	if up.Open == nil {
		return "", fmt.Errorf("%w: %s has no content", ErrInternal, up.Filename)
	}
	src, err := up.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrInternal, up.Filename, err)
	}
	defer src.Close()

	doc.StorageKey = path.Join(stagingPrefix, uuid.NewString()+strings.ToLower(filepath.Ext(up.Filename)))
	// Put can leave a partial object behind, so release is armed before it runs.
	defer s.release(ctx, doc.StorageKey)

	size := up.Size
	if size <= 0 {
		size = -1
	}
	if _, err := s.store.Put(ctx, doc.StorageKey, io.LimitReader(src, s.maxBytes+1), storage.PutObjectOptions{
		Size:        size,
		ContentType: up.ContentType,
		Metadata: map[string]string{
			"original-filename": up.Filename,
		},
	}); err != nil {
		return "", fmt.Errorf("%w: stage %s: %w", ErrInternal, up.Filename, err)
	}

	data, err := s.readStaged(ctx, doc)
	if err != nil {
		return "", err
	}
	return s.extract(ctx, *doc, func() (string, error) {
		return extract.Parse(data, doc.Format)
	})
}

func (s *comparisonService) readStaged(ctx context.Context, doc *model.Document) ([]byte, error) {
	rc, _, err := s.store.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: read staged %s: %w", ErrInternal, doc.Filename, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read staged %s: %w", ErrInternal, doc.Filename, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrDocumentTooLarge, doc.Filename, s.maxBytes)
	}
	return data, nil
}

// release deletes a staged object. It runs detached from request cancellation
// and only logs failures.
func (s *comparisonService) release(ctx context.Context, key string) {
	log := logger.FromContext(ctx, s.log)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		log.Warn("staged_document_cleanup_failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *comparisonService) extract(ctx context.Context, doc model.Document, fn func() (string, error)) (string, error) {
	_, span := s.tracer.Start(ctx, "extract", trace.WithAttributes(
		attribute.String("document.format", string(doc.Format)),
		attribute.Int64("document.size", doc.Size),
	))
	defer span.End()

	start := time.Now()
	text, err := fn()
	s.metrics.ObserveExtraction(string(doc.Format), time.Since(start), err)
	if err != nil {
		var ee *extract.ExtractionError
		if errors.As(err, &ee) {
			ee.Path = doc.Filename
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return "", err
	}
	if n := utf8.RuneCountInString(text); n > s.maxRunes {
		return "", fmt.Errorf("%w: text of %s has %d characters, limit is %d", ErrDocumentTooLarge, doc.Filename, n, s.maxRunes)
	}
	return text, nil
}

func (s *comparisonService) score(ctx context.Context, a, b string) (*model.ComparisonResult, error) {
	ctx, span := s.tracer.Start(ctx, "score")
	defer span.End()

	sctx, cancel := context.WithTimeout(ctx, s.scoreTimeout)
	defer cancel()
	ratio, err := similarity.RatioContext(sctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("%w: scoring: %w", ErrInternal, err)
	}
	res := &model.ComparisonResult{
		Ratio:       ratio,
		Threshold:   s.threshold,
		Plagiarized: similarity.Exceeds(ratio, s.threshold),
	}
	span.SetAttributes(
		attribute.Float64("similarity.ratio", ratio),
		attribute.Bool("plagiarism.detected", res.Plagiarized),
	)
	s.metrics.ObserveComparison(ratio, res.Plagiarized)

	logger.FromContext(ctx, s.log).Info("comparison_completed",
		zap.Float64("ratio", ratio),
		zap.Float64("threshold", s.threshold),
		zap.Bool("plagiarized", res.Plagiarized),
		zap.Int("text_a_len", len(a)),
		zap.Int("text_b_len", len(b)),
	)
	return res, nil
}

func (s *comparisonService) finish(ctx context.Context, span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	s.metrics.ComparisonFailed()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.FromContext(ctx, s.log).Warn("comparison_failed", zap.Error(err))
}
