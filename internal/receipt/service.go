package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zombor/receipt-vision/internal/document"
	"github.com/zombor/receipt-vision/internal/scanning"
)

// IDGenerator generates unique IDs for analysis runs
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Run collects the events of one analysis run
type Run interface {
	EventSink
	Commit() error
}

// Recorder starts a Run per analyzed upload
type Recorder interface {
	Begin(id string) Run
}

// Service analyzes uploaded receipts
type Service struct {
	analyzer    scanning.Analyzer
	storage     Storage
	idGenerator IDGenerator
	sink        EventSink
	recorder    Recorder
	timeout     time.Duration
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithSink sets the sink every mapping event is sent to
func WithSink(sink EventSink) ServiceOption {
	return func(s *Service) { s.sink = sink }
}

// WithRecorder records the events of each upload as a separate run
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithTimeout bounds a single provider analysis
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

// WithIDGenerator replaces the uuid run id generator
func WithIDGenerator(g IDGenerator) ServiceOption {
	return func(s *Service) { s.idGenerator = g }
}

// NewService creates a new Service
func NewService(analyzer scanning.Analyzer, storage Storage, opts ...ServiceOption) *Service {
	s := &Service{
		analyzer:    analyzer,
		storage:     storage,
		idGenerator: uuidGenerator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	if unsafeChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// ProcessReceipt analyzes an uploaded receipt and maps every document it
// contains onto a single Receipt
func (s *Service) ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Receipt, error) {
	var r *Receipt
	err := s.analyze(ctx, filename, data, contentType, func(docs []document.Document, sink EventSink) {
		mapped := Map(docs, sink)
		r = &mapped
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ProcessReceipts analyzes an uploaded receipt and returns one Receipt per
// document found in it
func (s *Service) ProcessReceipts(ctx context.Context, filename string, data []byte, contentType string) ([]*Receipt, error) {
	var receipts []*Receipt
	err := s.analyze(ctx, filename, data, contentType, func(docs []document.Document, sink EventSink) {
		mapped := MapEach(docs, sink)
		receipts = make([]*Receipt, len(mapped))
		for i := range mapped {
			receipts[i] = &mapped[i]
		}
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

func (s *Service) analyze(ctx context.Context, filename string, data []byte, contentType string, mapDocs func([]document.Document, EventSink)) error {
	id := s.idGenerator.Generate()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return fmt.Errorf("saving file: %w", err)
	}
	defer func() {
		if err := s.storage.Delete(savedPath); err != nil {
			slog.Warn("Failed to delete upload", "path", savedPath, "error", err)
		}
	}()

	stored, err := s.storage.Get(savedPath)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	docs, err := s.analyzer.Analyze(ctx, stored, contentType)
	if err != nil {
		slog.Error("Failed to analyze receipt",
			"id", id,
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return fmt.Errorf("analyzing receipt: %w", err)
	}
	slog.Info("Receipt analyzed",
		"id", id,
		"documents", len(docs),
		"duration", time.Since(start),
	)

	sinks := MultiSink{s.sink}
	var run Run
	if s.recorder != nil {
		run = s.recorder.Begin(id)
		sinks = append(sinks, run)
	}

	mapDocs(docs, sinks)

	if run != nil {
		if err := run.Commit(); err != nil {
			slog.Warn("Failed to record analysis", "id", id, "error", err)
		}
	}
	return nil
}
