package receipt

import (
	"context"
	"log/slog"
)

// EventKind identifies what happened while mapping
type EventKind int

const (
	DocumentStarted EventKind = iota
	FieldObserved
	DocumentFinished
)

func (k EventKind) String() string {
	switch k {
	case DocumentStarted:
		return "document_started"
	case FieldObserved:
		return "field_observed"
	case DocumentFinished:
		return "document_finished"
	}
	return "unknown"
}

// Event describes one step of the mapping. Item is the 1-based line item
// index for item fields and 0 otherwise.
type Event struct {
	Kind       EventKind
	Document   int
	DocType    string
	Item       int
	Field      string
	Value      string
	Confidence float64
}

// EventSink receives mapping events. Implementations must not retain
// the mapper's receipt.
type EventSink interface {
	Emit(Event)
}

// EventFunc adapts a function to EventSink
type EventFunc func(Event)

func (f EventFunc) Emit(e Event) { f(e) }

// MultiSink fans events out to several sinks
type MultiSink []EventSink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// LogSink writes events to a slog.Logger at debug level
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Emit(e Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{slog.Int("document", e.Document)}
	switch e.Kind {
	case DocumentStarted:
		docType := e.DocType
		if docType == "" {
			docType = "N/A"
		}
		attrs = append(attrs, slog.String("doc_type", docType))
		logger.LogAttrs(context.Background(), slog.LevelDebug, "Analyzing receipt", attrs...)
	case FieldObserved:
		if e.Item > 0 {
			attrs = append(attrs, slog.Int("item", e.Item))
		}
		attrs = append(attrs,
			slog.String("field", e.Field),
			slog.String("value", e.Value),
			slog.Float64("confidence", e.Confidence),
		)
		logger.LogAttrs(context.Background(), slog.LevelDebug, "Field recognized", attrs...)
	case DocumentFinished:
		logger.LogAttrs(context.Background(), slog.LevelDebug, "Receipt analyzed", attrs...)
	}
}
