// Package server exposes the OCR and receipt analysis HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/zombor/receipt-vision/internal/audit"
	"github.com/zombor/receipt-vision/internal/receipt"
)

// OCR reads text from images
type OCR interface {
	ReadImage(ctx context.Context, imageData []byte) (json.RawMessage, error)
	ReadURL(ctx context.Context, imageURL string) (json.RawMessage, error)
}

// ReceiptProcessor analyzes uploaded receipts
type ReceiptProcessor interface {
	ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string) (*receipt.Receipt, error)
	ProcessReceipts(ctx context.Context, filename string, data []byte, contentType string) ([]*receipt.Receipt, error)
}

// AuditLog lists recorded analysis runs
type AuditLog interface {
	List(offset, limit int) ([]audit.Record, int, error)
	Get(id string) (*audit.Record, error)
}

// Options configures the routes
type Options struct {
	// Title is reported by GET /
	Title string
	// SplitDocuments answers one receipt per analyzed document
	SplitDocuments bool
	// OCRTimeout bounds a single OCR call (no bound when zero)
	OCRTimeout time.Duration
	// Audit enables the audit routes when set
	Audit AuditLog
}

// Server handles HTTP requests
type Server struct {
	ocr      OCR
	receipts ReceiptProcessor
	opts     Options
	mux      *http.ServeMux
	handler  http.Handler

	httpServer *http.Server
}

// NewServer creates a new Server with default mux
func NewServer(ocr OCR, receipts ReceiptProcessor, opts Options) *Server {
	return NewServerWithMux(ocr, receipts, opts, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(ocr OCR, receipts ReceiptProcessor, opts Options, mux *http.ServeMux) *Server {
	s := &Server{
		ocr:      ocr,
		receipts: receipts,
		opts:     opts,
		mux:      mux,
	}
	s.registerRoutes()
	s.handler = recoverPanics(logRequests(s.mux))
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /health/{$}", s.handleHealth)

	s.mux.HandleFunc("POST /ocr", s.handleOCR)
	s.mux.HandleFunc("POST /ocr/{$}", s.handleOCR)
	s.mux.HandleFunc("POST /ocr/upload", s.handleOCRUpload)

	s.mux.HandleFunc("POST /receipt/upload", s.handleReceiptUpload)
	s.mux.HandleFunc("GET /receipt/audits", s.handleListAudits)
	s.mux.HandleFunc("GET /receipt/audits/{id}", s.handleGetAudit)

	s.mux.HandleFunc("/", s.handleNotFound)
}

// Start listens on addr until Shutdown is called. It returns nil at once
// when Shutdown already ran.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	slog.Info("Starting server", "address", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones to finish
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
