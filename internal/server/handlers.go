package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/receipt-vision/internal/audit"
	"github.com/zombor/receipt-vision/internal/response"
	"github.com/zombor/receipt-vision/internal/scanning"
)

const (
	maxUploadSize  = int64(50 << 20) // 50MB
	maxJSONBody    = int64(1 << 20)
	multipartSlack = int64(1 << 20)

	defaultAuditLimit = 20
	maxAuditLimit     = 100
)

// writeEnvelope writes e, logging encode failures
func writeEnvelope(w http.ResponseWriter, status int, e response.Envelope) {
	if err := response.Write(w, status, e); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeFailure(w http.ResponseWriter, e response.Error, data any) {
	writeEnvelope(w, e.Status, response.Failed(e, data))
}

// writeError maps err onto the error catalogue
func writeError(w http.ResponseWriter, err error) {
	if werr := response.WriteError(w, err); werr != nil {
		slog.Error("Error encoding response", "error", werr)
	}
}

// handleRoot reports the service title
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"server": s.opts.Title}); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, response.Success(nil))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, response.NotFound, nil)
}

type ocrRequest struct {
	URLImage string `json:"url_image"`
}

// handleOCR runs OCR on an image the provider fetches by URL
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeFailure(w, response.InvalidContentType, nil)
		return
	}

	var req ocrRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&req); err != nil {
		slog.Debug("Invalid OCR request body", "error", err)
		writeFailure(w, response.ValidationError("request body must be a JSON object with url_image"), nil)
		return
	}
	req.URLImage = strings.TrimSpace(req.URLImage)
	if req.URLImage == "" {
		writeFailure(w, response.ValidationError("url_image is required"), nil)
		return
	}

	ctx, cancel := s.ocrContext(r.Context())
	defer cancel()

	raw, err := s.ocr.ReadURL(ctx, req.URLImage)
	if err != nil {
		slog.Error("Error reading image by URL", "url", req.URLImage, "error", err)
		writeError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, response.Success(raw))
}

// handleOCRUpload re-encodes the uploaded image as JPEG before OCR
func (s *Server) handleOCRUpload(w http.ResponseWriter, r *http.Request) {
	up, ok := readUpload(w, r)
	if !ok {
		return
	}

	jpegData, err := scanning.ConvertToJPEG(up.data, up.contentType)
	if err != nil {
		slog.Error("Error converting upload to JPEG", "filename", up.filename, "content_type", up.contentType, "error", err)
		writeError(w, err)
		return
	}

	ctx, cancel := s.ocrContext(r.Context())
	defer cancel()

	raw, err := s.ocr.ReadImage(ctx, jpegData)
	if err != nil {
		slog.Error("Error reading uploaded image", "filename", up.filename, "error", err)
		writeError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, response.Success(raw))
}

// handleReceiptUpload analyzes an uploaded receipt
func (s *Server) handleReceiptUpload(w http.ResponseWriter, r *http.Request) {
	up, ok := readUpload(w, r)
	if !ok {
		return
	}

	if s.opts.SplitDocuments {
		receipts, err := s.receipts.ProcessReceipts(r.Context(), up.filename, up.data, up.contentType)
		if err != nil {
			slog.Error("Error processing receipt", "filename", up.filename, "error", err)
			writeError(w, err)
			return
		}
		writeEnvelope(w, http.StatusOK, response.Success(receipts))
		return
	}

	rec, err := s.receipts.ProcessReceipt(r.Context(), up.filename, up.data, up.contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", up.filename, "error", err)
		writeError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, response.Success(rec))
}

// handleListAudits pages through recorded analysis runs, newest first
func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	if s.opts.Audit == nil {
		writeFailure(w, response.NotFound, nil)
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeFailure(w, response.ValidationError("offset must be a non-negative integer"), nil)
		return
	}
	limit, err := queryInt(r, "limit", defaultAuditLimit)
	if err != nil || limit < 1 || limit > maxAuditLimit {
		writeFailure(w, response.ValidationError("limit must be between 1 and %d", maxAuditLimit), nil)
		return
	}

	records, total, err := s.opts.Audit.List(offset, limit)
	if err != nil {
		slog.Error("Error listing audit records", "error", err)
		writeError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, response.SuccessWithSize(records, total))
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	if s.opts.Audit == nil {
		writeFailure(w, response.NotFound, nil)
		return
	}

	id := r.PathValue("id")
	rec, err := s.opts.Audit.Get(id)
	if errors.Is(err, audit.ErrNotFound) {
		writeFailure(w, response.NotFound, nil)
		return
	}
	if err != nil {
		slog.Error("Error getting audit record", "id", id, "error", err)
		writeError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, response.Success(rec))
}

func (s *Server) ocrContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.OCRTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.OCRTimeout)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

type upload struct {
	filename    string
	contentType string
	data        []byte
}

// readUpload reads the multipart "file" field, answering the client itself
// when the upload is unusable.
func readUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+multipartSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, response.ValidationError("File is too large. Maximum size is 50MB."), nil)
			return upload{}, false
		}
		writeFailure(w, response.ValidationError("multipart/form-data body with a file field is required"), nil)
		return upload{}, false
	}
	defer r.MultipartForm.RemoveAll()

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeFailure(w, response.ValidationError("file is required"), nil)
		return upload{}, false
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		writeFailure(w, response.ValidationError("File is too large. Maximum size is 50MB."), nil)
		return upload{}, false
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeFailure(w, response.InternalServerError, nil)
		return upload{}, false
	}
	if len(data) == 0 {
		writeFailure(w, response.ValidationError("file is empty"), nil)
		return upload{}, false
	}

	return upload{
		filename:    header.Filename,
		contentType: detectContentType(header.Header.Get("Content-Type"), header.Filename, data),
		data:        data,
	}, true
}

// detectContentType prefers the part header, then the extension, then sniffing
func detectContentType(declared, filename string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return http.DetectContentType(data)
}
