package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/receipt-vision/internal/document"
)

const (
	receiptModel     = "prebuilt-receipt"
	receiptLocale    = "ja-JP"
	formAPIVersion   = "2023-07-31"
	operationHeader  = "Operation-Location"
	defaultPollEvery = time.Second
)

// FormRecognizer analyzes receipts with the Azure Form Recognizer
// prebuilt receipt model. Analysis is a long running operation: the
// document is submitted, then the operation is polled until it finishes.
type FormRecognizer struct {
	endpoint  string
	apiKey    string
	client    *http.Client
	pollEvery time.Duration
}

// NewFormRecognizer creates a FormRecognizer analyzer
func NewFormRecognizer(endpoint, apiKey string, client *http.Client, pollEvery time.Duration) (*FormRecognizer, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("form recognizer endpoint is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("form recognizer api key is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if pollEvery <= 0 {
		pollEvery = defaultPollEvery
	}

	return &FormRecognizer{
		endpoint:  strings.TrimSuffix(endpoint, "/"),
		apiKey:    apiKey,
		client:    client,
		pollEvery: pollEvery,
	}, nil
}

type analyzeOperation struct {
	Status        string                  `json:"status"`
	AnalyzeResult *document.AnalyzeResult `json:"analyzeResult"`
	Error         json.RawMessage         `json:"error,omitempty"`
}

// Analyze submits the document and waits for the analysis to finish
func (f *FormRecognizer) Analyze(ctx context.Context, data []byte, contentType string) ([]document.Document, error) {
	operationURL, err := f.submit(ctx, data)
	if err != nil {
		return nil, err
	}

	for {
		op, retryAfter, err := f.poll(ctx, operationURL)
		if err != nil {
			return nil, err
		}

		switch strings.ToLower(op.Status) {
		case "succeeded":
			if op.AnalyzeResult == nil {
				return nil, malformed("reading analysis result", fmt.Errorf("succeeded without analyzeResult"))
			}
			return op.AnalyzeResult.Documents, nil
		case "failed", "canceled":
			body := string(op.Error)
			if body == "" {
				body = op.Status
			}
			return nil, &RejectedError{Status: http.StatusOK, Body: body}
		case "notstarted", "running":
		default:
			return nil, malformed("reading analysis status", fmt.Errorf("unknown status %q", op.Status))
		}

		wait := f.pollEvery
		if retryAfter > 0 {
			wait = retryAfter
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, classifyTransportError("waiting for analysis", ctx.Err())
		case <-timer.C:
		}
	}
}

func (f *FormRecognizer) submit(ctx context.Context, data []byte) (string, error) {
	u := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze", f.endpoint, receiptModel)
	q := url.Values{}
	q.Set("api-version", formAPIVersion)
	q.Set("locale", receiptLocale)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u+"?"+q.Encode(), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(subscriptionKeyHeader, f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", classifyTransportError("submitting document", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", &RejectedError{Status: resp.StatusCode, Body: string(body)}
	}

	operationURL := resp.Header.Get(operationHeader)
	if operationURL == "" {
		return "", malformed("submitting document", fmt.Errorf("missing %s header", operationHeader))
	}
	return operationURL, nil
}

func (f *FormRecognizer) poll(ctx context.Context, operationURL string) (*analyzeOperation, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set(subscriptionKeyHeader, f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, classifyTransportError("polling analysis", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, classifyTransportError("reading analysis", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, 0, &RejectedError{Status: resp.StatusCode, Body: string(body)}
	}

	var op analyzeOperation
	if err := json.Unmarshal(body, &op); err != nil {
		return nil, 0, malformed("decoding analysis", err)
	}

	var retryAfter time.Duration
	if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
		retryAfter = time.Duration(s) * time.Second
	}
	return &op, retryAfter, nil
}

// Close is a no-op for the HTTP client
func (f *FormRecognizer) Close() error {
	return nil
}
