package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

// Vision calls the Azure AI Vision image analysis endpoint with the read feature
type Vision struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewVision creates a Vision client. endpoint is the resource endpoint and
// apiPath the analysis path appended to it (it may carry its own query).
func NewVision(endpoint, apiPath, apiKey string, client *http.Client) (*Vision, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("vision endpoint is required")
	}
	if client == nil {
		client = http.DefaultClient
	}

	u, err := url.Parse(endpoint + apiPath)
	if err != nil {
		return nil, fmt.Errorf("parsing vision endpoint: %w", err)
	}
	q := u.Query()
	q.Set("features", "read")
	q.Set("language", "ja")
	u.RawQuery = q.Encode()

	return &Vision{
		endpoint: u.String(),
		apiKey:   apiKey,
		client:   client,
	}, nil
}

// ReadImage runs text recognition over raw image bytes
func (v *Vision) ReadImage(ctx context.Context, imageData []byte) (json.RawMessage, error) {
	return v.post(ctx, "application/octet-stream", imageData)
}

// ReadURL runs text recognition over an image the provider fetches itself
func (v *Vision) ReadURL(ctx context.Context, imageURL string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"url": imageURL})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	return v.post(ctx, "application/json", body)
}

func (v *Vision) post(ctx context.Context, contentType string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(subscriptionKeyHeader, v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, classifyTransportError("calling vision API", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError("reading vision response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &RejectedError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if !json.Valid(respBody) {
		return nil, malformed("decoding vision response", fmt.Errorf("invalid JSON body"))
	}
	return json.RawMessage(respBody), nil
}
