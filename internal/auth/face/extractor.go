package face

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Extractor turns a captured image into an embedding vector.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (Template, error)
}

// HTTPExtractor calls an external embedding service. The service accepts a
// raw image body on POST /embed and answers with
// {"embedding": [...]} or {"error": "no_face"}.
type HTTPExtractor struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPExtractor(baseURL string) *HTTPExtractor {
	return &HTTPExtractor{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error"`
}

func (e *HTTPExtractor) Extract(ctx context.Context, image []byte) (Template, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.BaseURL+"/embed", bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face: extractor request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var out embedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("face: extractor returned malformed response: %w", err)
	}

	switch {
	case out.Error == "no_face":
		return nil, ErrNoFaceDetected
	case out.Error != "":
		return nil, fmt.Errorf("face: extractor error: %s", out.Error)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("face: extractor returned status %d", resp.StatusCode)
	case len(out.Embedding) == 0:
		return nil, ErrNoFaceDetected
	}

	return Template(out.Embedding), nil
}
