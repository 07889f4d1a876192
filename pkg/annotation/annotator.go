package annotation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hocanet/feedcore/pkg/types"
)

// Annotator is the external annotation capability.
//
// Error semantics drive the pipeline's retry decisions: a non-nil error
// is transport-level and retryable; a nil error with an empty Response
// is a success lacking a usable payload and settles as a terminal
// failure without further attempts.
type Annotator interface {
	Annotate(ctx context.Context, req types.AnnotationRequest) (*Result, error)
}

// Result is the usable payload of a settled annotation call.
type Result struct {
	Response string
}

// HTTPAnnotator calls an annotation service over JSON HTTP.
type HTTPAnnotator struct {
	endpoint string
	http     *http.Client
}

// NewHTTPAnnotator creates an annotator posting to the given endpoint.
// Per-attempt timeouts are owned by the pipeline's context, not by the
// transport, so the inner client carries none.
func NewHTTPAnnotator(endpoint string) *HTTPAnnotator {
	return &HTTPAnnotator{endpoint: endpoint, http: &http.Client{}}
}

// Annotate sends the request and maps the envelope to Result semantics.
func (a *HTTPAnnotator) Annotate(ctx context.Context, req types.AnnotationRequest) (*Result, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode annotation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build annotation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("annotation call failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("annotation service returned status %d", httpResp.StatusCode)
	}

	var resp types.AnnotationResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode annotation response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("annotation service error: %s", resp.Error)
	}
	if resp.Data == nil {
		// Success envelope without payload: terminal, not retryable.
		return &Result{}, nil
	}
	return &Result{Response: resp.Data.Response}, nil
}
