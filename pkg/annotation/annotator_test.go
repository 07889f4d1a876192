package annotation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hocanet/feedcore/pkg/types"
)

func annotationServer(t *testing.T, status int, resp types.AnnotationResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req types.AnnotationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPAnnotator_Success(t *testing.T) {
	srv := annotationServer(t, http.StatusOK, types.AnnotationResponse{
		Success: true,
		Data:    &types.AnnotationData{Response: "analysis text"},
	})

	a := NewHTTPAnnotator(srv.URL)
	res, err := a.Annotate(context.Background(), types.AnnotationRequest{Comment: "@GeminiHoca ?"})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if res.Response != "analysis text" {
		t.Fatalf("unexpected response %q", res.Response)
	}
}

func TestHTTPAnnotator_SuccessWithoutPayload(t *testing.T) {
	srv := annotationServer(t, http.StatusOK, types.AnnotationResponse{Success: true})

	a := NewHTTPAnnotator(srv.URL)
	res, err := a.Annotate(context.Background(), types.AnnotationRequest{})
	if err != nil {
		t.Fatalf("success without data must not be a transport error, got %v", err)
	}
	if res.Response != "" {
		t.Fatalf("expected empty payload, got %q", res.Response)
	}
}

func TestHTTPAnnotator_ServiceErrorIsRetryable(t *testing.T) {
	srv := annotationServer(t, http.StatusOK, types.AnnotationResponse{Success: false, Error: "overloaded"})

	a := NewHTTPAnnotator(srv.URL)
	if _, err := a.Annotate(context.Background(), types.AnnotationRequest{}); err == nil {
		t.Fatal("expected an error for success=false")
	}
}

func TestHTTPAnnotator_BadStatus(t *testing.T) {
	srv := annotationServer(t, http.StatusBadGateway, types.AnnotationResponse{})

	a := NewHTTPAnnotator(srv.URL)
	if _, err := a.Annotate(context.Background(), types.AnnotationRequest{}); err == nil {
		t.Fatal("expected an error for non-2xx status")
	}
}
