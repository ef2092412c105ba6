package image

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storyboard/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "img-test",
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestGenerateSuccess(t *testing.T) {
	var gotPath string
	var gotBody generateRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generateResponse{
			URL:      "http://cdn.example.com/img.png",
			MIMEType: "image/png",
		})
	}))

	res, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:     "a storyboard hero",
		SourceURLs: []string{"http://example.com/ref-1.png"},
		RequestID:  "story-1-ref-1",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.URL != "http://cdn.example.com/img.png" || res.MIME != "image/png" {
		t.Fatalf("result = %+v", res)
	}
	if gotPath != "/models/img-test:generateImage" {
		t.Fatalf("path = %q", gotPath)
	}
	if len(gotBody.ImageURLs) != 1 || gotBody.RequestID != "story-1-ref-1" {
		t.Fatalf("request body = %+v", gotBody)
	}
}

func TestGenerateDefaultsMIME(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{URL: "http://cdn.example.com/img"})
	}))

	res, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.MIME != "image/png" {
		t.Fatalf("mime = %q, want image/png", res.MIME)
	}
}

func TestGenerateProviderError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"invalid_prompt","message":"prompt rejected"}}`))
	}))

	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	var provErr *domain.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if provErr.Code != "invalid_prompt" {
		t.Fatalf("code = %q", provErr.Code)
	}
}

func TestGenerateEmptyURLIsProviderError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{})
	}))

	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	var provErr *domain.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
}

func TestGenerateRequiresAPIKeyAndPrompt(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}

	keyed := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request")
	}))
	if _, err := keyed.Generate(context.Background(), GenerateRequest{Prompt: "   "}); err == nil {
		t.Fatalf("expected error for blank prompt")
	}
}
