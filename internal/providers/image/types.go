package image

import "context"

// GenerateRequest carries the inputs for one synchronous image generation.
// SourceURLs are optional conditioning images (already-persisted reference
// images when composing a first frame).
type GenerateRequest struct {
	Prompt      string
	SourceURLs  []string
	AspectRatio string
	RequestID   string
}

// Result is the normalized provider response. The URL points at provider
// storage; persistence downloads and re-homes the content.
type Result struct {
	URL  string
	MIME string
}

// Generator is the synchronous image generation capability.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Result, error)
}
