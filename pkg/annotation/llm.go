package annotation

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/hocanet/feedcore/pkg/types"
)

// LLMAnnotator implements Annotator on top of an ADK model.LLM, which
// lets the pipeline run against Gemini in production and a mock model
// in tests through the same interface.
type LLMAnnotator struct {
	llm model.LLM
}

// NewLLMAnnotator wraps an existing model.
func NewLLMAnnotator(llm model.LLM) *LLMAnnotator {
	return &LLMAnnotator{llm: llm}
}

// NewGeminiAnnotator builds an annotator backed by the Gemini API. The
// API key falls back to GOOGLE_API_KEY, the model to GOOGLE_MODEL.
func NewGeminiAnnotator(ctx context.Context, apiKey, modelName string) (*LLMAnnotator, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not set")
	}
	if modelName == "" {
		modelName = os.Getenv("GOOGLE_MODEL")
	}
	if modelName == "" {
		modelName = "gemini-3-flash-preview"
	}

	m, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini model: %w", err)
	}
	return &LLMAnnotator{llm: m}, nil
}

// Annotate prompts the model with the post context and triggering
// comment, concatenating all text parts of the reply.
func (a *LLMAnnotator) Annotate(ctx context.Context, req types.AnnotationRequest) (*Result, error) {
	prompt := buildPrompt(req)
	llmReq := &model.LLMRequest{
		Contents: []*genai.Content{
			{
				Role:  "user",
				Parts: []*genai.Part{{Text: prompt}},
			},
		},
	}

	var sb strings.Builder
	for resp, err := range a.llm.GenerateContent(ctx, llmReq, false) {
		if err != nil {
			return nil, fmt.Errorf("annotation model call failed: %w", err)
		}
		if resp == nil || resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part != nil && part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
	}

	return &Result{Response: strings.TrimSpace(sb.String())}, nil
}

func buildPrompt(req types.AnnotationRequest) string {
	return fmt.Sprintf(`You are an assistant analyzing a social feed post on request.

Post type: %s

Post content:
%s

A user asked, in a comment under this post:
%s

Answer the user's question about the post. Be concise and direct.`,
		req.PostType, req.Content, req.Comment)
}
