// Proxies chat completions to the configured LLM endpoint.

package handlers

import (
	"context"

	"github.com/maruel/tabserve/internal/llm"
	"github.com/maruel/tabserve/internal/server/dto"
)

// LLMHandler handles LLM proxy requests.
type LLMHandler struct {
	Svc *Services
}

// Completion forwards a chat completion and returns the upstream response.
func (h *LLMHandler) Completion(ctx context.Context, req *dto.CompletionRequest) (*dto.CompletionResponse, error) {
	msgs := make([]llm.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	resp, err := h.Svc.LLM.Complete(ctx, llm.Request{
		Model:       req.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
	})
	if err != nil {
		return nil, apiError(err)
	}
	out := dto.CompletionResponse(resp)
	return &out, nil
}

// Text sends a single prompt and returns the generated text.
func (h *LLMHandler) Text(ctx context.Context, req *dto.TextRequest) (*dto.TextResponse, error) {
	text, full, err := h.Svc.LLM.Text(ctx, req.Prompt, llm.Request{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
	})
	if err != nil {
		return nil, apiError(err)
	}
	return &dto.TextResponse{Text: text, FullResponse: full}, nil
}
