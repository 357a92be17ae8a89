// Package resolver calls the external freeform-reply collaborator: an upstream
// service that turns unrecognized chat text into a reply, given a compact
// snapshot of the user's pool state as context.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"resource-pool-backend/config"
	"resource-pool-backend/internal/model"
)

// Resolver produces a reply for text that matched no structured intent.
type Resolver interface {
	Reply(ctx context.Context, userID, text, contextSummary string, history []model.ConversationMessage) (string, error)
}

// historyMessage is one prior chat turn in the upstream request.
type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type upstreamRequest struct {
	Model   string           `json:"model,omitempty"`
	UserID  string           `json:"user_id"`
	Text    string           `json:"text"`
	Context string           `json:"context"`
	History []historyMessage `json:"history,omitempty"`
}

type upstreamResponse struct {
	Reply string `json:"reply"`
}

// HTTPResolver talks to the configured upstream over HTTP.
type HTTPResolver struct {
	cfg    *config.ResolverConfig
	client *http.Client
}

// NewHTTP creates a resolver for the configured upstream.
func NewHTTP(cfg *config.ResolverConfig) *HTTPResolver {
	return &HTTPResolver{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Reply posts the text, context summary, and bounded history to the upstream
// and returns its reply.
func (r *HTTPResolver) Reply(ctx context.Context, userID, text, contextSummary string, history []model.ConversationMessage) (string, error) {
	payload := upstreamRequest{
		Model:   r.cfg.Model,
		UserID:  userID,
		Text:    text,
		Context: contextSummary,
	}
	for _, m := range history {
		payload.History = append(payload.History, historyMessage{Role: m.Role, Content: m.Content})
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal resolver payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create resolver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range r.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolver request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolver returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read resolver response: %w", err)
	}

	var parsed upstreamResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal resolver response: %w", err)
	}
	if parsed.Reply == "" {
		return "", fmt.Errorf("resolver returned an empty reply")
	}
	return parsed.Reply, nil
}
