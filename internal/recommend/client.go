// Package recommend asks a local LLM to pick a product when the
// deterministic strategies come up empty. It is the last resort before
// the fallback because it costs inference time and is nondeterministic.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"aisle/internal/domain"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "gemma3n"
)

// ErrNoRecommendation means the model replied with something other than a
// single stock code. Callers treat it as strategy failure and fall
// through.
var ErrNoRecommendation = errors.New("no usable recommendation")

var integerReply = regexp.MustCompile(`^\d+$`)

// Client talks to an Ollama-compatible chat endpoint.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, model string, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Recommend asks the model to choose one candidate for the given
// shopping-list item and returns the chosen stock code. The reply must be
// exactly one integer-like code; anything else is ErrNoRecommendation.
// Whether the code actually names a candidate is the caller's check.
func (c *Client) Recommend(ctx context.Context, item string, candidates []domain.Product) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoRecommendation
	}

	listed := make([]string, 0, len(candidates))
	for _, p := range candidates {
		listed = append(listed, fmt.Sprintf("%s: %s", p.Stockcode, p.Name))
	}

	prompt := fmt.Sprintf(
		"Given the following products:\n\n%s\n\nAnd the shopping list item '%s'\n\n"+
			"Which product would you recommend based on your own knowledge? "+
			"Please return only the product's integer code in your response. "+
			"In other words, your response should only contain an integer matching one of the codes. "+
			"Your response must contain a code. Do not return anything else. "+
			"Avoid plant-based products if a meat-option is available.",
		strings.Join(listed, ", "), item)

	reqBody := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	reply := strings.TrimSpace(chat.Message.Content)
	if !integerReply.MatchString(reply) {
		c.logger.Debug("recommendation reply rejected", "item", item, "reply", reply)
		return "", ErrNoRecommendation
	}

	return reply, nil
}
