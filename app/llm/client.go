package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"

// Message is a single chat turn sent to the completion API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client talks to an OpenAI-compatible chat completion API and retries
// transient upstream failures on a fallback model.
type Client struct {
	baseURL       string
	apiKey        string
	model         string
	fallbackModel string
	temperature   float64
	maxTokens     int
	httpClient    *http.Client
}

func NewClient(apiKey, model, fallbackModel string, temperature float64, maxTokens int) *Client {
	return &Client{
		baseURL:       defaultBaseURL,
		apiKey:        apiKey,
		model:         model,
		fallbackModel: fallbackModel,
		temperature:   temperature,
		maxTokens:     maxTokens,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) Chat(ctx context.Context, messages []Message, temperature float64, maxTokens int, jsonMode bool) (string, error) {
	content, err := c.complete(ctx, c.model, messages, temperature, maxTokens, jsonMode)
	if err == nil {
		return content, nil
	}
	if c.fallbackModel == "" || c.fallbackModel == c.model {
		return "", err
	}

	slog.Warn("Chat completion failed, trying fallback model", "model", c.model, "fallback", c.fallbackModel, "error", err)

	return c.complete(ctx, c.fallbackModel, messages, temperature, maxTokens, jsonMode)
}

func (c *Client) complete(ctx context.Context, model string, messages []Message, temperature float64, maxTokens int, jsonMode bool) (string, error) {
	reqBody := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat API error %s (model=%s): %s", resp.Status, model, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices (model=%s)", model)
	}

	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) chatJSON(ctx context.Context, messages []Message, temperature float64, maxTokens int, out any) error {
	raw, err := c.Chat(ctx, messages, temperature, maxTokens, true)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("model returned invalid JSON: %w", err)
	}
	return nil
}

// Classify runs the order classifier over a message text. It returns nil
// without error when the model decides the message is not an order.
func (c *Client) Classify(ctx context.Context, text string, targetStacks []string) (*Classification, error) {
	messages := []Message{
		{Role: "system", Content: classifierSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Target stacks: %s\n\nMessage:\n%s", strings.Join(targetStacks, ", "), text)},
	}

	var result Classification
	if err := c.chatJSON(ctx, messages, 0.1, 300, &result); err != nil {
		return nil, err
	}
	if !result.IsOrder {
		return nil, nil
	}

	result.Language = canonicalLanguage(result.Language)

	return &result, nil
}

// AnalyzeSentiment classifies a client's reply against the outreach text it answers.
func (c *Client) AnalyzeSentiment(ctx context.Context, outreachText, replyText string) (*Sentiment, error) {
	messages := []Message{
		{Role: "system", Content: sentimentSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Our outreach message:\n%s\n\nClient's reply:\n%s", outreachText, replyText)},
	}

	var result Sentiment
	if err := c.chatJSON(ctx, messages, 0.2, 200, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) GenerateThreadReply(ctx context.Context, orderText, lang string) (string, error) {
	messages := []Message{
		{Role: "system", Content: fmt.Sprintf(threadReplySystemPrompt, lang)},
		{Role: "user", Content: "Client's order:\n" + orderText},
	}

	return c.Chat(ctx, messages, c.temperature, c.maxTokens, false)
}

func (c *Client) GenerateDM(ctx context.Context, orderText, lang, channelTitle string) (string, error) {
	messages := []Message{
		{Role: "system", Content: fmt.Sprintf(dmSystemPrompt, lang)},
		{Role: "user", Content: fmt.Sprintf("Channel: %s\nClient's order:\n%s", channelTitle, orderText)},
	}

	return c.Chat(ctx, messages, c.temperature, 300, false)
}

// GenerateKeywords asks the model for channel search queries covering the
// configured stacks and languages.
func (c *Client) GenerateKeywords(ctx context.Context, targetStacks, langs []string, perLang int) ([]string, error) {
	stacks := strings.Join(targetStacks, ", ")
	if stacks == "" {
		stacks = "web development, bots, automation"
	}

	messages := []Message{
		{Role: "user", Content: fmt.Sprintf(keywordGenPrompt, stacks, strings.Join(langs, ", "), perLang)},
	}

	var result struct {
		Keywords []string `json:"keywords"`
	}
	if err := c.chatJSON(ctx, messages, 0.9, 1500, &result); err != nil {
		return nil, err
	}

	keywords := make([]string, 0, len(result.Keywords))
	for _, k := range result.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}

	return keywords, nil
}

// ValidateChannel judges whether a sample of channel messages looks like a
// genuine stream of client orders.
func (c *Client) ValidateChannel(ctx context.Context, sampleTexts []string) (*ChannelVerdict, error) {
	var sb strings.Builder
	for i, text := range sampleTexts {
		fmt.Fprintf(&sb, "--- Message %d ---\n%s\n\n", i+1, text)
	}

	messages := []Message{
		{Role: "user", Content: fmt.Sprintf(channelValidationPrompt, strings.TrimSpace(sb.String()))},
	}

	var result ChannelVerdict
	if err := c.chatJSON(ctx, messages, 0.1, 200, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// canonicalLanguage normalizes whatever language tag the model produced
// ("ru-RU", "RU", "ru") to its base BCP 47 form. Unparseable labels pass
// through lowercased so reply generation still sees something.
func canonicalLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "en"
	}

	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(lang)
	}
	base, _ := tag.Base()

	return base.String()
}
