package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key", "main-model", "fallback-model", 0.7, 500)
	client.baseURL = server.URL

	return client, server
}

func completionResponse(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestClassify(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Expected bearer auth header, got %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Error("Expected json_object response format")
		}

		w.Write([]byte(completionResponse(`{
			"is_order": true,
			"relevance_score": 0.85,
			"budget": "$500",
			"stack": "Python, aiogram",
			"language": "ru-RU",
			"summary": "Client needs a Telegram bot"
		}`)))
	})

	result, err := client.Classify(context.Background(), "Нужен бот для магазина", []string{"Python", "Go"})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result == nil {
		t.Fatal("Expected classification, got nil")
	}
	if result.RelevanceScore != 0.85 {
		t.Errorf("Expected relevance 0.85, got %f", result.RelevanceScore)
	}
	if result.Language != "ru" {
		t.Errorf("Expected canonical language ru, got %q", result.Language)
	}
}

func TestClassifyNotAnOrder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionResponse(`{"is_order": false}`)))
	})

	result, err := client.Classify(context.Background(), "Check out my portfolio!", nil)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil for non-order, got %+v", result)
	}
}

func TestChatFallbackModel(t *testing.T) {
	var models []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		models = append(models, req.Model)

		if req.Model == "main-model" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionResponse("fallback reply")))
	})

	content, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.7, 100, false)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if content != "fallback reply" {
		t.Errorf("Expected fallback reply, got %q", content)
	}
	if len(models) != 2 || models[0] != "main-model" || models[1] != "fallback-model" {
		t.Errorf("Expected main then fallback model, got %v", models)
	}
}

func TestChatBothModelsFail(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, 0.7, 100, false)
	if err == nil {
		t.Fatal("Expected error when both models fail")
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionResponse(`{
			"sentiment": "positive",
			"wants_to_continue": true,
			"summary": "Client wants to discuss details"
		}`)))
	})

	result, err := client.AnalyzeSentiment(context.Background(), "Hi, saw your order", "Sounds good, when can you start?")
	if err != nil {
		t.Fatalf("AnalyzeSentiment failed: %v", err)
	}
	if result.Sentiment != "positive" || !result.WantsToContinue {
		t.Errorf("Unexpected sentiment result: %+v", result)
	}
}

func TestGenerateKeywords(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionResponse(`{"keywords": ["freelance orders", "  ищу разработчика  ", "", "bot development"]}`)))
	})

	keywords, err := client.GenerateKeywords(context.Background(), []string{"Go"}, []string{"ru", "en"}, 10)
	if err != nil {
		t.Fatalf("GenerateKeywords failed: %v", err)
	}
	expected := []string{"freelance orders", "ищу разработчика", "bot development"}
	if len(keywords) != len(expected) {
		t.Fatalf("Expected %d keywords, got %d: %v", len(expected), len(keywords), keywords)
	}
	for i, k := range expected {
		if keywords[i] != k {
			t.Errorf("Keyword %d: expected %q, got %q", i, k, keywords[i])
		}
	}
}

func TestValidateChannel(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 {
			t.Errorf("Expected 1 message, got %d", len(req.Messages))
		}
		w.Write([]byte(completionResponse(`{"is_relevant": false, "reason": "mostly crypto spam"}`)))
	})

	verdict, err := client.ValidateChannel(context.Background(), []string{"buy coin now", "10x gains"})
	if err != nil {
		t.Fatalf("ValidateChannel failed: %v", err)
	}
	if verdict.IsRelevant {
		t.Error("Expected channel to be rejected")
	}
}

func TestChatInvalidJSON(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionResponse("sure, here is your JSON: {broken")))
	})

	_, err := client.Classify(context.Background(), "some text", nil)
	if err == nil {
		t.Fatal("Expected error for invalid JSON payload")
	}
}

func TestCanonicalLanguage(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"ru", "ru"},
		{"RU", "ru"},
		{"ru-RU", "ru"},
		{"en", "en"},
		{"", "en"},
		{"Russian", "russian"},
	}

	for _, tt := range tests {
		if got := canonicalLanguage(tt.in); got != tt.expected {
			t.Errorf("canonicalLanguage(%q): expected %q, got %q", tt.in, tt.expected, got)
		}
	}
}
