package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GatewayClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewGatewayClient(server.URL)
}

func TestGatewayUpdates(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/updates" {
			t.Errorf("Expected /updates path, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Update{
			{Message: IncomingMessage{TelegramMsgID: 10, ChatID: -100, Text: "need a bot"}},
			{Message: IncomingMessage{TelegramMsgID: 11, SenderID: 42, Text: "hi"}, Private: true},
		})
	})

	updates, err := gateway.Updates(context.Background())
	if err != nil {
		t.Fatalf("Updates failed: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("Expected 2 updates, got %d", len(updates))
	}
	if updates[0].Private || !updates[1].Private {
		t.Error("Private flag not preserved")
	}
}

func TestGatewayFloodError(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := gateway.SearchChannels(context.Background(), "freelance", 20)

	var floodErr *FloodError
	if !errors.As(err, &floodErr) {
		t.Fatalf("Expected FloodError, got %v", err)
	}
	if floodErr.Wait != 30*time.Second {
		t.Errorf("Expected 30s wait, got %v", floodErr.Wait)
	}
}

func TestGatewayFloodErrorDefaultWait(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := gateway.Updates(context.Background())

	var floodErr *FloodError
	if !errors.As(err, &floodErr) {
		t.Fatalf("Expected FloodError, got %v", err)
	}
	if floodErr.Wait != 60*time.Second {
		t.Errorf("Expected default 60s wait, got %v", floodErr.Wait)
	}
}

func TestGatewaySend(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode send request: %v", err)
		}
		if req.ChatID != -100 || req.ReplyToMsgID != 5 {
			t.Errorf("Unexpected send request: %+v", req)
		}
		json.NewEncoder(w).Encode(SendResult{ThreadMsgID: 99, DMMsgID: 100})
	})

	result, err := gateway.Send(context.Background(), SendRequest{
		ChatID:       -100,
		ReplyToMsgID: 5,
		ThreadText:   "hello",
		UserID:       42,
		DMText:       "hi there",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if result.ThreadMsgID != 99 || result.DMMsgID != 100 || result.PeerFlood {
		t.Errorf("Unexpected send result: %+v", result)
	}
}

func TestGatewaySendPeerFlood(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": "PEER_FLOOD"}`))
	})

	result, err := gateway.Send(context.Background(), SendRequest{ChatID: -100, ReplyToMsgID: 1, ThreadText: "x"})
	if err != nil {
		t.Fatalf("Expected peer flood result, not error: %v", err)
	}
	if !result.PeerFlood {
		t.Error("Expected PeerFlood to be set")
	}
}

func TestGatewayResolve(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("username"); got != "freelance_orders" {
			t.Errorf("Expected stripped username, got %q", got)
		}
		json.NewEncoder(w).Encode(ChannelInfo{ID: -100123, Username: "freelance_orders", Title: "Freelance Orders", Broadcast: true})
	})

	info, err := gateway.Resolve(context.Background(), "@freelance_orders")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if info.ID != -100123 {
		t.Errorf("Expected channel id -100123, got %d", info.ID)
	}
}

func TestRetryPolicy(t *testing.T) {
	t.Run("succeeds after flood waits", func(t *testing.T) {
		policy := NewRetryPolicy(3, 0)
		var slept []time.Duration
		policy.sleep = func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}

		calls := 0
		outcome, err := policy.Do(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return &FloodError{Wait: 10 * time.Second}
			}
			return nil
		})

		if outcome != OutcomeOK || err != nil {
			t.Fatalf("Expected OK outcome, got %v (%v)", outcome, err)
		}
		if len(slept) != 2 {
			t.Errorf("Expected 2 sleeps, got %d", len(slept))
		}
		for _, d := range slept {
			if d < 10*time.Second {
				t.Errorf("Sleep %v shorter than flood wait", d)
			}
		}
	})

	t.Run("exhausts attempts on persistent flood", func(t *testing.T) {
		policy := NewRetryPolicy(3, 0)
		policy.sleep = func(ctx context.Context, d time.Duration) error { return nil }

		calls := 0
		outcome, err := policy.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return &FloodError{Wait: time.Second}
		})

		if outcome != OutcomeThrottled {
			t.Fatalf("Expected throttled outcome, got %v", outcome)
		}
		if err == nil {
			t.Error("Expected last flood error to be returned")
		}
		if calls != 3 {
			t.Errorf("Expected 3 attempts, got %d", calls)
		}
	})

	t.Run("fails fast on non-flood error", func(t *testing.T) {
		policy := NewRetryPolicy(3, 0)

		calls := 0
		outcome, err := policy.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return errors.New("write forbidden")
		})

		if outcome != OutcomeFailed || err == nil {
			t.Fatalf("Expected failed outcome with error, got %v (%v)", outcome, err)
		}
		if calls != 1 {
			t.Errorf("Expected single attempt, got %d", calls)
		}
	})
}
