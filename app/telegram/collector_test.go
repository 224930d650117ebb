package telegram

import (
	"context"
	"testing"
	"time"
)

// fakeGateway feeds canned updates and history to the collector.
type fakeGateway struct {
	updates [][]Update
	history map[int64][]HistoryMessage
	calls   int
}

func (f *fakeGateway) Updates(ctx context.Context) ([]Update, error) {
	if f.calls >= len(f.updates) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	batch := f.updates[f.calls]
	f.calls++
	return batch, nil
}

func (f *fakeGateway) History(ctx context.Context, chatID int64, limit int) ([]HistoryMessage, error) {
	return f.history[chatID], nil
}

func (f *fakeGateway) ThreadReplies(ctx context.Context, chatID, msgID int64, limit int) ([]HistoryMessage, error) {
	return nil, nil
}

func (f *fakeGateway) SearchChannels(ctx context.Context, query string, limit int) ([]ChannelInfo, error) {
	return nil, nil
}

func (f *fakeGateway) GetChannelInfo(ctx context.Context, chatID int64) (*ChannelInfo, error) {
	return nil, nil
}

func (f *fakeGateway) Resolve(ctx context.Context, username string) (*ChannelInfo, error) {
	return nil, nil
}

func (f *fakeGateway) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	return &SendResult{}, nil
}

func (f *fakeGateway) Me(ctx context.Context) (*UserInfo, error) {
	return &UserInfo{ID: 1, Username: "us"}, nil
}

func TestCollectorRoutesMonitoredChannels(t *testing.T) {
	gateway := &fakeGateway{
		updates: [][]Update{{
			{Message: IncomingMessage{TelegramMsgID: 1, ChatID: -100, Text: "order"}},
			{Message: IncomingMessage{TelegramMsgID: 2, ChatID: -200, Text: "ignored chat"}},
			{Message: IncomingMessage{TelegramMsgID: 3, ChatID: -100, Text: ""}},
			{Message: IncomingMessage{TelegramMsgID: 4, SenderID: 42, Text: "dm reply"}, Private: true},
		}},
	}

	queue := NewQueue()
	collector := NewCollector(gateway, queue)
	collector.Subscribe([]int64{-100})

	var privates []IncomingMessage
	collector.OnPrivateMessage(func(ctx context.Context, msg IncomingMessage) {
		privates = append(privates, msg)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	collector.Run(ctx)

	queued := drainQueue(t, queue)

	if len(queued) != 1 || queued[0].TelegramMsgID != 1 {
		t.Errorf("Expected only monitored non-empty message queued, got %+v", queued)
	}
	if len(privates) != 1 || privates[0].SenderID != 42 {
		t.Errorf("Expected private message routed to handler, got %+v", privates)
	}
}

func TestCollectorAddRemove(t *testing.T) {
	collector := NewCollector(&fakeGateway{}, NewQueue())
	collector.Subscribe([]int64{-100})

	collector.Add(-200)
	collector.Add(-200)
	if got := collector.MonitoredCount(); got != 2 {
		t.Errorf("Expected 2 monitored channels, got %d", got)
	}

	collector.Remove(-100)
	if collector.isMonitored(-100) {
		t.Error("Expected -100 to be unsubscribed")
	}
	if !collector.isMonitored(-200) {
		t.Error("Expected -200 to stay subscribed")
	}
}

func TestCollectorBackfill(t *testing.T) {
	gateway := &fakeGateway{
		history: map[int64][]HistoryMessage{
			-100: {
				{TelegramMsgID: 1, SenderID: 5, Text: "need a site"},
				{TelegramMsgID: 2, Text: ""},
				{TelegramMsgID: 3, SenderID: 6, Text: "looking for a bot dev"},
			},
		},
	}

	queue := NewQueue()
	collector := NewCollector(gateway, queue)

	if err := collector.Backfill(context.Background(), -100, 50); err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}

	queued := drainQueue(t, queue)

	if len(queued) != 2 {
		t.Fatalf("Expected 2 backfilled messages, got %d", len(queued))
	}
	if queued[0].ChatID != -100 || queued[1].TelegramMsgID != 3 {
		t.Errorf("Unexpected backfill contents: %+v", queued)
	}
}

func TestCollectorBackfillDoesNotBlockWithoutConsumer(t *testing.T) {
	history := make([]HistoryMessage, 500)
	for i := range history {
		history[i] = HistoryMessage{TelegramMsgID: int64(i + 1), Text: "order"}
	}
	gateway := &fakeGateway{history: map[int64][]HistoryMessage{-100: history}}

	queue := NewQueue()
	collector := NewCollector(gateway, queue)

	done := make(chan error, 1)
	go func() {
		done <- collector.Backfill(context.Background(), -100, 500)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Backfill failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Backfill blocked with no consumer draining the queue")
	}

	if got := queue.Len(); got != 500 {
		t.Errorf("Expected 500 queued messages, got %d", got)
	}
}

func drainQueue(t *testing.T, queue *Queue) []IncomingMessage {
	t.Helper()

	messages := make([]IncomingMessage, 0, queue.Len())
	for queue.Len() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		msg, err := queue.Pop(ctx)
		cancel()
		if err != nil {
			t.Fatalf("Failed to drain queue: %v", err)
		}
		messages = append(messages, msg)
	}
	return messages
}
