package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// GatewayClient implements Client against the userbot gateway's HTTP API.
// Throttling surfaces as 429 plus Retry-After, which is mapped to FloodError
// so callers can sleep instead of failing.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Client = (*GatewayClient)(nil)

func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

func (c *GatewayClient) Updates(ctx context.Context) ([]Update, error) {
	var updates []Update
	if err := c.get(ctx, "/updates", nil, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *GatewayClient) History(ctx context.Context, chatID int64, limit int) ([]HistoryMessage, error) {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"limit":   {strconv.Itoa(limit)},
	}
	var messages []HistoryMessage
	if err := c.get(ctx, "/history", params, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *GatewayClient) ThreadReplies(ctx context.Context, chatID, msgID int64, limit int) ([]HistoryMessage, error) {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"msg_id":  {strconv.FormatInt(msgID, 10)},
		"limit":   {strconv.Itoa(limit)},
	}
	var messages []HistoryMessage
	if err := c.get(ctx, "/replies", params, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *GatewayClient) SearchChannels(ctx context.Context, query string, limit int) ([]ChannelInfo, error) {
	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
	}
	var channels []ChannelInfo
	if err := c.get(ctx, "/search", params, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (c *GatewayClient) GetChannelInfo(ctx context.Context, chatID int64) (*ChannelInfo, error) {
	params := url.Values{"chat_id": {strconv.FormatInt(chatID, 10)}}
	var info ChannelInfo
	if err := c.get(ctx, "/channel", params, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *GatewayClient) Resolve(ctx context.Context, username string) (*ChannelInfo, error) {
	params := url.Values{"username": {strings.TrimPrefix(username, "@")}}
	var info ChannelInfo
	if err := c.get(ctx, "/resolve", params, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *GatewayClient) Send(ctx context.Context, sendReq SendRequest) (*SendResult, error) {
	body, err := json.Marshal(sendReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call gateway: %w", err)
	}
	defer resp.Body.Close()

	// The gateway reports a hard account throttle as 403 PEER_FLOOD. Callers
	// treat it as a result, not an error: outreach pauses instead of retrying.
	if resp.StatusCode == http.StatusForbidden {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if strings.Contains(string(payload), "PEER_FLOOD") {
			return &SendResult{PeerFlood: true}, nil
		}
		return nil, fmt.Errorf("gateway error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result SendResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode send result: %w", err)
	}

	return &result, nil
}

func (c *GatewayClient) Me(ctx context.Context) (*UserInfo, error) {
	var me UserInfo
	if err := c.get(ctx, "/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *GatewayClient) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call gateway: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := 60 * time.Second
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
		return &FloodError{Wait: wait}
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	return fmt.Errorf("gateway error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
}
