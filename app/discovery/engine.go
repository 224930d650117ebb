package discovery

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"leadflow/app/database"
	"leadflow/app/llm"
	"leadflow/app/telegram"
)

const apiDelay = 2 * time.Second

// Subscriber is the collector surface discovery needs: hot-subscribe a new
// channel and pull its recent history into the intake queue.
type Subscriber interface {
	Add(chatID int64)
	Backfill(ctx context.Context, chatID int64, limit int) error
}

// Validator judges candidate channels and generates search keywords.
type Validator interface {
	ValidateChannel(ctx context.Context, sampleTexts []string) (*llm.ChannelVerdict, error)
	GenerateKeywords(ctx context.Context, targetStacks, langs []string, perLang int) ([]string, error)
}

// Config carries the discovery knobs plus the operator's keyword and stack lists.
type Config struct {
	SearchKeywords  []string
	TargetStacks    []string
	SearchLimit     int
	MaxChannels     int
	Backfill        int
	KeywordLangs    []string
	KeywordsPerLang int
	ScanForwards    bool
	ScanDescs       bool
	// RejectedTTL > 0 lets rejected channels be re-evaluated once that
	// long has passed. Zero keeps rejections permanent.
	RejectedTTL time.Duration
}

// Engine finds new order channels through keyword search, forward sources,
// and description mentions, validates them, and registers the keepers.
type Engine struct {
	client    telegram.Client
	channels  database.ChannelRepository
	collector Subscriber
	validator Validator
	config    Config

	knownIDs          map[int64]struct{}
	rejected          map[int64]time.Time
	generatedKeywords []string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewEngine(client telegram.Client, channels database.ChannelRepository, collector Subscriber, validator Validator, config Config) *Engine {
	return &Engine{
		client:    client,
		channels:  channels,
		collector: collector,
		validator: validator,
		config:    config,
		knownIDs:  make(map[int64]struct{}),
		rejected:  make(map[int64]time.Time),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Init loads already-known channel ids and generates the first keyword set.
func (e *Engine) Init(ctx context.Context) error {
	channels, err := e.channels.GetActive()
	if err != nil {
		return err
	}
	for _, ch := range channels {
		if ch.TelegramID != 0 {
			e.knownIDs[ch.TelegramID] = struct{}{}
		}
	}

	e.generatedKeywords = e.generateKeywords(ctx)

	slog.Info("Discovery initialized",
		"known_channels", len(e.knownIDs),
		"keywords", len(e.allKeywords()),
		"generated", len(e.generatedKeywords),
		"fallback", len(fallbackKeywords))

	return nil
}

func (e *Engine) generateKeywords(ctx context.Context) []string {
	keywords, err := e.validator.GenerateKeywords(ctx, e.config.TargetStacks, e.config.KeywordLangs, e.config.KeywordsPerLang)
	if err != nil {
		slog.Error("Failed to generate search keywords", "error", err)
		return nil
	}

	slog.Info("Generated search keywords", "count", len(keywords))

	return keywords
}

// allKeywords merges operator + generated + fallback keywords, deduplicated.
func (e *Engine) allKeywords() []string {
	combined := make([]string, 0, len(e.config.SearchKeywords)+len(e.generatedKeywords)+len(fallbackKeywords))
	combined = append(combined, e.config.SearchKeywords...)
	combined = append(combined, e.generatedKeywords...)
	combined = append(combined, fallbackKeywords...)

	return dedupe(combined)
}

// RunCycle runs one full discovery pass and returns how many channels were
// newly registered.
func (e *Engine) RunCycle(ctx context.Context) (int, error) {
	e.evictRejected()
	e.generatedKeywords = e.generateKeywords(ctx)

	registered := e.SearchByKeywords(ctx)

	if e.config.ScanForwards {
		for _, chatID := range e.knownIDList() {
			if e.atCapacity() {
				break
			}
			registered += e.scanForwards(ctx, chatID)
		}
	}

	if e.config.ScanDescs {
		for _, chatID := range e.knownIDList() {
			if e.atCapacity() {
				break
			}
			registered += e.scanDescription(ctx, chatID)
		}
	}

	return registered, ctx.Err()
}

// SearchByKeywords searches the channel directory for each keyword and tries
// to register every broadcast channel the search returns.
func (e *Engine) SearchByKeywords(ctx context.Context) int {
	registered := 0

	for _, keyword := range e.allKeywords() {
		if ctx.Err() != nil {
			return registered
		}
		if e.atCapacity() {
			break
		}

		channels, err := e.client.SearchChannels(ctx, keyword, e.config.SearchLimit)
		if err != nil {
			e.handleSearchError(ctx, err, keyword)
		} else {
			for _, ch := range channels {
				if !ch.Broadcast {
					continue
				}
				if e.tryRegister(ctx, ch.ID, "search:"+keyword, &ch) {
					registered++
				}
			}
		}

		if e.sleep(ctx, apiDelay) != nil {
			return registered
		}
	}

	return registered
}

func (e *Engine) handleSearchError(ctx context.Context, err error, keyword string) {
	var floodErr *telegram.FloodError
	if errors.As(err, &floodErr) {
		slog.Warn("Flood wait during keyword search, pausing", "wait", floodErr.Wait)
		e.sleep(ctx, floodErr.Wait)
		return
	}
	slog.Error("Keyword search failed", "keyword", keyword, "error", err)
}

// scanForwards looks at a known channel's recent history for messages
// forwarded from other channels.
func (e *Engine) scanForwards(ctx context.Context, chatID int64) int {
	registered := 0

	messages, err := e.client.History(ctx, chatID, 100)
	if err != nil {
		var floodErr *telegram.FloodError
		if errors.As(err, &floodErr) {
			slog.Warn("Flood wait during forward scan", "chat_id", chatID, "wait", floodErr.Wait)
			e.sleep(ctx, floodErr.Wait)
		} else {
			slog.Error("Forward scan failed", "chat_id", chatID, "error", err)
		}
		e.sleep(ctx, apiDelay)
		return 0
	}

	for _, msg := range messages {
		if e.atCapacity() {
			break
		}
		if msg.FwdFromChannelID == 0 {
			continue
		}
		if e.tryRegister(ctx, msg.FwdFromChannelID, sourceTag("forward", chatID), nil) {
			registered++
		}
	}

	e.sleep(ctx, apiDelay)

	return registered
}

// scanDescription parses a known channel's description for @mentions of
// other channels.
func (e *Engine) scanDescription(ctx context.Context, chatID int64) int {
	registered := 0

	info, err := e.client.GetChannelInfo(ctx, chatID)
	if err != nil {
		var floodErr *telegram.FloodError
		if errors.As(err, &floodErr) {
			slog.Warn("Flood wait during description scan", "chat_id", chatID, "wait", floodErr.Wait)
			e.sleep(ctx, floodErr.Wait)
		} else {
			slog.Error("Description scan failed", "chat_id", chatID, "error", err)
		}
		e.sleep(ctx, apiDelay)
		return 0
	}

	for _, username := range extractUsernames(info.About) {
		if e.atCapacity() {
			break
		}
		if e.sleep(ctx, apiDelay) != nil {
			return registered
		}

		target, err := e.client.Resolve(ctx, username)
		if err != nil {
			var floodErr *telegram.FloodError
			if errors.As(err, &floodErr) {
				slog.Warn("Flood wait resolving username", "username", username, "wait", floodErr.Wait)
				e.sleep(ctx, floodErr.Wait)
				continue
			}
			slog.Debug("Could not resolve username from description", "username", username)
			continue
		}
		if !target.Broadcast {
			continue
		}
		if e.tryRegister(ctx, target.ID, sourceTag("description", chatID), target) {
			registered++
		}
	}

	e.sleep(ctx, apiDelay)

	return registered
}

// tryRegister deduplicates, validates, upserts, hot-subscribes, and
// backfills a candidate channel. Returns true only for a new registration.
func (e *Engine) tryRegister(ctx context.Context, telegramID int64, source string, info *telegram.ChannelInfo) bool {
	if _, known := e.knownIDs[telegramID]; known {
		return false
	}
	if _, rejected := e.rejected[telegramID]; rejected {
		return false
	}
	if e.atCapacity() {
		return false
	}

	existing, err := e.channels.GetByTelegramID(telegramID)
	if err != nil {
		slog.Error("Failed to look up channel", "telegram_id", telegramID, "error", err)
		return false
	}
	if existing != nil {
		e.knownIDs[telegramID] = struct{}{}
		return false
	}

	if info == nil {
		resolved, err := e.client.GetChannelInfo(ctx, telegramID)
		if err != nil {
			slog.Debug("Could not resolve channel", "telegram_id", telegramID)
			return false
		}
		info = resolved
		e.sleep(ctx, apiDelay)
	}

	if !e.validateChannel(ctx, telegramID) {
		e.rejected[telegramID] = e.now()
		slog.Info("Rejected channel", "title", info.Title, "telegram_id", telegramID)
		return false
	}

	now := e.now().UTC()
	channel := database.Channel{
		TelegramID:     telegramID,
		Username:       info.Username,
		Title:          info.Title,
		IsActive:       true,
		DiscoveredFrom: source,
		DiscoveredAt:   &now,
	}
	dbID, err := e.channels.Upsert(channel)
	if err != nil {
		slog.Error("Failed to upsert discovered channel", "telegram_id", telegramID, "error", err)
		return false
	}

	e.knownIDs[telegramID] = struct{}{}
	e.collector.Add(telegramID)

	if e.config.Backfill > 0 {
		if err := e.collector.Backfill(ctx, telegramID, e.config.Backfill); err != nil {
			slog.Error("Backfill failed for discovered channel", "telegram_id", telegramID, "error", err)
		}
	}

	slog.Info("Discovered channel",
		"title", info.Title,
		"telegram_id", telegramID,
		"db_id", dbID,
		"source", source)

	return true
}

// validateChannel samples recent messages and asks the model whether the
// channel genuinely posts client orders. Any failure rejects the channel so
// a later cycle can retry under a TTL.
func (e *Engine) validateChannel(ctx context.Context, telegramID int64) bool {
	messages, err := e.client.History(ctx, telegramID, 10)
	if err != nil {
		var floodErr *telegram.FloodError
		if errors.As(err, &floodErr) {
			slog.Warn("Flood wait during channel validation", "telegram_id", telegramID, "wait", floodErr.Wait)
			e.sleep(ctx, floodErr.Wait)
		} else {
			slog.Error("Channel validation failed", "telegram_id", telegramID, "error", err)
		}
		return false
	}
	e.sleep(ctx, apiDelay)

	var samples []string
	for _, msg := range messages {
		if msg.Text == "" {
			continue
		}
		text := msg.Text
		if runes := []rune(text); len(runes) > 300 {
			text = string(runes[:300])
		}
		samples = append(samples, text)
		if len(samples) >= 5 {
			break
		}
	}
	if len(samples) == 0 {
		return false
	}

	verdict, err := e.validator.ValidateChannel(ctx, samples)
	if err != nil {
		slog.Error("Channel validation failed", "telegram_id", telegramID, "error", err)
		return false
	}
	if !verdict.IsRelevant {
		slog.Debug("Channel rejected", "telegram_id", telegramID, "reason", verdict.Reason)
	}

	return verdict.IsRelevant
}

// evictRejected releases rejections older than the configured TTL so those
// channels get another look.
func (e *Engine) evictRejected() {
	if e.config.RejectedTTL <= 0 {
		return
	}

	cutoff := e.now().Add(-e.config.RejectedTTL)
	for id, rejectedAt := range e.rejected {
		if rejectedAt.Before(cutoff) {
			delete(e.rejected, id)
		}
	}
}

func (e *Engine) atCapacity() bool {
	return len(e.knownIDs) >= e.config.MaxChannels
}

func (e *Engine) knownIDList() []int64 {
	ids := make([]int64, 0, len(e.knownIDs))
	for id := range e.knownIDs {
		ids = append(ids, id)
	}
	return ids
}

func sourceTag(strategy string, chatID int64) string {
	return strategy + ":" + strconv.FormatInt(chatID, 10)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
