package cfg

import (
	"cmp"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DatabasePath string `long:"db-path" env:"DB_PATH" default:"data/leadflow.db" description:"SQLite database file path"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Userbot gateway
	GatewayURL string `long:"gateway-url" env:"GATEWAY_URL" default:"http://localhost:8801" description:"Base URL of the userbot gateway (required)" required:"true"`

	// OpenRouter
	OpenRouterAPIKey string  `long:"openrouter-key" env:"OPENROUTER_API_KEY" description:"OpenRouter API key (required)" required:"true"`
	LLMModel         string  `long:"llm-model" env:"LLM_MODEL" default:"anthropic/claude-sonnet-4" description:"Primary chat model"`
	LLMFallbackModel string  `long:"llm-fallback-model" env:"LLM_FALLBACK_MODEL" default:"openai/gpt-4o" description:"Fallback chat model used on throttling or server errors"`
	LLMTemperature   float64 `long:"llm-temperature" env:"LLM_TEMPERATURE" default:"0.7" description:"Sampling temperature for outreach generation"`
	LLMMaxTokens     int     `long:"llm-max-tokens" env:"LLM_MAX_TOKENS" default:"500" description:"Token limit for generated outreach"`

	// Notifier bot
	NotifyBotToken string `long:"notify-bot-token" env:"NOTIFY_BOT_TOKEN" description:"Telegram bot token for operator notifications"`
	NotifyChatID   int64  `long:"notify-chat-id" env:"NOTIFY_CHAT_ID" description:"Operator chat id for notifications"`

	// Channels file
	ChannelsFile string `long:"channels-file" env:"CHANNELS_FILE" default:"./channels.yaml" description:"YAML file with seed channels, target stacks and search keywords"`

	// Rate limiting
	MinSendDelay    int `long:"min-send-delay" env:"MIN_SEND_DELAY" default:"120" description:"Minimum delay between outreach sends in seconds"`
	MaxSendDelay    int `long:"max-send-delay" env:"MAX_SEND_DELAY" default:"600" description:"Maximum delay between outreach sends in seconds"`
	WarmupWeek1     int `long:"warmup-week-1" env:"WARMUP_WEEK_1" default:"2" description:"Daily send ceiling during week 1"`
	WarmupWeek2     int `long:"warmup-week-2" env:"WARMUP_WEEK_2" default:"5" description:"Daily send ceiling during week 2"`
	WarmupWeek3     int `long:"warmup-week-3" env:"WARMUP_WEEK_3" default:"8" description:"Daily send ceiling during week 3"`
	WarmupWeek4Plus int `long:"warmup-week-4-plus" env:"WARMUP_WEEK_4_PLUS" default:"12" description:"Daily send ceiling from week 4 on"`

	// Classification
	MinRelevance float64 `long:"min-relevance" env:"MIN_RELEVANCE" default:"0.6" description:"Minimum relevance score for lead creation"`

	// Orchestrator
	CycleInterval      int `long:"cycle-interval" env:"CYCLE_INTERVAL" default:"30" description:"Intake/outreach cycle interval in seconds"`
	BatchSize          int `long:"batch-size" env:"BATCH_SIZE" default:"50" description:"Messages to backfill per channel at startup"`
	ReplyCheckInterval int `long:"reply-check-interval" env:"REPLY_CHECK_INTERVAL" default:"60" description:"Reply poll interval in seconds"`
	NoReplyTTLHours    int `long:"no-reply-ttl" env:"NO_REPLY_TTL_HOURS" default:"72" description:"Hours before a contacted lead is marked no_reply"`
	JanitorInterval    int `long:"janitor-interval" env:"JANITOR_INTERVAL" default:"3600" description:"Janitor sweep interval in seconds"`
	SummaryHour        int `long:"summary-hour" env:"SUMMARY_HOUR" default:"21" description:"UTC hour for the daily summary"`

	// Discovery
	DiscoveryEnabled         bool   `long:"discovery" env:"DISCOVERY_ENABLED" description:"Enable channel discovery"`
	DiscoveryInterval        int    `long:"discovery-interval" env:"DISCOVERY_INTERVAL" default:"3600" description:"Discovery cycle interval in seconds"`
	DiscoverySearchLimit     int    `long:"discovery-search-limit" env:"DISCOVERY_SEARCH_LIMIT" default:"20" description:"Channel search result limit per keyword"`
	DiscoveryMaxChannels     int    `long:"discovery-max-channels" env:"DISCOVERY_MAX_CHANNELS" default:"100" description:"Ceiling on total known channels"`
	DiscoveryBackfill        int    `long:"discovery-backfill" env:"DISCOVERY_BACKFILL" default:"50" description:"Messages to backfill from a newly discovered channel"`
	DiscoveryKeywordLangs    string `long:"discovery-keyword-langs" env:"DISCOVERY_KEYWORD_LANGS" default:"ru,en" description:"Comma-separated languages for generated search keywords"`
	DiscoveryKeywordsPerLang int    `long:"discovery-keywords-per-lang" env:"DISCOVERY_KEYWORDS_PER_LANG" default:"10" description:"Generated keywords per language"`
	DiscoveryScanForwards    bool   `long:"discovery-scan-forwards" env:"DISCOVERY_SCAN_FORWARDS" description:"Scan known channels for forwarded-from sources"`
	DiscoveryScanDescs       bool   `long:"discovery-scan-descriptions" env:"DISCOVERY_SCAN_DESCRIPTIONS" description:"Scan channel descriptions for @mentions"`
	DiscoveryRejectedTTL     int    `long:"discovery-rejected-ttl" env:"DISCOVERY_REJECTED_TTL_HOURS" default:"0" description:"Hours before a rejected channel may be retried (0 = never)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// channelsFile is the YAML companion to the flag/env configuration. It holds
// the lists that do not fit flags well.
type channelsFile struct {
	Channels struct {
		Seed []string `yaml:"seed"`
	} `yaml:"channels"`
	Classification struct {
		TargetStacks []string `yaml:"target_stacks"`
	} `yaml:"classification"`
	Discovery struct {
		SearchKeywords []string `yaml:"search_keywords"`
	} `yaml:"discovery"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DatabasePath:             raw.DatabasePath,
		Port:                     raw.Port,
		APIAccessKey:             raw.APIAccessKey,
		GatewayURL:               raw.GatewayURL,
		OpenRouterAPIKey:         raw.OpenRouterAPIKey,
		LLMModel:                 raw.LLMModel,
		LLMFallbackModel:         raw.LLMFallbackModel,
		LLMTemperature:           raw.LLMTemperature,
		LLMMaxTokens:             raw.LLMMaxTokens,
		NotifyBotToken:           raw.NotifyBotToken,
		NotifyChatID:             raw.NotifyChatID,
		ChannelsFile:             raw.ChannelsFile,
		MinSendDelay:             raw.MinSendDelay,
		MaxSendDelay:             raw.MaxSendDelay,
		WarmupWeek1:              raw.WarmupWeek1,
		WarmupWeek2:              raw.WarmupWeek2,
		WarmupWeek3:              raw.WarmupWeek3,
		WarmupWeek4Plus:          raw.WarmupWeek4Plus,
		MinRelevance:             raw.MinRelevance,
		CycleInterval:            raw.CycleInterval,
		BatchSize:                raw.BatchSize,
		ReplyCheckInterval:       raw.ReplyCheckInterval,
		NoReplyTTLHours:          raw.NoReplyTTLHours,
		JanitorInterval:          raw.JanitorInterval,
		SummaryHour:              raw.SummaryHour,
		DiscoveryEnabled:         raw.DiscoveryEnabled,
		DiscoveryInterval:        raw.DiscoveryInterval,
		DiscoverySearchLimit:     raw.DiscoverySearchLimit,
		DiscoveryMaxChannels:     raw.DiscoveryMaxChannels,
		DiscoveryBackfill:        raw.DiscoveryBackfill,
		DiscoveryKeywordLangs:    splitList(raw.DiscoveryKeywordLangs),
		DiscoveryKeywordsPerLang: raw.DiscoveryKeywordsPerLang,
		DiscoveryScanForwards:    raw.DiscoveryScanForwards,
		DiscoveryScanDescs:       raw.DiscoveryScanDescs,
		DiscoveryRejectedTTL:     raw.DiscoveryRejectedTTL,
		Timezone:                 raw.Timezone,
		Debug:                    raw.Debug,
		Version:                  GetVersion(),
	}

	if err := cfg.loadChannelsFile(); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (c *Cfg) loadChannelsFile() error {
	if _, err := os.Stat(c.ChannelsFile); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(c.ChannelsFile)
	if err != nil {
		return fmt.Errorf("failed to read channels file: %w", err)
	}

	parsed, err := parseChannelsFile(data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.ChannelsFile, err)
	}

	c.SeedChannels = parsed.Channels.Seed
	c.TargetStacks = parsed.Classification.TargetStacks
	c.SearchKeywords = parsed.Discovery.SearchKeywords
	return nil
}

func parseChannelsFile(data []byte) (*channelsFile, error) {
	var parsed channelsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func validate(c *Cfg) error {
	if c.MinSendDelay <= 0 || c.MaxSendDelay < c.MinSendDelay {
		return fmt.Errorf("send delay window [%d, %d] is invalid", c.MinSendDelay, c.MaxSendDelay)
	}
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		return fmt.Errorf("min relevance %.2f must be within [0, 1]", c.MinRelevance)
	}
	if c.SummaryHour < 0 || c.SummaryHour > 23 {
		return fmt.Errorf("summary hour %d must be within [0, 23]", c.SummaryHour)
	}
	for _, tier := range []int{c.WarmupWeek1, c.WarmupWeek2, c.WarmupWeek3, c.WarmupWeek4Plus} {
		if tier < 0 {
			return fmt.Errorf("warmup tiers must be non-negative")
		}
	}
	if c.DiscoveryMaxChannels <= 0 {
		return fmt.Errorf("discovery max channels must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
