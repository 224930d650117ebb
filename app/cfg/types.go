package cfg

type Cfg struct {
	// Database configuration
	DatabasePath string

	// HTTP server
	Port         string
	APIAccessKey string

	// Userbot gateway
	GatewayURL string

	// OpenRouter
	OpenRouterAPIKey string
	LLMModel         string
	LLMFallbackModel string
	LLMTemperature   float64
	LLMMaxTokens     int

	// Notifier bot
	NotifyBotToken string
	NotifyChatID   int64

	// Channels file (seeds, target stacks, operator keywords)
	ChannelsFile   string
	SeedChannels   []string
	TargetStacks   []string
	SearchKeywords []string

	// Rate limiting
	MinSendDelay    int // seconds
	MaxSendDelay    int // seconds
	WarmupWeek1     int
	WarmupWeek2     int
	WarmupWeek3     int
	WarmupWeek4Plus int

	// Classification
	MinRelevance float64

	// Orchestrator
	CycleInterval      int // seconds
	BatchSize          int
	ReplyCheckInterval int // seconds
	NoReplyTTLHours    int
	JanitorInterval    int // seconds
	SummaryHour        int // UTC hour of day

	// Discovery
	DiscoveryEnabled         bool
	DiscoveryInterval        int // seconds
	DiscoverySearchLimit     int
	DiscoveryMaxChannels     int
	DiscoveryBackfill        int
	DiscoveryKeywordLangs    []string
	DiscoveryKeywordsPerLang int
	DiscoveryScanForwards    bool
	DiscoveryScanDescs       bool
	// Hours before a rejected channel may be re-evaluated. 0 keeps
	// rejections permanent.
	DiscoveryRejectedTTL int

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
