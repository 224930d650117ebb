package llm

// Classification is the structured verdict for a candidate order message.
type Classification struct {
	IsOrder        bool    `json:"is_order"`
	RelevanceScore float64 `json:"relevance_score"`
	Budget         string  `json:"budget"`
	Stack          string  `json:"stack"`
	Deadline       string  `json:"deadline"`
	Language       string  `json:"language"`
	Summary        string  `json:"summary"`
}

// Sentiment describes a client's reply to an outreach message.
type Sentiment struct {
	Sentiment       string `json:"sentiment"`
	WantsToContinue bool   `json:"wants_to_continue"`
	Summary         string `json:"summary"`
}

// ChannelVerdict is the result of sampling a candidate channel's messages.
type ChannelVerdict struct {
	IsRelevant bool   `json:"is_relevant"`
	Reason     string `json:"reason"`
}
