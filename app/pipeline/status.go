package pipeline

import (
	"time"
)

// Status is a point-in-time snapshot of the pipeline for the stats endpoint.
type Status struct {
	Uptime           string         `json:"uptime"`
	QueueDepth       int            `json:"queue_depth"`
	DiscoveryEnabled bool           `json:"discovery_enabled"`
	Monitored        int            `json:"monitored_channels"`
	ChannelsActive   int            `json:"channels_active"`
	ChannelsInactive int            `json:"channels_inactive"`
	MessagesTotal    int            `json:"messages_total"`
	MessagesToday    int            `json:"messages_today"`
	LeadsTotal       int            `json:"leads_total"`
	LeadCounts       map[string]int `json:"lead_counts"`
	SendsToday       int            `json:"sends_today"`
	SendsLimit       int            `json:"sends_limit"`
	OutreachPaused   bool           `json:"outreach_paused"`
	PausedUntil      string         `json:"paused_until,omitempty"`
}

func (o *Orchestrator) Status() (*Status, error) {
	channelsActive, err := o.channels.CountActive()
	if err != nil {
		return nil, err
	}
	channelsInactive, err := o.channels.CountInactive()
	if err != nil {
		return nil, err
	}
	messagesTotal, err := o.messages.CountAll()
	if err != nil {
		return nil, err
	}

	now := o.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	messagesToday, err := o.messages.CountSince(midnight)
	if err != nil {
		return nil, err
	}

	leadsTotal, err := o.leads.CountAll()
	if err != nil {
		return nil, err
	}
	leadCounts, err := o.leads.StatusCounts()
	if err != nil {
		return nil, err
	}

	status := &Status{
		Uptime:           now.Sub(o.startedAt).Truncate(time.Second).String(),
		QueueDepth:       o.queue.Len(),
		DiscoveryEnabled: o.discovery != nil,
		Monitored:        o.collector.MonitoredCount(),
		ChannelsActive:   channelsActive,
		ChannelsInactive: channelsInactive,
		MessagesTotal:    messagesTotal,
		MessagesToday:    messagesToday,
		LeadsTotal:       leadsTotal,
		LeadCounts:       leadCounts,
	}

	if budget, err := o.budget.GetToday(); err == nil && budget != nil {
		status.SendsToday = budget.SendsUsed
		status.SendsLimit = budget.MaxSends
	}

	pausedUntil := o.pausedUntilTime()
	if !pausedUntil.IsZero() && o.now().Before(pausedUntil) {
		status.OutreachPaused = true
		status.PausedUntil = pausedUntil.UTC().Format(time.RFC3339)
	}

	return status, nil
}
