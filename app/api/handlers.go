package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"leadflow/app/database"
	"leadflow/app/pipeline"
)

const defaultLeadsLimit = 20

// StatusProvider builds the pipeline status snapshot.
type StatusProvider interface {
	Status() (*pipeline.Status, error)
}

type Handler struct {
	channelRepo database.ChannelRepository
	leadRepo    database.LeadRepository
	status      StatusProvider
	version     string
}

func NewHandler(channelRepo database.ChannelRepository, leadRepo database.LeadRepository,
	status StatusProvider, version string) *Handler {
	return &Handler{
		channelRepo: channelRepo,
		leadRepo:    leadRepo,
		status:      status,
		version:     version,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
	}

	if count, err := h.channelRepo.CountActive(); err == nil {
		health["channels"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	status, err := h.status.Status()
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) ListLeads(c *gin.Context) {
	limit := defaultLeadsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = parsed
	}

	leads, err := h.leadRepo.GetRecent(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_leads", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]map[string]interface{}, 0, len(leads))
	for _, lead := range leads {
		item := map[string]interface{}{
			"id":              lead.ID,
			"status":          lead.Status,
			"relevance_score": lead.RelevanceScore,
			"language":        lead.Language,
			"summary":         lead.Summary,
		}
		if lead.Budget != "" {
			item["budget"] = lead.Budget
		}
		if lead.Stack != "" {
			item["stack"] = lead.Stack
		}
		if lead.ContactedAt != nil {
			item["contacted_at"] = lead.ContactedAt.UTC().Format(time.RFC3339)
		}
		if lead.RepliedAt != nil {
			item["replied_at"] = lead.RepliedAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"leads": items,
		"total": len(items),
	})
}

func (h *Handler) ListChannels(c *gin.Context) {
	channels, err := h.channelRepo.GetActive()
	if err != nil {
		slog.Error("Database error", "operation", "list_channels", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]map[string]interface{}, 0, len(channels))
	for _, channel := range channels {
		source := channel.DiscoveredFrom
		if source == "" {
			source = "seed"
		}
		items = append(items, map[string]interface{}{
			"id":          channel.ID,
			"telegram_id": channel.TelegramID,
			"username":    channel.Username,
			"title":       channel.Title,
			"source":      source,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"channels": items,
		"total":    len(items),
	})
}
