package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadflow/app/database"
	"leadflow/app/pipeline"
)

type fakeChannelRepo struct {
	channels []database.Channel
}

func (f *fakeChannelRepo) Upsert(ch database.Channel) (int64, error)             { return 0, nil }
func (f *fakeChannelRepo) Get(id int64) (*database.Channel, error)               { return nil, nil }
func (f *fakeChannelRepo) GetByTelegramID(id int64) (*database.Channel, error)   { return nil, nil }
func (f *fakeChannelRepo) GetActive() ([]database.Channel, error)                { return f.channels, nil }
func (f *fakeChannelRepo) CountActive() (int, error)                             { return len(f.channels), nil }
func (f *fakeChannelRepo) CountInactive() (int, error)                           { return 0, nil }
func (f *fakeChannelRepo) Deactivate(id int64) error                             { return nil }
func (f *fakeChannelRepo) GetDead(minAge time.Duration) ([]database.Channel, error) { return nil, nil }

type fakeLeadRepo struct {
	leads []database.Lead
}

func (f *fakeLeadRepo) Insert(lead database.Lead) (int64, error)          { return 0, nil }
func (f *fakeLeadRepo) Get(id int64) (*database.Lead, error)              { return nil, nil }
func (f *fakeLeadRepo) Update(lead database.Lead) error                   { return nil }
func (f *fakeLeadRepo) GetByStatus(status string) ([]database.Lead, error) { return nil, nil }
func (f *fakeLeadRepo) GetStale(ttl time.Duration) ([]database.Lead, error) { return nil, nil }
func (f *fakeLeadRepo) GetRecent(limit int) ([]database.Lead, error) {
	if limit > len(f.leads) {
		limit = len(f.leads)
	}
	return f.leads[:limit], nil
}
func (f *fakeLeadRepo) StatusCounts() (map[string]int, error)          { return nil, nil }
func (f *fakeLeadRepo) CountAll() (int, error)                         { return len(f.leads), nil }
func (f *fakeLeadRepo) InsertReply(reply database.Reply) (int64, error) { return 0, nil }
func (f *fakeLeadRepo) GetReplies(leadID int64) ([]database.Reply, error) { return nil, nil }

type fakeStatus struct{}

func (f *fakeStatus) Status() (*pipeline.Status, error) {
	return &pipeline.Status{
		Uptime:     "1h0m0s",
		LeadsTotal: 4,
		LeadCounts: map[string]int{"new": 1, "contacted": 3},
		SendsToday: 2,
		SendsLimit: 5,
	}, nil
}

func newTestServer() http.Handler {
	channels := &fakeChannelRepo{channels: []database.Channel{
		{ID: 1, TelegramID: -100, Title: "Seed Channel"},
		{ID: 2, TelegramID: -200, Title: "Found Channel", DiscoveredFrom: "search:freelance"},
	}}
	leads := &fakeLeadRepo{leads: []database.Lead{
		{ID: 2, Status: "contacted", RelevanceScore: 0.9, Language: "en", Summary: "bot order"},
		{ID: 1, Status: "new", RelevanceScore: 0.7, Language: "ru", Summary: "site order"},
	}}

	handler := NewHandler(channels, leads, &fakeStatus{}, "test")
	return NewServer(handler, "secret-key")
}

func doRequest(t *testing.T, server http.Handler, method, path, apiKey string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	w := doRequest(t, newTestServer(), http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["channels"] != float64(2) {
		t.Errorf("Expected 2 channels, got %v", body["channels"])
	}
}

func TestGetStats(t *testing.T) {
	w := doRequest(t, newTestServer(), http.MethodGet, "/stats", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var status pipeline.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if status.LeadsTotal != 4 || status.SendsLimit != 5 {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestListLeadsRequiresAuth(t *testing.T) {
	server := newTestServer()

	if w := doRequest(t, server, http.MethodGet, "/api/leads", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}
	if w := doRequest(t, server, http.MethodGet, "/api/leads", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}
	if w := doRequest(t, server, http.MethodGet, "/api/leads", "secret-key"); w.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid key, got %d", w.Code)
	}
}

func TestListLeadsBearerAuth(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/leads", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", w.Code)
	}
}

func TestListLeads(t *testing.T) {
	w := doRequest(t, newTestServer(), http.MethodGet, "/api/leads?limit=1", "secret-key")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body struct {
		Leads []map[string]interface{} `json:"leads"`
		Total int                      `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Total != 1 || len(body.Leads) != 1 {
		t.Fatalf("Expected 1 lead, got %+v", body)
	}
	if body.Leads[0]["status"] != "contacted" {
		t.Errorf("Expected most recent lead first, got %v", body.Leads[0])
	}
}

func TestListLeadsInvalidLimit(t *testing.T) {
	w := doRequest(t, newTestServer(), http.MethodGet, "/api/leads?limit=zero", "secret-key")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", w.Code)
	}
}

func TestListChannels(t *testing.T) {
	w := doRequest(t, newTestServer(), http.MethodGet, "/api/channels", "secret-key")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body struct {
		Channels []map[string]interface{} `json:"channels"`
		Total    int                      `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Total != 2 {
		t.Fatalf("Expected 2 channels, got %d", body.Total)
	}
	if body.Channels[0]["source"] != "seed" {
		t.Errorf("Expected seed provenance for undiscovered channel, got %v", body.Channels[0])
	}
	if body.Channels[1]["source"] != "search:freelance" {
		t.Errorf("Expected search provenance, got %v", body.Channels[1])
	}
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	handler := NewHandler(&fakeChannelRepo{}, &fakeLeadRepo{}, &fakeStatus{}, "test")
	server := NewServer(handler, "")

	if w := doRequest(t, server, http.MethodGet, "/api/leads", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when API is disabled, got %d", w.Code)
	}
}
