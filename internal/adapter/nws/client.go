// Package nws fetches active weather alerts from the National Weather
// Service API and normalizes them into domain alerts. Records with missing
// or malformed fields degrade to defaults instead of failing the batch.
package nws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/reliefops/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Client implements the alert feed against api.weather.gov.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewClient creates an NWS alert client. The NWS API requires a
// descriptive User-Agent with a contact address.
func NewClient(baseURL, userAgent string, timeout time.Duration, clock clockwork.Clock, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		clock:  clock,
		logger: logger,
	}
}

// FetchAlerts returns the active alerts for a state, normalized and sorted
// by triage severity.
func (c *Client) FetchAlerts(ctx context.Context, region string) ([]domain.Alert, error) {
	url := fmt.Sprintf("%s/alerts/active/area/%s", c.baseURL, region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nws request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("nws API error: status %d: %s", resp.StatusCode, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	alerts := make([]domain.Alert, 0, len(payload.Features))
	for _, feature := range payload.Features {
		alerts = append(alerts, c.normalize(feature.Properties))
	}
	domain.SortAlerts(alerts)
	return alerts, nil
}

// normalize maps one raw NWS alert to the domain type, substituting
// defaults for anything absent.
func (c *Client) normalize(p properties) domain.Alert {
	id := p.ID
	if id == "" {
		id = domain.NewID()
		c.logger.Debug("nws alert missing id, fabricated one", "id", id)
	}

	signal := p.Event
	if signal == "" {
		signal = "Weather alert"
	}
	title := p.Headline
	if title == "" {
		title = p.Event
	}
	if title == "" {
		title = "Weather Alert"
	}

	var evidence []string
	if p.Headline != "" {
		evidence = append(evidence, p.Headline)
	}
	if p.Description != "" {
		desc := domain.TruncateEvidence(p.Description)
		if desc != p.Headline {
			evidence = append(evidence, desc)
		}
	}
	if len(evidence) == 0 {
		evidence = []string{signal}
	}

	area := p.AreaDesc
	if area == "" {
		area = "affected areas"
	}

	return domain.Alert{
		ID:         "nws-" + id,
		Severity:   domain.MapNWSSeverity(p.Severity),
		SourceType: "shelter",
		SourceID:   "nws",
		Title:      title,
		Signal:     signal,
		Evidence:   evidence,
		Impact:     "Weather alert affecting " + area,
		SuggestedActions: []string{
			"Monitor weather conditions",
			"Review evacuation plans",
			"Check shelter readiness",
		},
		CreatedAt: c.createdAt(p),
	}
}

// createdAt picks the first available of sent, effective, or now.
func (c *Client) createdAt(p properties) time.Time {
	for _, raw := range []string{p.Sent, p.Effective} {
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.logger.Debug("nws alert has unparseable timestamp", "value", raw)
			continue
		}
		return t
	}
	return c.clock.Now()
}

// NWS API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties `json:"properties"`
}

type properties struct {
	ID          string `json:"id"`
	Event       string `json:"event"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	AreaDesc    string `json:"areaDesc"`
	Sent        string `json:"sent"`
	Effective   string `json:"effective"`
}
