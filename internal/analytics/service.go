package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/vimaru/luyenthi/internal/errors"
)

// Report is the dashboard payload proxied from the analytics provider.
type Report struct {
	Chart    []ChartPoint `json:"chart"`
	Metrics  Metrics      `json:"metrics"`
	TopPages []PageStat   `json:"topPages"`
	Devices  []ShareStat  `json:"devices"`
	Cities   []ShareStat  `json:"cities"`
}

type ChartPoint struct {
	Name   string `json:"name"`
	Visits int    `json:"visits"`
	Users  int    `json:"users"`
}

type Metrics struct {
	NewUsers           int     `json:"newUsers"`
	AvgSessionDuration float64 `json:"avgSessionDuration"`
	TotalSessions      int     `json:"totalSessions"`
	BounceRate         float64 `json:"bounceRate"`
}

type PageStat struct {
	Path   string `json:"path"`
	Visits int    `json:"visits"`
}

type ShareStat struct {
	Name  string  `json:"name"`
	Share float64 `json:"share"`
}

var validRanges = map[string]struct{}{
	"7d":    {},
	"30d":   {},
	"today": {},
}

type Config struct {
	// BaseURL of the analytics provider.
	BaseURL string
	// Client defaults to a 10s-timeout client.
	Client *http.Client
}

// Service proxies dashboard queries to the external analytics
// provider so the provider credentials never reach the browser.
type Service struct {
	baseURL string
	client  *http.Client
}

func NewService(c Config) *Service {
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Service{baseURL: c.BaseURL, client: client}
}

func (s *Service) Fetch(ctx context.Context, dateRange string) (*Report, error) {
	if _, ok := validRanges[dateRange]; !ok {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid dateRange: %s", dateRange))
	}

	u := fmt.Sprintf("%s/report?range=%s", s.baseURL, url.QueryEscape(dateRange))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Internal(err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("analytics upstream: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Internal(fmt.Errorf("analytics upstream: status %d", resp.StatusCode))
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, errors.Internal(fmt.Errorf("analytics upstream: decode: %w", err))
	}

	return &report, nil
}
