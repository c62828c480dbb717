// Package tempo fetches the day-ahead electricity price colors from the
// Tempo API. Tempo days come in three colors: blue (low price), white
// (normal) and red (high).
package tempo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ovanier/heatctl-go/internal/domain"
)

// DefaultBaseURL is the public Tempo color API.
const DefaultBaseURL = "https://www.api-couleur-tempo.fr/api/jourTempo"

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// Client is an HTTP client for the Tempo API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Tempo client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

type dayResponse struct {
	CodeJour int `json:"codeJour"`
}

// mapCode translates the API color code into a price level.
func mapCode(code int) domain.PriceLevel {
	switch code {
	case 1:
		return domain.PriceLow
	case 2:
		return domain.PriceNormal
	case 3:
		return domain.PriceHigh
	default:
		return domain.PriceUnknown
	}
}

// FetchDay fetches the price level for "today" or "tomorrow".
func (c *Client) FetchDay(ctx context.Context, day string) (domain.PriceLevel, error) {
	url := fmt.Sprintf("%s/%s", c.BaseURL, day)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return domain.PriceUnknown, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return domain.PriceUnknown, fmt.Errorf("failed to fetch %s: %w", day, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PriceUnknown, fmt.Errorf("failed to read %s response: %w", day, err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.PriceUnknown, fmt.Errorf("unexpected status code for %s: %d", day, resp.StatusCode)
	}

	var parsed dayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.PriceUnknown, fmt.Errorf("failed to parse %s response: %w", day, err)
	}
	return mapCode(parsed.CodeJour), nil
}

// Provider caches the latest price signal. Refresh runs on the price
// schedule independently of the control loop; Signal is read by the decision
// cycle and the HTTP API concurrently.
type Provider struct {
	client *Client
	log    *logrus.Entry

	mu     sync.RWMutex
	signal domain.PriceSignal
}

// NewProvider creates a provider around the given client.
func NewProvider(client *Client, log *logrus.Entry) *Provider {
	return &Provider{client: client, log: log}
}

// Refresh fetches today's and tomorrow's price levels. A failed fetch leaves
// that day at Unknown and is logged; it never propagates.
func (p *Provider) Refresh(ctx context.Context) {
	signal := domain.PriceSignal{Today: domain.PriceUnknown, Tomorrow: domain.PriceUnknown}

	today, err := p.client.FetchDay(ctx, "today")
	if err != nil {
		p.log.WithError(err).Warn("failed to fetch today's price")
	} else {
		signal.Today = today
	}

	tomorrow, err := p.client.FetchDay(ctx, "tomorrow")
	if err != nil {
		p.log.WithError(err).Warn("failed to fetch tomorrow's price")
	} else {
		signal.Tomorrow = tomorrow
	}

	p.mu.Lock()
	p.signal = signal
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{
		"today":    signal.Today.String(),
		"tomorrow": signal.Tomorrow.String(),
	}).Info("price signal refreshed")
}

// Signal returns the most recently fetched price signal.
func (p *Provider) Signal() domain.PriceSignal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.signal
}
