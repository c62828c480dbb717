// Package config loads and validates the controller configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ovanier/heatctl-go/internal/domain"
)

// Defaults applied when the corresponding field is absent from the file.
const (
	DefaultListenAddr        = ":8080"
	DefaultGatewayTimeout    = 10 * time.Second
	DefaultResendInterval    = time.Hour
	DefaultPollInterval      = time.Minute
	DefaultPriceInterval     = time.Hour
	DefaultPriceURL          = "https://www.api-couleur-tempo.fr/api/jourTempo"
	DefaultPrimaryStorePath  = "/mnt/heatlog/heatctl.db"
	DefaultScratchStorePath  = "/var/tmp/heatctl-scratch.db"
	DefaultAlertMinInterval  = 6 * time.Hour
)

// Sensor identifies one temperature source: a display name and the gateway
// device id it is read from.
type Sensor struct {
	Name   string `json:"name"`
	Device string `json:"device"`
}

// WindowConfig is an off-peak window in "HH:MM" form.
type WindowConfig struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// GatewayConfig configures the FHEM gateway endpoint.
type GatewayConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ActuatorConfig configures the heater switch.
type ActuatorConfig struct {
	Device               string `json:"device"`
	ResendIntervalMinutes int   `json:"resend_interval_minutes"`
}

// SetTemperature holds the configured setpoints.
type SetTemperature struct {
	OffPeak  float64 `json:"off_peak"`
	FullCost float64 `json:"full_cost"`
}

// PriceConfig configures the day-ahead price provider and the deltas the
// decision engine applies on high-price days.
type PriceConfig struct {
	URL             string  `json:"url"`
	IntervalMinutes int     `json:"interval_minutes"`
	PreheatDelta    float64 `json:"preheat_delta"`
	HighPriceDelta  float64 `json:"high_price_delta"`
}

// StoreConfig holds the primary and scratch database paths.
type StoreConfig struct {
	PrimaryPath string `json:"primary_path"`
	ScratchPath string `json:"scratch_path"`
}

// AlertConfig configures the optional email alerting. Alerting is disabled
// when the section is absent.
type AlertConfig struct {
	Domain             string   `json:"domain"`
	APIKey             string   `json:"api_key"`
	Sender             string   `json:"sender"`
	Recipients         []string `json:"recipients"`
	MinIntervalMinutes int      `json:"min_interval_minutes"`
}

// Config is the full controller configuration.
type Config struct {
	ListenAddr          string         `json:"listen_addr"`
	LogLevel            string         `json:"log_level"`
	PollIntervalSeconds int            `json:"poll_interval_seconds"`
	Gateway             GatewayConfig  `json:"gateway"`
	Actuator            ActuatorConfig `json:"actuator"`
	Sensors             []Sensor       `json:"sensors"`
	OffPeak             []WindowConfig `json:"off_peak"`
	SetTemperature      SetTemperature `json:"set_temperature"`
	Price               PriceConfig    `json:"price"`
	Store               StoreConfig    `json:"store"`
	Alert               *AlertConfig   `json:"alert,omitempty"`
}

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Save rewrites the configuration file. Called when setpoints are updated
// through the API so the new values survive a restart.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Gateway.TimeoutSeconds == 0 {
		c.Gateway.TimeoutSeconds = int(DefaultGatewayTimeout / time.Second)
	}
	if c.Actuator.ResendIntervalMinutes == 0 {
		c.Actuator.ResendIntervalMinutes = int(DefaultResendInterval / time.Minute)
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = int(DefaultPollInterval / time.Second)
	}
	if c.Price.URL == "" {
		c.Price.URL = DefaultPriceURL
	}
	if c.Price.IntervalMinutes == 0 {
		c.Price.IntervalMinutes = int(DefaultPriceInterval / time.Minute)
	}
	if c.Store.PrimaryPath == "" {
		c.Store.PrimaryPath = DefaultPrimaryStorePath
	}
	if c.Store.ScratchPath == "" {
		c.Store.ScratchPath = DefaultScratchStorePath
	}
	if c.Alert != nil && c.Alert.MinIntervalMinutes == 0 {
		c.Alert.MinIntervalMinutes = int(DefaultAlertMinInterval / time.Minute)
	}
}

// Validate checks the configuration for startup errors. The process fails
// fast at boot on any of these.
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return errors.New("gateway.url is required")
	}
	if c.Actuator.Device == "" {
		return errors.New("actuator.device is required")
	}
	if len(c.Sensors) == 0 {
		return errors.New("at least one sensor is required")
	}
	seen := map[string]bool{}
	for i, s := range c.Sensors {
		if s.Name == "" || s.Device == "" {
			return fmt.Errorf("sensor %d: name and device are required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate sensor name %q", s.Name)
		}
		seen[s.Name] = true
	}
	if _, err := c.Windows(); err != nil {
		return err
	}
	if c.Store.PrimaryPath == c.Store.ScratchPath {
		return errors.New("store.primary_path and store.scratch_path must differ")
	}
	if c.Alert != nil {
		a := c.Alert
		if a.Domain == "" || a.APIKey == "" || a.Sender == "" || len(a.Recipients) == 0 {
			return errors.New("alert requires domain, api_key, sender and recipients")
		}
	}
	return nil
}

// Windows parses the configured off-peak windows.
func (c *Config) Windows() ([]domain.Window, error) {
	windows := make([]domain.Window, 0, len(c.OffPeak))
	for i, w := range c.OffPeak {
		start, err := domain.ParseClockTime(w.Start)
		if err != nil {
			return nil, fmt.Errorf("off_peak window %d: %w", i, err)
		}
		end, err := domain.ParseClockTime(w.End)
		if err != nil {
			return nil, fmt.Errorf("off_peak window %d: %w", i, err)
		}
		windows = append(windows, domain.Window{Start: start, End: end})
	}
	return windows, nil
}

// SourceNames returns the configured sensor names in slot order. The
// temperature log has one column per entry.
func (c *Config) SourceNames() []string {
	names := make([]string, len(c.Sensors))
	for i, s := range c.Sensors {
		names[i] = s.Name
	}
	return names
}

// GatewayTimeout returns the gateway HTTP timeout as a duration.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutSeconds) * time.Second
}

// ResendInterval returns the actuator keep-alive interval as a duration.
func (c *Config) ResendInterval() time.Duration {
	return time.Duration(c.Actuator.ResendIntervalMinutes) * time.Minute
}

// PollInterval returns the control loop interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// PriceInterval returns the price refresh interval as a duration.
func (c *Config) PriceInterval() time.Duration {
	return time.Duration(c.Price.IntervalMinutes) * time.Minute
}

// Setpoints returns the configured setpoints as a domain value.
func (c *Config) Setpoints() domain.Setpoints {
	return domain.Setpoints{OffPeak: c.SetTemperature.OffPeak, FullCost: c.SetTemperature.FullCost}
}
