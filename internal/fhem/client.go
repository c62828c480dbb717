// Package fhem implements the gateway protocol used to read temperature
// sensors and switch the heater. Commands are sent as textual FHEM commands
// ("set <device> on", "jsonlist2 <device>") with the XHR flag set.
package fhem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout is the default gateway HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// TimeLayout is the timestamp format the gateway reports readings in.
const TimeLayout = "2006-01-02 15:04:05"

// Client is an HTTP client for the gateway.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

// NewClient creates a gateway client with the default timeout.
func NewClient(url string) *Client {
	return NewClientWithTimeout(url, DefaultTimeout)
}

// NewClientWithTimeout creates a gateway client with a custom timeout.
func NewClientWithTimeout(url string, timeout time.Duration) *Client {
	return &Client{
		URL: url,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// sendCommand posts a single command to the gateway and returns the raw
// response body.
func (c *Client) sendCommand(ctx context.Context, command string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("cmd", command)
	q.Set("XHR", "1")
	req.URL.RawQuery = q.Encode()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// SetDevice switches a device on or off.
func (c *Client) SetDevice(ctx context.Context, device string, on bool) error {
	state := "off"
	if on {
		state = "on"
	}
	_, err := c.sendCommand(ctx, fmt.Sprintf("set %s %s", device, state))
	return err
}

// flexFloat accepts both numeric and quoted-numeric JSON values; the gateway
// reports reading values either way depending on the device module.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid reading value %s: %w", data, err)
	}
	*f = flexFloat(v)
	return nil
}

type temperatureReading struct {
	Value flexFloat `json:"Value"`
	Time  string    `json:"Time"`
}

type deviceReadings struct {
	Temperature *temperatureReading `json:"temperature"`
}

type deviceResult struct {
	Readings deviceReadings `json:"Readings"`
}

type listResponse struct {
	Results []deviceResult `json:"Results"`
}

// ReadTemperature queries one sensor and returns its latest temperature
// reading and the time it was taken.
func (c *Client) ReadTemperature(ctx context.Context, device string) (float64, time.Time, error) {
	body, err := c.sendCommand(ctx, fmt.Sprintf("jsonlist2 %s", device))
	if err != nil {
		return 0, time.Time{}, err
	}

	var list listResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to parse response for %s: %w", device, err)
	}
	if len(list.Results) == 0 {
		return 0, time.Time{}, fmt.Errorf("no results for device %s", device)
	}
	reading := list.Results[0].Readings.Temperature
	if reading == nil {
		return 0, time.Time{}, fmt.Errorf("device %s has no temperature reading", device)
	}

	collectedAt, err := time.ParseInLocation(TimeLayout, reading.Time, time.Local)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("invalid reading time for %s: %w", device, err)
	}

	return float64(reading.Value), collectedAt, nil
}
