package fhem

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ovanier/heatctl-go/internal/domain"
)

// Sensor pairs a source name with the gateway device it is read from.
type Sensor struct {
	Name   string
	Device string
}

// Collector reads all configured sensors through one gateway client.
type Collector struct {
	client  *Client
	sensors []Sensor
	log     *logrus.Entry
}

// NewCollector creates a collector for the given sensors.
func NewCollector(client *Client, sensors []Sensor, log *logrus.Entry) *Collector {
	return &Collector{client: client, sensors: sensors, log: log}
}

// Collect reads the current temperature of every configured sensor. A sensor
// that fails to answer is logged and omitted from the result; a failure is
// never fatal to the batch. There are no retries within a cycle: the next
// scheduled poll is the retry.
func (c *Collector) Collect(ctx context.Context) []domain.Measurement {
	measurements := make([]domain.Measurement, 0, len(c.sensors))
	for _, sensor := range c.sensors {
		value, collectedAt, err := c.client.ReadTemperature(ctx, sensor.Device)
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"sensor": sensor.Name,
				"device": sensor.Device,
			}).WithError(err).Warn("sensor read failed, dropping from cycle")
			continue
		}
		measurements = append(measurements, domain.Measurement{
			Source:      sensor.Name,
			Value:       value,
			CollectedAt: collectedAt,
		})
	}
	return measurements
}
