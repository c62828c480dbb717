// Command heatprobe is a one-shot gateway check: it reads every configured
// sensor and can toggle the heater relay, printing raw results.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ovanier/heatctl-go/internal/config"
	"github.com/ovanier/heatctl-go/internal/fhem"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  heatprobe <config-file>             - read every configured sensor")
		fmt.Println("  heatprobe <config-file> set on|off  - switch the configured heater")
		os.Exit(1)
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	client := fhem.NewClientWithTimeout(cfg.Gateway.URL, cfg.GatewayTimeout())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if len(os.Args) == 2 {
		readSensors(ctx, client, cfg)
		return
	}

	if len(os.Args) != 4 || os.Args[2] != "set" || (os.Args[3] != "on" && os.Args[3] != "off") {
		fmt.Println("Usage: heatprobe <config-file> set on|off")
		os.Exit(1)
	}
	setHeater(ctx, client, cfg.Actuator.Device, os.Args[3] == "on")
}

func readSensors(ctx context.Context, client *fhem.Client, cfg *config.Config) {
	fmt.Printf("Gateway: %s\n\n", cfg.Gateway.URL)

	failed := false
	for _, sensor := range cfg.Sensors {
		value, at, err := client.ReadTemperature(ctx, sensor.Device)
		if err != nil {
			fmt.Printf("  %-16s %-16s error: %v\n", sensor.Name, sensor.Device, err)
			failed = true
			continue
		}
		fmt.Printf("  %-16s %-16s %.1f°C  (read at %s)\n",
			sensor.Name, sensor.Device, value, at.Format("2006-01-02 15:04:05"))
	}
	if failed {
		os.Exit(1)
	}
}

func setHeater(ctx context.Context, client *fhem.Client, device string, on bool) {
	if err := client.SetDevice(ctx, device, on); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	state := "off"
	if on {
		state = "on"
	}
	fmt.Printf("%s switched %s\n", device, state)
}
