// Package main is the entry point for the heating controller daemon.
package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ovanier/heatctl-go/internal/actuator"
	"github.com/ovanier/heatctl-go/internal/alert"
	"github.com/ovanier/heatctl-go/internal/api"
	"github.com/ovanier/heatctl-go/internal/config"
	"github.com/ovanier/heatctl-go/internal/domain"
	"github.com/ovanier/heatctl-go/internal/engine"
	"github.com/ovanier/heatctl-go/internal/fhem"
	"github.com/ovanier/heatctl-go/internal/scheduler"
	"github.com/ovanier/heatctl-go/internal/state"
	"github.com/ovanier/heatctl-go/internal/storage/failover"
	"github.com/ovanier/heatctl-go/internal/tempo"
)

func main() {
	configPath := flag.String("config", "/etc/heatctl/config.json", "path to the configuration file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.NewEntry(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	windows, err := cfg.Windows()
	if err != nil {
		log.WithError(err).Fatal("invalid off-peak windows")
	}

	gateway := fhem.NewClientWithTimeout(cfg.Gateway.URL, cfg.GatewayTimeout())
	sensors := make([]fhem.Sensor, len(cfg.Sensors))
	for i, s := range cfg.Sensors {
		sensors[i] = fhem.Sensor{Name: s.Name, Device: s.Device}
	}
	collector := fhem.NewCollector(gateway, sensors, log)
	heater := actuator.New(gateway, cfg.Actuator.Device, cfg.ResendInterval(), log)

	prices := tempo.NewProvider(tempo.NewClient(cfg.Price.URL), log)

	store := failover.Open(cfg.Store.PrimaryPath, cfg.Store.ScratchPath, cfg.SourceNames(), log)
	defer store.Close()

	var notifier *alert.Notifier
	if cfg.Alert != nil {
		sender := alert.NewMailgunSender(cfg.Alert.Domain, cfg.Alert.APIKey, cfg.Alert.Sender, cfg.Alert.Recipients)
		notifier = alert.NewNotifier(sender, log, time.Duration(cfg.Alert.MinIntervalMinutes)*time.Minute)
		store.OnFailover(func(failover.Location) {
			notifier.StoreFailover(context.Background())
		})
	}

	setpoints := state.NewSetpoints(cfg.Setpoints())

	schedCfg := scheduler.Config{
		Log:           log,
		PollInterval:  cfg.PollInterval(),
		PriceInterval: cfg.PriceInterval(),
		Windows:       windows,
		Deltas:        engine.Deltas{Preheat: cfg.Price.PreheatDelta, HighPrice: cfg.Price.HighPriceDelta},
		Setpoints:     setpoints,
		Collector:     collector,
		Prices:        prices,
		Actuator:      heater,
		Store:         store,
	}
	if notifier != nil {
		schedCfg.Alerter = notifier
	}
	sched := scheduler.New(schedCfg)

	// Serialize config file rewrites from concurrent setpoint updates.
	var saveMu sync.Mutex
	saveSetpoints := func(sp domain.Setpoints) error {
		saveMu.Lock()
		defer saveMu.Unlock()
		cfg.SetTemperature.OffPeak = sp.OffPeak
		cfg.SetTemperature.FullCost = sp.FullCost
		return cfg.Save(*configPath)
	}

	server := api.NewServer(log, setpoints, store, prices, cfg.SourceNames(), saveSetpoints, sched.TriggerCycle)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed")
			stop()
		}
	}()

	sched.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
}
