// Package tasks wires the configured runtime together and runs the poll
// loop. Mirrors the CLI flags used in cmd/dessmonitor/main.go.
package tasks

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andreas-glaser/ha-dessmonitor/internal/api"
	"github.com/andreas-glaser/ha-dessmonitor/internal/config"
	"github.com/andreas-glaser/ha-dessmonitor/internal/coordinator"
	"github.com/andreas-glaser/ha-dessmonitor/internal/db"
	"github.com/andreas-glaser/ha-dessmonitor/internal/metrics"
	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
	"github.com/andreas-glaser/ha-dessmonitor/internal/output"
)

// Options defines initialization overrides for the poller.
type Options struct {
	ConfigPath  string
	MetricsAddr string
}

// InitAndRunPoller loads config, builds the API client, coordinator,
// storage, MQTT publisher and metrics endpoint, then polls until the
// context is cancelled.
func InitAndRunPoller(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.MetricsAddr != "" {
		cfg.Metrics.ListenAddress = opts.MetricsAddr
	}

	var store *db.Store
	var tokenStore api.TokenStore
	if cfg.Storage.Enabled {
		store, err = db.Open(cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		tokenStore = store
	}

	client := api.NewClient(api.Config{
		Username:   cfg.Account.Username,
		Password:   cfg.Account.Password,
		CompanyKey: cfg.Account.CompanyKey,
		BaseURL:    cfg.API.BaseURL,
		Store:      tokenStore,
	})
	if err := client.Setup(ctx); err != nil {
		return err
	}

	coord := coordinator.New(client, cfg.Poll.MaxWorkers)

	var publisher *output.Publisher
	if cfg.MQTT.Enabled {
		publisher, err = output.NewPublisher(cfg.MQTT)
		if err != nil {
			return err
		}
		defer publisher.Close()
	}

	exporter := metrics.NewExporter()
	if cfg.Metrics.ListenAddress != "" {
		prometheus.MustRegister(exporter)
		go serveMetrics(cfg.Metrics.ListenAddress)
	}

	log.Printf("poller: starting, interval %s", cfg.Poll.Interval())
	ticker := time.NewTicker(cfg.Poll.Interval())
	defer ticker.Stop()

	for {
		runCycle(ctx, coord, store, publisher, exporter)
		select {
		case <-ctx.Done():
			log.Printf("poller: shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

// runCycle executes one refresh and pushes the results to storage, MQTT
// and metrics. Cycle failures keep the previous data and carry on.
func runCycle(ctx context.Context, coord *coordinator.Coordinator, store *db.Store, publisher *output.Publisher, exporter *metrics.Exporter) {
	start := time.Now()
	snaps, err := coord.Refresh(ctx)
	stats := coord.LastStats()
	if err != nil {
		log.Printf("poller: cycle failed: %v", err)
		exporter.RecordCycle(false, 0, 0, stats.Skipped, time.Since(start))
		return
	}
	exporter.RecordCycle(true, stats.Collectors, stats.Devices, stats.Skipped, time.Since(start))

	if store != nil {
		if err := persistSnapshots(ctx, store, snaps); err != nil {
			log.Printf("poller: persist snapshots: %v", err)
		}
	}
	if publisher != nil {
		if err := publisher.PublishSnapshots(snaps); err != nil {
			log.Printf("poller: publish snapshots: %v", err)
		}
	}
}

func persistSnapshots(ctx context.Context, store *db.Store, snaps map[string]*model.DeviceSnapshot) error {
	states := make([]model.DeviceState, 0, len(snaps))
	now := time.Now()
	for sn, snap := range snaps {
		payload, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		states = append(states, model.DeviceState{
			SN:          sn,
			CollectorPN: snap.Collector.PN,
			Devcode:     snap.Device.Devcode,
			Alias:       snap.Device.Alias,
			Payload:     string(payload),
			UpdatedAt:   now,
		})
	}
	return store.ReplaceDeviceStates(ctx, states)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	log.Printf("poller: metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("poller: metrics server: %v", err)
	}
}
