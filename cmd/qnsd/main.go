package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telcoware/qns/pkg"
	"github.com/telcoware/qns/pkg/evaluator"
	"github.com/telcoware/qns/pkg/logx"
	"github.com/telcoware/qns/pkg/mqtt"
	"github.com/telcoware/qns/pkg/pidfile"
	"github.com/telcoware/qns/pkg/qnsconfig"
	"github.com/telcoware/qns/pkg/qualmon"
	"github.com/telcoware/qns/pkg/telem"
)

var (
	logLevel      = flag.String("log-level", "info", "Log level (debug|info|warn|error)")
	pidPath       = flag.String("pid-file", "/tmp/qnsd.pid", "Path to PID file")
	version       = flag.Bool("version", false, "Show version information")
	metricsListen = flag.String("metrics-listen", ":9109", "Prometheus metrics listen address (empty disables)")
	telemPath     = flag.String("telem-db", "/tmp/qnsd-telem.db", "Signal history database path (empty disables persistence)")
	healthPath    = flag.String("health-file", "/tmp/qnsd.health", "Heartbeat file path (empty disables)")
	slots         = flag.Int("slots", 1, "Number of SIM slots to evaluate")

	mqttBroker = flag.String("mqtt-broker", "", "MQTT broker host (empty disables publishing)")
	mqttPort   = flag.Int("mqtt-port", 1883, "MQTT broker port")
	mqttPrefix = flag.String("mqtt-prefix", "qns", "MQTT topic prefix")
)

const (
	AppName    = "qnsd"
	AppVersion = "1.0.0"
)

// HeartbeatData is the liveness record written to the health file.
type HeartbeatData struct {
	Timestamp  string  `json:"ts"`
	UptimeS    int64   `json:"uptime_s"`
	Version    string  `json:"version"`
	Slots      int     `json:"slots"`
	MemMB      float64 `json:"mem_mb"`
	Goroutines int     `json:"goroutines"`
}

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		os.Exit(0)
	}

	logger := logx.NewLogger(*logLevel, AppName)

	pidFile := pidfile.New(*pidPath)
	if err := pidFile.Acquire(); err != nil {
		logger.Error("failed to acquire pid file", "error", err, "path", *pidPath)
		os.Exit(1)
	}
	defer func() {
		if err := pidFile.Release(); err != nil {
			logger.Warn("failed to release pid file", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := qnsconfig.DefaultConfig()

	store, err := telem.NewStore(time.Hour, 10000)
	if err != nil {
		logger.Error("failed to create signal history store", "error", err)
		os.Exit(1)
	}
	if *telemPath != "" {
		if err := store.WithPersistence(*telemPath); err != nil {
			logger.Warn("signal history persistence unavailable", "error", err, "path", *telemPath)
		}
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close signal history store", "error", err)
		}
	}()

	var publisher *mqtt.Publisher
	if *mqttBroker != "" {
		mc := mqtt.DefaultConfig()
		mc.Enabled = true
		mc.Broker = *mqttBroker
		mc.Port = *mqttPort
		mc.TopicPrefix = *mqttPrefix
		mc.ClientID = fmt.Sprintf("%s-%d", AppName, os.Getpid())
		publisher = mqtt.NewPublisher(mc, logger)
		if err := publisher.Connect(); err != nil {
			logger.Warn("mqtt broker unreachable, events will be dropped", "error", err)
		}
		defer publisher.Close()
	}

	// Until a modem/supplicant bridge feeds real readings, the in-memory
	// sources keep the pipeline runnable for bring-up and soak testing.
	// TODO: add a netlink-backed SourceProvider for the wifi side.
	provider := qualmon.NewFakeSourceProvider()
	registry := qualmon.NewRegistry(provider, logger, store)
	defer registry.Close()

	evaluators := make([]*evaluator.Evaluator, 0, *slots)
	for slot := 0; slot < *slots; slot++ {
		s := slot
		ev := evaluator.New(cfg, pkg.CapIMS, s, registry.Cellular(s), registry.Wifi(s),
			store, publisher, func(d evaluator.Decision) {
				logger.Info("transport change requested",
					"slot", s,
					"direction", d.Direction.String(),
					"transport", d.Transport.String(),
					"reason", d.Reason)
			}, logger)
		evaluators = append(evaluators, ev)
	}
	defer func() {
		for _, ev := range evaluators {
			ev.Close()
		}
	}()

	if *metricsListen != "" {
		go serveMetrics(logger, *metricsListen)
	}
	if *healthPath != "" {
		go heartbeatLoop(ctx, logger, *healthPath, *slots)
	}

	logger.Info("daemon started",
		"version", AppVersion,
		"slots", *slots,
		"metrics_listen", *metricsListen,
		"mqtt_broker", *mqttBroker)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting down", "signal", s.String())
	cancel()
}

// serveMetrics exposes the Prometheus registry over HTTP.
func serveMetrics(logger *logx.Logger, listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", "error", err, "listen", listen)
	}
}

// heartbeatLoop rewrites the health file every 30 seconds so watchdogs can
// verify liveness.
func heartbeatLoop(ctx context.Context, logger *logx.Logger, path string, slots int) {
	start := time.Now()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	write := func() {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		hb := HeartbeatData{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			UptimeS:    int64(time.Since(start).Seconds()),
			Version:    AppVersion,
			Slots:      slots,
			MemMB:      float64(mem.Alloc) / 1024 / 1024,
			Goroutines: runtime.NumGoroutine(),
		}
		data, err := json.Marshal(hb)
		if err != nil {
			return
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			logger.Warn("failed to write heartbeat", "error", err, "path", path)
		}
	}

	write()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			write()
		}
	}
}
