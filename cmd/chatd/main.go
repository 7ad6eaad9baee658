package main

import (
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/asyncchat/asyncchat/internal/chat"
	"github.com/asyncchat/asyncchat/internal/config"
	"github.com/asyncchat/asyncchat/internal/eventlog"
	"github.com/asyncchat/asyncchat/internal/health"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", "", "chat listen address (overrides config)")
	wsAddr := flag.String("ws-addr", "", "websocket listen address (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "metrics listen address (overrides config)")
	save := flag.String("save", "", "save full session to PATH as JSON Lines (console output remains)")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			os.Stderr.WriteString("chatd: " + err.Error() + "\n")
			os.Exit(1)
		}
		cfg = loaded
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Listen = *addr
		case "ws-addr":
			cfg.Server.WSListen = *wsAddr
		case "metrics-addr":
			cfg.Server.MetricsListen = *metricsAddr
		case "save":
			cfg.Log.Save = *save
		}
	})

	logger, closeLog, err := eventlog.New(os.Stdout, cfg.Log.Save, eventlog.ParseLevel(cfg.Log.Level))
	if err != nil {
		os.Stderr.WriteString("chatd: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	srv := chat.NewServer(chat.Options{
		Listen:        cfg.Server.Listen,
		WSListen:      cfg.Server.WSListen,
		MaxLineBytes:  cfg.Server.MaxLineBytes,
		QueueDepth:    cfg.Server.QueueDepth,
		IdleTimeout:   cfg.Server.IdleTimeout.Std(),
		ShutdownGrace: cfg.Server.ShutdownGrace.Std(),
	}, logger)
	if err := srv.Start(); err != nil {
		logger.Error("failed to start server", "error", err)
		closeLog()
		os.Exit(1)
	}

	var metricsSrv *http.Server
	if cfg.Server.MetricsListen != "" {
		ln, err := net.Listen("tcp", cfg.Server.MetricsListen)
		if err != nil {
			logger.Error("failed to bind metrics listener", "error", err)
			srv.Stop()
			closeLog()
			os.Exit(1)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Handler: mux}
		go metricsSrv.Serve(ln)
		logger.Info("metrics listener started", "addr", ln.Addr().String())
	}

	var sampler *health.Sampler
	if interval := cfg.Health.Interval.Std(); interval > 0 {
		sampler, err = health.NewSampler(interval, logger)
		if err != nil {
			logger.Warn("health sampler unavailable", "error", err)
		} else {
			go sampler.Run()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	srv.Stop()
	if metricsSrv != nil {
		metricsSrv.Close()
	}
	if sampler != nil {
		sampler.Stop()
	}
}
