// Package main implements the Power-Save Controller entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/radio-control/psc/internal/api"
	"github.com/radio-control/psc/internal/audit"
	"github.com/radio-control/psc/internal/auth"
	"github.com/radio-control/psc/internal/command"
	"github.com/radio-control/psc/internal/config"
	"github.com/radio-control/psc/internal/fw"
	"github.com/radio-control/psc/internal/fw/simfw"
	"github.com/radio-control/psc/internal/metrics"
	"github.com/radio-control/psc/internal/ps"
	"github.com/radio-control/psc/internal/radio"
	"github.com/radio-control/psc/internal/suspend"
	"github.com/radio-control/psc/internal/telemetry"
)

const Version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("psc v%s\n", Version)
		return
	}

	log.Printf("Starting Power-Save Controller v%s", Version)

	// Step 1: Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully")

	// Step 2: Initialize telemetry hub
	telemetryHub := telemetry.NewHub(&cfg.Telemetry)
	log.Println("Telemetry hub initialized")

	// Step 3: Initialize audit logger
	auditLogger, err := audit.NewLogger(&cfg.Audit)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}
	log.Println("Audit logger initialized")

	// Step 4: Initialize metrics
	psMetrics := metrics.New()
	log.Println("Metrics registry initialized")

	// Step 5: Initialize radio manager and command orchestrator
	radioManager := radio.NewManager()
	orchestrator := command.NewOrchestrator(telemetryHub, &cfg.Command, radioManager)
	orchestrator.SetAuditLogger(auditLogger)
	orchestrator.SetMetrics(psMetrics)
	radioManager.SetConfirmHandler(orchestrator)
	telemetryHub.SetSnapshotSource(func() interface{} { return radioManager.List() })
	log.Println("Radio manager and orchestrator initialized")

	// Step 6: Bring up the configured radios
	for _, rc := range cfg.Radios {
		device := buildDevice(rc)
		observer := ps.MultiObserver{
			ps.LogObserver{Radio: rc.ID},
			psMetrics.ObserverFor(rc.ID),
			orchestrator.ObserverFor(rc.ID),
		}
		r := &radio.Radio{
			ID:         rc.ID,
			Model:      rc.Model,
			Controller: ps.NewController(device, observer),
			Device:     device,
			Params:     cfg.ParamsFor(rc),
		}
		if err := radioManager.Add(r); err != nil {
			log.Fatalf("Failed to register radio %s: %v", rc.ID, err)
		}
		log.Printf("Radio %s (%s, driver %q) registered", rc.ID, rc.Model, rc.Driver)
	}

	// Step 7: Start the suspend watcher when configured. The daemon keeps
	// running without it when the system bus is unreachable.
	var watcher *suspend.Watcher
	if cfg.Suspend.Enabled {
		bus, err := suspend.NewSystemBus()
		if err != nil {
			log.Printf("Suspend bridge unavailable: %v", err)
		} else {
			watcher = suspend.NewWatcher(bus, orchestrator, radioManager, &cfg.Suspend)
			if err := watcher.Start(); err != nil {
				log.Printf("Failed to start suspend watcher: %v", err)
				watcher = nil
			} else {
				log.Println("Suspend watcher started")
			}
		}
	}

	// Step 8: Create the API server
	server, err := buildServer(cfg, telemetryHub, orchestrator, radioManager)
	if err != nil {
		log.Fatalf("Failed to create API server: %v", err)
	}
	server.SetMetricsHandler(psMetrics.Handler())
	log.Println("API server created")

	// Step 9: Start HTTP server
	log.Printf("Starting HTTP server on %s", cfg.Server.Addr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Addr); err != nil {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	log.Printf("Power-Save Controller started successfully")
	log.Printf("Health endpoint: http://localhost%s/api/v1/health", cfg.Server.Addr)
	log.Printf("API base URL: http://localhost%s/api/v1", cfg.Server.Addr)

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		log.Printf("Server error: %v", err)
	}

	// Graceful shutdown: stop intake first, then the components behind it
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	} else {
		log.Println("HTTP server stopped gracefully")
	}

	if watcher != nil {
		watcher.Stop()
		log.Println("Suspend watcher stopped")
	}

	if err := radioManager.Close(); err != nil {
		log.Printf("Error closing radio manager: %v", err)
	} else {
		log.Println("Radio manager closed")
	}

	telemetryHub.Stop()
	log.Println("Telemetry hub stopped")

	if err := auditLogger.Close(); err != nil {
		log.Printf("Error closing audit logger: %v", err)
	} else {
		log.Println("Audit logger closed")
	}

	log.Println("Power-Save Controller shutdown complete")
}

// buildDevice creates the firmware device for one configured radio. The only
// driver today is the simulated firmware; validation has already rejected
// anything else.
func buildDevice(rc config.RadioConfig) fw.Device {
	return simfw.New(simfw.Config{
		RadioID:         rc.ID,
		Model:           rc.Model,
		ConfirmDelay:    rc.Sim.ConfirmDelay(),
		QueueSize:       rc.Sim.QueueSize,
		BusyWindow:      rc.Sim.BusyWindow(),
		DropConfirms:    rc.Sim.DropConfirms,
		CorruptConfirms: rc.Sim.CorruptConfirms,
	})
}

// buildServer assembles the API server, with bearer authentication when
// configured.
func buildServer(cfg *config.Config, hub *telemetry.Hub, orch *command.Orchestrator, manager *radio.Manager) (*api.Server, error) {
	if !cfg.Auth.Enabled {
		return api.NewServer(hub, orch, manager, &cfg.Server), nil
	}

	verifier, err := auth.NewVerifierFromConfig(&cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}
	middleware := auth.NewMiddleware(verifier)
	middleware.SetCorrelationFunc(audit.CorrelationID)
	return api.NewServerWithAuth(hub, orch, manager, middleware, &cfg.Server), nil
}
