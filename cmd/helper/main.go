// Command helper plays a donor against a running request service: it accepts a request,
// listens on the donor's websocket and walks toward the hospital reporting its location.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"blood-link/internal/config"
	"blood-link/internal/mylogger"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	appLogger, err := mylogger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	sim := &Config{}
	flag.StringVar(&sim.BaseURL, "base", "http://localhost:"+cfg.Srv.RequestServicePort, "request service base url")
	flag.StringVar(&sim.DonorID, "donor_id", "", "donor user id")
	flag.StringVar(&sim.RequestID, "request_id", "", "request to accept")
	flag.StringVar(&sim.Secret, "secret", cfg.App.PublicJwtSecret, "jwt signing secret")
	flag.Float64Var(&sim.Start.Lat, "lat", 13.0827, "starting latitude")
	flag.Float64Var(&sim.Start.Lng, "lng", 80.2707, "starting longitude")
	flag.Float64Var(&sim.SpeedKmh, "speed", 30, "travel speed in km/h")
	flag.DurationVar(&sim.StepPeriod, "step", 2*time.Second, "time between location reports")
	flag.Parse()

	if sim.DonorID == "" || sim.RequestID == "" {
		log.Fatal("donor_id and request_id are required")
	}
	appLogger.Action("donor_simulation_started").Info("simulating donor", "donor_id", sim.DonorID, "request_id", sim.RequestID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := NewLogger(sim.DonorID)
	donor, err := NewDonorService(sim, logger)
	if err != nil {
		appLogger.Error("failed to sign token", err)
		os.Exit(1)
	}

	ws := NewWebSocketClient(ctx, logger)
	wsURL := strings.Replace(sim.BaseURL, "http", "ws", 1) + fmt.Sprintf(WSUserPath, sim.DonorID)
	if err := ws.Connect(wsURL, donor.Token()); err != nil {
		logger.Warn("websocket unavailable: %v", err)
	} else {
		defer ws.Close()
		go func() {
			if err := ws.ReadMessages(func(e Event) {
				logger.WebSocket("%s %s", e.Type, string(e.Data))
			}); err != nil {
				logger.Warn("websocket closed: %v", err)
			}
		}()
	}

	if err := donor.Run(ctx); err != nil {
		appLogger.Error("simulation failed", err)
		os.Exit(1)
	}
	appLogger.Action("donor_simulation_finished").Info("done")
}
