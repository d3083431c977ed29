package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"blood-link/internal/config"
	"blood-link/internal/mylogger"
	requestservice "blood-link/internal/request-service"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: app request-service [-port N] [-store memory|sqlite|postgres] [-hospitals FILE]")
}

func main() {
	requestCmd := flag.NewFlagSet("request-service", flag.ExitOnError)
	port := requestCmd.String("port", "", "http port (overrides REQUEST_SERVICE_PORT)")
	store := requestCmd.String("store", "", "store driver (overrides STORE_DRIVER)")
	hospitals := requestCmd.String("hospitals", "", "hospital directory file (overrides HOSPITALS_FILE)")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "request-service":
		_ = requestCmd.Parse(os.Args[2:])
		if *port != "" {
			_ = os.Setenv("REQUEST_SERVICE_PORT", *port)
		}
		if *store != "" {
			_ = os.Setenv("STORE_DRIVER", *store)
		}
		if *hospitals != "" {
			_ = os.Setenv("HOSPITALS_FILE", *hospitals)
		}

		cfg, err := config.New()
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
		mylog, err := mylogger.New(cfg.Log.Level)
		if err != nil {
			fmt.Fprintln(os.Stderr, "logger:", err)
			os.Exit(1)
		}

		if err := requestservice.Execute(context.Background(), mylog.With("service", "request-service"), cfg); err != nil {
			mylog.Error("request service stopped with error", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(1)
	}
}
