// Command advisord serves the advisor chat endpoint.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/axonworks/advisor-go/pkg/core"
	"github.com/axonworks/advisor-go/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON or YAML config file (default: environment / .env)")
	addr := flag.String("addr", "", "Listen address, overrides SERVER_ADDR")
	flag.Parse()

	var (
		config *core.Config
		err    error
	)
	if *configPath != "" {
		config, err = core.LoadConfigFromFile(*configPath)
	} else {
		if envPath, found := core.FindEnvFile(); found {
			log.Printf("Using config file: %s", envPath)
		}
		config, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		config.Server.Addr = *addr
	}

	srv, err := server.New(config)
	if err != nil {
		log.Fatalf("Failed to start advisor: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Advisor stopped")
}
