package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"private-lending/internal/config"
	"private-lending/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	log.SetPrefix("[INGRESS] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, *configPath, config.RoleIngress); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
