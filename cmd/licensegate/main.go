package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/licensegate/licensegate/internal/app"
	"github.com/licensegate/licensegate/internal/security"

	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch flag.Arg(0) {
	case "migrate":
		if err := app.Migrate(ctx, *configPath); err != nil {
			log.WithError(err).Fatal("migrate failed")
		}
		log.Info("migrations applied")
	case "hash-token":
		token := flag.Arg(1)
		if token == "" {
			log.Fatal("usage: licensegate hash-token <token>")
		}
		hash, errHash := security.HashAdminToken(token)
		if errHash != nil {
			log.WithError(errHash).Fatal("hash token failed")
		}
		fmt.Println(hash)
	case "":
		if err := app.RunServer(ctx, *configPath); err != nil {
			log.WithError(err).Fatal("server exited")
		}
	default:
		log.Fatalf("unknown command: %s", flag.Arg(0))
	}
}
