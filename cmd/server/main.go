package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/sporthack/internal/server"
	"github.com/dmitrijs2005/sporthack/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := server.NewLogger(cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)

	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		os.Exit(1)
	}

}
