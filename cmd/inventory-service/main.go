// cmd/inventory-service/main.go
package main

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"stockflow/internal/pkg/bootstrap"
	"stockflow/internal/pkg/logger"
)

func main() {
	cfg, err := bootstrap.LoadConfig("")
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Log, cfg.App.ServiceName)

	ctx := context.Background()
	app, err := buildApp(ctx, cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to assemble inventory service")
	}

	if err := bootstrap.StartService(ctx, app); err != nil {
		zlog.Fatal().Err(err).Msg("inventory service stopped with error")
	}
}
