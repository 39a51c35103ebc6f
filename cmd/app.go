package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"careAlert/internal/components"
	"careAlert/internal/config"
)

func Run() error {
	cfg, err := config.Load()
	if err != nil {
		components.SetupLogger("local").Error("load config failed", "err", err)
		return err
	}
	logger := components.SetupLogger(cfg.Env)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	comps, err := components.InitComponents(ctx, cfg, logger)
	if err != nil {
		logger.Error("could not init components", "err", err)
		return err
	}

	var wg sync.WaitGroup
	comps.RunBackground(ctx, &wg)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := comps.HttpServer.Run(ctx); err != nil {
			logger.Error("http server failed", "err", err)
			stop()
		}
		logger.Info("http server stopped")
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quitChan:
		logger.Info("captured signal, initiating shutdown", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, initiating shutdown")
	}
	stop()

	wg.Wait()

	logger.Info("shutting down the services...")
	comps.ShutdownAll()
	logger.Info("gracefully shutting down the servers")

	return nil
}
