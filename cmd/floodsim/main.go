package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"floodsim/internal/app"
	"floodsim/internal/server"
	"floodsim/internal/sims/flood"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	scenarioPath := flag.String("scenario", "", "scenario YAML file (defaults to flat terrain)")
	run := flag.Bool("run", false, "start the simulation loop immediately")
	frameBuffer := flag.Int("frame-buffer", 4, "frames queued per stream client before dropping")
	var overrides app.KVList
	flag.Var(&overrides, "set", "option override in key=value form (repeatable)")
	flag.Parse()

	logger := log.New(os.Stderr, "floodsim: ", log.LstdFlags)

	sc := flood.DefaultScenario()
	if *scenarioPath != "" {
		loaded, err := flood.LoadScenario(*scenarioPath)
		if err != nil {
			logger.Fatal(err)
		}
		sc = loaded
	}
	sc.Options = sc.Options.With(overrides.Map())
	sc.AutoStart = sc.AutoStart || *run

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := sc.Build(ctx, logger)
	if err != nil {
		logger.Fatalf("init: %v", err)
	}
	defer engine.Stop()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           server.New(engine, server.Config{Logger: logger, FrameBuffer: *frameBuffer}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s (%s)", *addr, engine.Info().Status)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}
