// README: Entry point; loads config, wires services, starts HTTP server and the aggregation scheduler.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"taxifare/internal/app"
	"taxifare/internal/config"
	httptransport "taxifare/internal/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	handler := httptransport.NewServer(httptransport.ServerDeps{
		Suggest:     a.Suggest,
		Submission:  a.Submission,
		Aggregation: a.Aggregation,
		Verifier:    a.Verifier,
		CronSecret:  cfg.Auth.CronSecret,
		SubmitRate:  cfg.HTTP.SubmitRate,
		SubmitBurst: cfg.HTTP.SubmitBurst,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go a.Aggregation.RunScheduler(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("[api] listening on %s (db=%s auth=%s)", cfg.HTTP.Addr, cfg.DB.Driver, cfg.Auth.Mode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
