package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	config "github.com/druid0523/task-manager-mcp/internal/configs"
	httpapi "github.com/druid0523/task-manager-mcp/internal/http"
	middleware "github.com/druid0523/task-manager-mcp/internal/http/middlewares"
	"github.com/druid0523/task-manager-mcp/internal/registry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the task tree HTTP API over per-project sqlite storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println(".env file not found, using environment variables")
		}

		cfg := config.Load()

		reg := registry.New()

		rateLimiter := middleware.RateLimiter(cfg.RateLimit, time.Minute)
		if cfg.RedisAddr != "" {
			redisClient := config.NewRedisClient(cfg.RedisAddr)
			defer redisClient.Close()
			rateLimiter = middleware.RedisRateLimiter(redisClient, cfg.RedisRatePrefix, cfg.RateLimit, time.Minute)
		}

		e := echo.New()
		handler := httpapi.NewHandler(reg)
		httpapi.Register(e, handler, rateLimiter)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		go func() {
			log.Printf("HTTP server listening on %s", cfg.AppURL)
			if err := e.Start(cfg.AppURL); err != nil {
				log.Printf("server stopped: %v", err)
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
		)
		defer cancel()

		_ = e.Shutdown(shutdownCtx)

		if err := reg.CloseAll(); err != nil {
			log.Printf("failed to close project databases: %v", err)
		}

		log.Println("HTTP server shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
