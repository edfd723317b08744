package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/spidy092/trustkit"
	"github.com/spidy092/trustkit/audit"
	"github.com/spidy092/trustkit/cache"
)

func main() {
	// Optional .env with AUTH_BASE_URL, AUTH_TOKEN, REDIS_ADDR.
	_ = godotenv.Load()

	baseURL := os.Getenv("AUTH_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:4000/auth"
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	gateway, err := trustkit.NewHTTPGateway(trustkit.HTTPGatewayConfig{
		BaseURL: baseURL,
		Tokens:  trustkit.StaticToken(os.Getenv("AUTH_TOKEN")),
	})
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	cfg := trustkit.Config{
		Gateway: gateway,
		Logger:  logger,
		Logout: func() {
			fmt.Println("Session ended. Please sign in again.")
		},
	}

	// Production-style backends when configured; in-memory defaults otherwise.
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisCache, err := cache.NewRedisFromConfig(cache.RedisConfig{Addr: addr})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		cfg.Cache = redisCache
		defer redisCache.Close()
	}
	if path := os.Getenv("AUDIT_DB"); path != "" {
		recorder, err := audit.NewSQLite(path)
		if err != nil {
			log.Fatalf("Failed to open audit database: %v", err)
		}
		cfg.Audit = recorder
		defer recorder.Close()
	}

	coord, err := trustkit.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize coordinator: %v", err)
	}
	defer coord.Close()

	ctx := context.Background()

	// Register this client as a trusted device.
	reg, err := coord.RegisterCurrentDevice(ctx, trustkit.FingerprintSignals{
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		ColorDepth:   24,
		Timezone:     "Europe/Berlin",
		Platform:     "linux",
	})
	if err != nil {
		log.Fatalf("Failed to register device: %v", err)
	}
	fmt.Printf("Device %s registered (created=%t, risk=%s)\n",
		reg.Device.ID, reg.Created, reg.RiskLevel)
	if reg.Advisory {
		fmt.Println("New device registered with elevated risk. Review your security settings.")
	}

	// Show the account's devices and sessions.
	devices, err := coord.ListDevices(ctx)
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}
	fmt.Printf("%d devices (%d trusted, %d pending, exposure %s)\n",
		devices.Insights.Total, devices.Insights.Trusted,
		devices.Insights.Pending, devices.Insights.ExposureLevel)

	sessions, err := coord.ListSessions(ctx)
	if err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}
	for _, s := range sessions {
		marker := " "
		if s.Current {
			marker = "*"
		}
		fmt.Printf("%s %s  %s / %s  suspicious=%t\n",
			marker, s.ID, s.Browser, s.OS, s.Suspicious)
	}

	// Watch session validity until interrupted.
	monitor := coord.StartMonitor(trustkit.MonitorConfig{
		PollInterval: 30 * time.Second,
		OnSessionInvalid: func(reason string) {
			fmt.Printf("Session invalidated (%s)\n", reason)
		},
		OnError: func(err error) {
			logger.Warn("poll error", zap.Error(err))
		},
	})
	defer monitor.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	fmt.Println("Monitoring session validity. Ctrl-C to exit.")
	<-stop
}
