package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/whisper/flashscope/internal/config"
	"github.com/whisper/flashscope/internal/flash"
	"github.com/whisper/flashscope/internal/lifecycle"
	"github.com/whisper/flashscope/internal/log"
	"github.com/whisper/flashscope/internal/messaging"
	"github.com/whisper/flashscope/internal/notice"
	"github.com/whisper/flashscope/internal/ratelimit"
	"github.com/whisper/flashscope/internal/session"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Errorf("invalid configuration: %v", err)
		os.Exit(1)
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Session backend ---
	backend, throttle, err := openBackend(ctx, cfg)
	if err != nil {
		log.Errorf("failed to open %s session backend: %v", cfg.SessionBackend, err)
		os.Exit(1)
	}
	defer backend.Close()

	// --- NATS (optional) ---
	flashOpts := []flash.Option{flash.WithLogger(log.Default)}
	var natsClient *messaging.NATSClient
	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.Name = "flashdemo"
		natsClient, err = messaging.NewNATSClient(natsConfig)
		if err != nil {
			log.Errorf("failed to connect to NATS: %v", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		flashOpts = append(flashOpts, flash.WithEvents(natsClient))

		if cfg.EventLog {
			stopEvents, err := startEventLog(natsClient, log.Default)
			if err != nil {
				log.Errorf("failed to subscribe to flash events: %v", err)
				os.Exit(1)
			}
			defer stopEvents()
		}
	}

	sessions := session.NewManager(backend, session.ManagerConfig{
		CookieName: session.CookieName,
		Path:       cfg.CookiePath,
		Secure:     cfg.CookieSecure,
	})
	handlerOpts := []lifecycle.HandlerOption{
		lifecycle.WithCookieConfig(lifecycle.CookieConfig{Path: cfg.CookiePath, Secure: cfg.CookieSecure}),
	}
	if throttle != nil {
		handlerOpts = append(handlerOpts, lifecycle.WithThrottle(throttle))
	}
	page := lifecycle.NewHandler(notice.NewPage("/"), sessions, flash.NewManager(flashOpts...), handlerOpts...)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: newRouter(page),
	}

	log.Infof("flash demo server starting")
	log.Infof("  listen_addr:     %s", cfg.ListenAddr)
	log.Infof("  session_backend: %s", cfg.SessionBackend)
	log.Infof("  session_ttl:     %s", cfg.SessionTTL)
	log.Infof("  nats_url:        %s", cfg.NATSURL)
	log.Infof("  event_log:       %v", cfg.EventLog)
	log.Infof("  throttle:        %v", throttle != nil)

	go func() {
		<-ctx.Done()
		log.Infof("shutdown signal received, draining connections...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown error: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("server error: %v", err)
		os.Exit(1)
	}
	log.Infof("server stopped")
}

// openBackend connects the configured session backend. Backends that do not
// expire sessions themselves get a purge loop bound to ctx. The postback
// throttle needs Redis and is only returned for the redis backend.
func openBackend(ctx context.Context, cfg config.Config) (session.Backend, lifecycle.Throttle, error) {
	switch cfg.SessionBackend {
	case config.BackendRedis:
		store, err := session.NewRedisStore(cfg.RedisAddr, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		limiter := ratelimit.NewLimiter(store.Client())
		return store, ratelimit.NewSessionThrottle(limiter, ratelimit.RulePostback), nil

	case config.BackendPostgres:
		store, err := session.NewPostgresStore(cfg.DatabaseURL, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		go session.StartPurge(ctx, store, cfg.PurgeInterval)
		return store, nil, nil

	default:
		store := session.NewMemoryStore(cfg.SessionTTL)
		go session.StartPurge(ctx, store, cfg.PurgeInterval)
		return store, nil, nil
	}
}
