package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"joby/internal/adapter/cache"
	"joby/internal/adapter/channel"
	"joby/internal/adapter/llm"
	"joby/internal/adapter/store"
	"joby/internal/domain"
	"joby/internal/infra/config"
	"joby/internal/infra/logger"
	"joby/internal/infra/tracer"
	"joby/internal/usecase"
	"joby/internal/usecase/agents"
	"joby/internal/usecase/eventbus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	bus := eventbus.New(log)
	defer bus.Close()

	// The session cache holds all live conversation state. Without it no
	// turn can be served, so an unreachable Redis is fatal at startup.
	sessionCache, err := cache.NewRedisCache(ctx, cfg.SessionCache.RedisURL, log)
	if err != nil {
		return err
	}
	defer sessionCache.Close()

	profileStore := newProfileStore(ctx, cfg, bus, log)
	if closer, ok := profileStore.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	provider, err := newProvider(cfg, log)
	if err != nil {
		return err
	}

	registry := buildRegistry(cfg, provider, profileStore, log)
	resolver := usecase.NewIdentityResolver(profileStore, log)
	orchestrator := usecase.NewOrchestrator(
		resolver, sessionCache, profileStore, registry, bus,
		cfg.SessionCache.TTL, cfg.Engine.AgentTimeout, log,
	)

	bus.Subscribe(domain.EventStateTransition, func(_ context.Context, event domain.Event) {
		log.Info("session transitioned",
			"session", event.SessionID, "from", event.Data["from"], "to", event.Data["to"])
	})

	ch, err := newChannel(cfg, log)
	if err != nil {
		return err
	}
	if ch != nil {
		if err := ch.Start(ctx, orchestrator.Turn); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := ch.Stop(stopCtx); err != nil {
				log.Warn("channel stop failed", "error", err)
			}
		}()

		if cfg.Report.Enabled {
			reporter := usecase.NewReporter(profileStore, sessionCache, registry, ch, cfg.Report.Schedule, log)
			if err := reporter.Start(); err != nil {
				return err
			}
			defer reporter.Stop()
		}
	}

	log.Info("engine started", "channel", cfg.Channel.Type, "model", cfg.LLM.Model)
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// newProfileStore opens the durable store, falling back to degraded mode
// when it is unreachable. Sessions keep working on the cache alone.
func newProfileStore(ctx context.Context, cfg *config.Config, bus domain.EventBus, log *slog.Logger) domain.ProfileStore {
	s, err := store.New(cfg.ProfileStore.Path, log)
	if err != nil {
		log.Warn("profile store unavailable, entering degraded mode", "path", cfg.ProfileStore.Path, "error", err)
		bus.Publish(ctx, domain.Event{
			Type: domain.EventDegradedMode,
			Data: map[string]string{"error": err.Error()},
		})
		return store.NewDegraded(log)
	}
	return s
}

func newProvider(cfg *config.Config, log *slog.Logger) (domain.LLMProvider, error) {
	bedrock, err := llm.NewBedrockProvider(cfg.LLM, log)
	if err != nil {
		return nil, err
	}
	return llm.NewCircuitBreakerProvider(bedrock, cfg.LLM.Breaker, log), nil
}

func buildRegistry(cfg *config.Config, provider domain.LLMProvider, profileStore domain.ProfileStore, log *slog.Logger) *agents.Registry {
	counter := llm.NewTokenCounter()
	analysisModel := cfg.LLM.AnalysisModelOrDefault()

	registry := agents.NewRegistry()
	registry.Register(domain.TargetCVAnalysis, agents.NewAnalysisAgent(provider, profileStore, analysisModel, log))
	registry.Register(domain.TargetJobMatching, agents.NewMatchingAgent(profileStore, log))
	registry.Register(domain.TargetCVOptimization, agents.NewOptimizeAgent(provider, profileStore, analysisModel, log))
	registry.Register(domain.TargetAutoApply, agents.NewApplyAgent(provider, nil, cfg.LLM.Model, log))
	registry.Register(domain.TargetCommunication, agents.NewCommunicationAgent())
	registry.Register(domain.TargetChat, agents.NewChatAgent(provider, counter, cfg.Engine.HistoryTokenBudget, log))
	registry.Register(domain.TargetLearning, agents.NewLearningAgent(profileStore, log))
	return registry
}

func newChannel(cfg *config.Config, log *slog.Logger) (domain.Channel, error) {
	switch cfg.Channel.Type {
	case "telegram":
		opts := []channel.TelegramOption{}
		if cfg.Channel.SendPerSecond > 0 {
			opts = append(opts, channel.WithTelegramSendLimit(cfg.Channel.SendPerSecond, cfg.Channel.SendBurst))
		}
		return channel.NewTelegramChannel(cfg.Channel.Token, log, opts...), nil
	case "none", "":
		log.Info("running headless, no channel configured")
		return nil, nil
	default:
		return nil, domain.NewDomainError("newChannel", domain.ErrInvalidInput, "unsupported channel "+cfg.Channel.Type)
	}
}
