// Command bantzd is the brain runtime's thin entry point: it wires every
// component together from internal/config and then drives turns from stdin,
// printing the assistant's reply to stdout. This is the process a real
// transport (voice, chat platform) would sit in front of, exercised here
// directly over a terminal so the runtime can be driven without one.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haasonsaas/bantz/internal/config"
	"github.com/haasonsaas/bantz/internal/confirm"
	"github.com/haasonsaas/bantz/internal/contextbuilder"
	"github.com/haasonsaas/bantz/internal/dialogstore"
	"github.com/haasonsaas/bantz/internal/idempotency"
	"github.com/haasonsaas/bantz/internal/llmclient"
	"github.com/haasonsaas/bantz/internal/observability"
	"github.com/haasonsaas/bantz/internal/orchestrator"
	"github.com/haasonsaas/bantz/internal/qualitygate"
	"github.com/haasonsaas/bantz/internal/retry"
	"github.com/haasonsaas/bantz/internal/sweep"
	"github.com/haasonsaas/bantz/internal/toolexec"
	"github.com/haasonsaas/bantz/internal/turn"
	"github.com/haasonsaas/bantz/pkg/brain"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("bantzd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfgPath := os.Getenv("BANTZ_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	for _, dir := range []string{cfg.Memory.DBPath, cfg.Idempotency.StorePath, cfg.Metrics.File} {
		if d := filepath.Dir(dir); d != "" && d != "." {
			if err := os.MkdirAll(d, 0o755); err != nil {
				return fmt.Errorf("prepare data dir %s: %w", d, err)
			}
		}
	}

	obsLogger := observability.NewLogger(observability.DefaultLogConfig())
	bus := observability.NewEventBus(256, obsLogger)
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	tracker, err := observability.NewRunTracker(filepath.Join(filepath.Dir(cfg.Memory.DBPath), "runs.db"))
	if err != nil {
		return fmt.Errorf("open run tracker: %w", err)
	}
	defer tracker.Close()

	router, finalizer, err := buildClients(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build llm clients: %w", err)
	}
	if cfg.Metrics.Enabled {
		metricsLog, err := observability.NewLLMMetricsLog(cfg.Metrics.File)
		if err != nil {
			return fmt.Errorf("open llm metrics log: %w", err)
		}
		router = llmclient.NewInstrumentedClient(router, brain.TierFast, metricsLog)
		if finalizer != nil {
			finalizer = llmclient.NewInstrumentedClient(finalizer, brain.TierQuality, metricsLog)
		}
	}
	hybrid := orchestrator.NewHybrid(
		orchestrator.NewRouter(router),
		finalizer,
		qualitygate.NewPolicy(cfg.ToGatingConfig()),
		orchestrator.DefaultHybridConfig(),
		bus,
	)

	risks := confirm.NewRegistry()
	risks.Register("calendar.delete_event", brain.RiskDestructive)
	risks.Register("gmail.send", brain.RiskDestructive)
	risks.Register("file.delete", brain.RiskDestructive)
	risks.Register("calendar.*", brain.RiskModerate)
	risks.Register("gmail.*", brain.RiskModerate)

	executor := toolexec.NewExecutor(risks, bus).WithMetrics(metrics)

	idem := idempotency.NewStore(cfg.Idempotency.StorePath)

	dialogStore, err := dialogstore.NewStore(cfg.Memory.DBPath)
	if err != nil {
		return fmt.Errorf("open dialog store: %w", err)
	}
	defer dialogStore.Close()

	dialogMgr, err := dialogstore.NewManager(ctx, dialogStore, dialogstore.ManagerConfig{
		MaxSessions:        cfg.Memory.MaxSessions,
		MaxTurnsPerSession: cfg.Memory.MaxTurns,
		PIIFilterEnabled:   cfg.Memory.PIIFilter,
	}, cfg.Memory.MaxTurns)
	if err != nil {
		return fmt.Errorf("start dialog session: %w", err)
	}
	defer dialogMgr.Close(ctx)

	scheduler, err := sweep.New(sweep.DefaultConfig(), idem, dialogStore, logger)
	if err != nil {
		return fmt.Errorf("start sweep scheduler: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	runtime := turn.NewRuntime(turn.Deps{
		Hybrid:         hybrid,
		Executor:       executor,
		ContextBuilder: contextbuilder.NewBuilder(),
		Dialog:         dialogMgr,
		Tracker:        tracker,
		Dispatch:       unimplementedDispatcher(),
	})

	return repl(ctx, runtime, logger)
}

// buildClients constructs the router (always vLLM, wrapped in a retry
// decorator for transient failures) and the optional quality finalizer
// (Gemini; nil unless the finalizer type is "quality", finalization is
// enabled, cloud mode is not "local" and a Gemini key is set).
func buildClients(ctx context.Context, cfg *config.Config) (llmclient.Client, llmclient.Client, error) {
	router := llmclient.NewRetryingClient(
		llmclient.NewVLLMClient(cfg.Finalizer.VLLMBaseURL, cfg.Finalizer.VLLMAPIKey, cfg.Finalizer.VLLMModel),
		retry.DefaultConfig(),
	)

	if cfg.Finalizer.Type != "quality" || !cfg.Finalizer.Enabled || cfg.Finalizer.CloudMode == "local" || cfg.Finalizer.GeminiAPIKey == "" {
		return router, nil, nil
	}

	finalizer, err := llmclient.NewGeminiClient(ctx, cfg.Finalizer.GeminiAPIKey, cfg.Finalizer.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("gemini client: %w", err)
	}
	return router, llmclient.NewRetryingClient(finalizer, retry.DefaultConfig()), nil
}

// unimplementedDispatcher stands in for the concrete tool backends this
// binary does not ship. A real calendar/gmail backend registers itself here
// by implementing turn.Dispatcher and calling
// idempotency.CreateWithIdempotency internally before touching a live
// service.
func unimplementedDispatcher() turn.Dispatcher {
	return func(ctx context.Context, action string, params map[string]any) (any, bool, int, error) {
		return nil, false, 0, fmt.Errorf("bantzd: no backend registered for tool %q", action)
	}
}

// repl drives process_turn from stdin until ctx is cancelled or the user
// types /quit.
func repl(ctx context.Context, runtime *turn.Runtime, logger *slog.Logger) error {
	reader := bufio.NewReader(os.Stdin)
	state := &brain.OrchestratorState{SessionID: "cli"}

	fmt.Println("bantz hazır efendim. Çıkmak için /quit yazın.")
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		out, next, err := runtime.ProcessTurn(ctx, line, state)
		if err != nil {
			logger.Error("turn failed", "error", err)
			continue
		}
		state = next
		fmt.Println(out.AssistantReply)
	}
}
