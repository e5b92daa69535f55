package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/bleue740/huggy-code-haven-sub000/internal/config"
	"github.com/bleue740/huggy-code-haven-sub000/internal/credit"
	"github.com/bleue740/huggy-code-haven-sub000/internal/llm"
	"github.com/bleue740/huggy-code-haven-sub000/internal/logging"
	"github.com/bleue740/huggy-code-haven-sub000/internal/orchestrator"
	"github.com/bleue740/huggy-code-haven-sub000/internal/prompt"
	"github.com/bleue740/huggy-code-haven-sub000/internal/routing"
	"github.com/bleue740/huggy-code-haven-sub000/internal/snapshot"
)

// Exit codes.
const (
	exitTurnFailed = 2
	exitInput      = 3
	exitProvider   = 4
	exitMalformed  = 5
)

// loadConfig reads the config file, environment, and bound flags.
func loadConfig(rf *rootFlags) (config.Config, error) {
	home, _ := os.UserHomeDir()
	config.Setup(rf.v, rf.configFile, home)
	if err := rf.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config.Config{}, exitError(exitInput, "failed to read config: %v", err)
		}
	}
	cfg, err := config.Load(rf.v)
	if err != nil {
		return config.Config{}, exitError(exitInput, "%v", err)
	}
	if rf.logLevel != "" {
		cfg.Log.Level = rf.logLevel
	}
	if rf.verbose && cfg.Log.Level != "debug" {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg config.Config, stderr io.Writer) (*logging.Logger, error) {
	log, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return nil, exitError(exitInput, "%v", err)
	}
	return log, nil
}

// buildRouter resolves the routing profile and applies config overrides.
// provider selects which of the profile's model names are used.
func buildRouter(cfg config.Config, provider string) (*routing.Router, error) {
	prof, err := routing.Resolve(cfg.Routing.Profile)
	if err != nil {
		return nil, exitError(exitInput, "failed to load routing profile: %v", err)
	}
	r, err := routing.NewRouter(prof, routerOverride(cfg, provider))
	if err != nil {
		return nil, exitError(exitInput, "%v", err)
	}
	return r, nil
}

func routerOverride(cfg config.Config, provider string) routing.Override {
	return routing.Override{
		Force:         cfg.Models.Force,
		ExtraKeywords: cfg.Routing.Keywords,
		Provider:      provider,
		FastModel:     cfg.Models.Fast,
		LargeModel:    cfg.Models.Large,
	}
}

func promptOptions(cfg config.Config, prof *routing.Profile) prompt.Options {
	stack := cfg.Pipeline.Stack
	if stack == "" {
		stack = prof.Stack
	}
	return prompt.Options{
		Stack:      stack,
		Guidelines: routing.Guidance(prof),
		Strict:     cfg.Pipeline.Strict,
	}
}

func snapshotOptions(cfg config.Config) snapshot.Options {
	return snapshot.Options{
		MaxContextBytes: cfg.Pipeline.MaxContextBytes,
		MaxFileBytes:    cfg.Pipeline.MaxFileBytes,
		Redact:          cfg.Pipeline.Redact,
	}
}

// openLedger opens the configured credit store. Users named in config
// receive the initial grant the first time they are seen.
func openLedger(ctx context.Context, cfg config.Config) (credit.Ledger, func() error, error) {
	users := append([]string{cfg.User}, cfg.Users()...)

	if cfg.Credit.DB == "" {
		seed := make(map[string]int, len(users))
		for _, u := range users {
			seed[u] = cfg.Credit.InitialGrant
		}
		return credit.NewMemoryLedger(seed), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Credit.DB), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create credit db dir: %w", err)
	}
	l, err := credit.OpenSQLite(ctx, cfg.Credit.DB)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Credit.InitialGrant > 0 {
		for _, u := range users {
			hist, err := l.History(ctx, u, 1)
			if err != nil {
				l.Close()
				return nil, nil, err
			}
			if len(hist) == 0 {
				if err := l.Grant(ctx, u, cfg.Credit.InitialGrant); err != nil {
					l.Close()
					return nil, nil, err
				}
			}
		}
	}
	return l, l.Close, nil
}

// resolveProvider is replaced in tests.
var resolveProvider = func(cfg config.Config) (llm.Provider, error) {
	return llm.ResolveProvider(llm.Options{
		Kind:    cfg.Provider.Kind,
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Client:  &http.Client{Timeout: cfg.Provider.Timeout},
	})
}

// pipeline is everything a command needs to run turns.
type pipeline struct {
	orch     *orchestrator.Orchestrator
	router   *routing.Router
	ledger   credit.Ledger
	provider string
	close    func() error
}

type pipelineOpts struct {
	provider llm.Provider
	ledger   credit.Ledger
	trace    io.Writer
}

func newPipeline(ctx context.Context, cfg config.Config, log *logging.Logger, po pipelineOpts) (*pipeline, error) {
	provider := po.provider
	if provider == nil {
		p, err := resolveProvider(cfg)
		if err != nil {
			return nil, exitError(exitProvider, "model provider error: %v", err)
		}
		provider = p
	}
	log.Debug("using provider", "provider", provider.Name())

	router, err := buildRouter(cfg, provider.Name())
	if err != nil {
		return nil, err
	}

	ledger, closeLedger := po.ledger, func() error { return nil }
	if ledger == nil {
		ledger, closeLedger, err = openLedger(ctx, cfg)
		if err != nil {
			return nil, exitError(exitInput, "failed to open credit ledger: %v", err)
		}
	}

	agent := &llm.Agent{
		Provider:    provider,
		Temperature: cfg.Provider.Temperature,
		MaxTokens:   cfg.Provider.MaxTokens,
		Timeout:     cfg.Pipeline.StageTimeout,
	}
	if po.trace != nil {
		agent.Trace = traceTo(po.trace)
	}

	orch := orchestrator.New(agent, ledger, orchestrator.Options{
		Prompt:          promptOptions(cfg, router.Profile()),
		Router:          router,
		Cost:            cfg.Pipeline.Cost,
		HistoryTurns:    cfg.Pipeline.HistoryTurns,
		MaxContextBytes: cfg.Pipeline.MaxContextBytes,
		Redact:          cfg.Pipeline.Redact,
		Logger:          log.Logger,
	})
	return &pipeline{orch: orch, router: router, ledger: ledger, provider: provider.Name(), close: closeLedger}, nil
}

// traceTo writes every stage call to w. Calls can overlap in serve mode.
func traceTo(w io.Writer) func(system, payload, raw string) {
	var mu sync.Mutex
	return func(system, payload, raw string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "=== system ===\n%s\n=== payload ===\n%s\n=== output ===\n%s\n%s\n",
			system, payload, raw, strings.Repeat("-", 40))
	}
}
