package app

import (
	"context"
	"fmt"
	"os"

	"github.com/aatumaykin/skillbot/internal/agent"
	"github.com/aatumaykin/skillbot/internal/channels/telegram"
	"github.com/aatumaykin/skillbot/internal/commands"
	"github.com/aatumaykin/skillbot/internal/executor"
	"github.com/aatumaykin/skillbot/internal/fetch"
	"github.com/aatumaykin/skillbot/internal/index"
	"github.com/aatumaykin/skillbot/internal/llm"
	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/metrics"
	"github.com/aatumaykin/skillbot/internal/prompt"
	"github.com/aatumaykin/skillbot/internal/scheduler"
	"github.com/aatumaykin/skillbot/internal/skills"
	"github.com/aatumaykin/skillbot/internal/tools"
)

// Initialize builds every component in dependency order.
func (a *App) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("application already initialized")
	}
	a.started = true

	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := os.MkdirAll(a.config.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	a.metrics = metrics.New("skillbot")
	if a.config.Metrics.Enabled {
		go a.metrics.Serve(a.ctx, a.config.Metrics.ListenAddr, a.logger)
	}

	a.manager = llm.NewManager(a.config.ProviderStateFile(), a.logger)
	a.registerProviders(a.ctx)
	a.manager.RestoreActive(a.config.Providers.Default)

	a.store = skills.NewStore(a.config.Paths.SkillsDir, a.logger)
	loaded, err := a.store.LoadAll()
	if err != nil {
		a.logger.Warn("Some skills failed to load",
			logger.Field{Key: "error", Value: err.Error()})
	}
	a.metrics.SetSkillsLoaded(len(loaded))
	a.registry = tools.NewRegistry(a.store, a.logger)

	runner, err := a.buildRunner()
	if err != nil {
		return err
	}
	a.executor = executor.New(runner, a.config.Executor, a.logger)

	if a.config.Index.Enabled {
		ix, err := index.New(a.config.Paths.IndexFile(), a.manager, a.logger)
		if err != nil {
			a.logger.Error("Semantic index unavailable", err)
		} else {
			a.index = ix
			a.seedIndex(a.ctx, loaded)
		}
	}

	jobStore := scheduler.NewStore(a.config.Paths.JobsFile(), a.logger)
	a.sched = scheduler.NewScheduler(jobStore, scheduler.NewPendingStore(), a.logger)

	a.conv = agent.NewConversation(a.config.Paths.HistoryFile(), a.logger)
	if err := a.conv.Load(); err != nil {
		a.logger.Warn("Failed to load conversation history",
			logger.Field{Key: "error", Value: err.Error()})
	}

	a.teaching = agent.NewTeaching()
	a.generator = skills.NewGenerator(a.manager, a.executor, a.store, a.logger)
	a.prompts = prompt.NewBuilder(a.config.Paths, a.logger)
	a.fetcher = fetch.NewExpander(a.config.Fetch, a.logger)

	deps := agent.Deps{
		Manager:   a.manager,
		Store:     a.store,
		Registry:  a.registry,
		Runner:    a.executor,
		Scheduler: a.sched,
		OnPropose: a.notifyProposal,
		Prompt:    a.prompts,
		Conv:      a.conv,
		Metrics:   a.metrics,
		Logger:    a.logger,
	}
	if a.index != nil {
		deps.Searcher = a.index
	}

	a.loop, err = agent.NewLoop(deps, a.config.Agent)
	if err != nil {
		return fmt.Errorf("failed to build agent loop: %w", err)
	}

	// Scheduled tasks run the same loop with a tighter round limit.
	schedCfg := a.config.Agent
	if schedCfg.ScheduledTaskMaxRounds > 0 {
		schedCfg.MaxToolRounds = schedCfg.ScheduledTaskMaxRounds
	}
	a.schedLoop, err = agent.NewLoop(deps, schedCfg)
	if err != nil {
		return fmt.Errorf("failed to build scheduled-task loop: %w", err)
	}

	a.commands = commands.NewHandler(
		a.manager, a.store, a.registry, a.sched, a.conv, a.index, a.prompts, a.logger)

	a.channel = telegram.New(a.config.Telegram, telegram.Handlers{
		OnMessage:  a.handleMessage,
		OnCallback: a.handleCallback,
	}, a.logger)

	a.sched.SetCallback(a.runScheduledJob)
	if a.config.Scheduler.Enabled {
		if err := a.sched.Start(a.ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	if a.config.Agent.WatchSkills {
		if err := a.watchSkills(a.ctx); err != nil {
			a.logger.Error("Skill watcher unavailable", err)
		}
	}

	return nil
}

// registerProviders registers ollama unconditionally and the hosted
// providers that have credentials.
func (a *App) registerProviders(ctx context.Context) {
	p := a.config.Providers

	a.manager.Register(llm.NewOllamaProvider(llm.OllamaConfig{
		BaseURL:    p.Ollama.BaseURL,
		Model:      p.Ollama.Model,
		EmbedModel: p.Ollama.EmbedModel,
	}, a.logger))

	if p.Gemini.APIKey != "" {
		gemini, err := llm.NewGeminiProvider(ctx, llm.GeminiConfig{
			APIKey:     p.Gemini.APIKey,
			Model:      p.Gemini.Model,
			EmbedModel: p.Gemini.EmbedModel,
		}, a.logger)
		if err != nil {
			a.logger.Error("Failed to initialize Gemini provider", err)
		} else {
			a.manager.Register(gemini)
		}
	}

	if p.Anthropic.APIKey != "" {
		a.manager.Register(llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey: p.Anthropic.APIKey,
			Model:  p.Anthropic.Model,
		}, a.logger))
	}

	if p.ZAI.APIKey != "" {
		a.manager.Register(llm.NewZAIProvider(llm.ZAIConfig{
			APIKey: p.ZAI.APIKey,
			Model:  p.ZAI.Model,
		}, a.logger))
	}
}

func (a *App) buildRunner() (executor.Runner, error) {
	switch a.config.Executor.Runner {
	case "docker":
		runner, err := executor.NewDockerRunner(a.config.Executor.Docker, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize docker runner: %w", err)
		}
		return runner, nil
	default:
		return executor.NewLocalRunner(a.config.Executor.Python, a.logger), nil
	}
}

// seedIndex populates an empty index from the loaded skills.
func (a *App) seedIndex(ctx context.Context, loaded []*skills.Skill) {
	count, err := a.index.Count(ctx)
	if err != nil || count > 0 {
		return
	}

	for _, skill := range loaded {
		if err := a.index.Index(ctx, skill.Name, skill.IndexText()); err != nil {
			a.logger.Warn("Failed to index skill",
				logger.Field{Key: "skill", Value: skill.Name},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}
	a.logger.Info("Seeded semantic index", logger.Field{Key: "skills", Value: len(loaded)})
}
