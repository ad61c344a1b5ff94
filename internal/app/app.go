// Package app wires the bot together: providers, skills, executor,
// scheduler, semantic index, agent loop, commands and the Telegram
// channel. It owns the lifecycle from startup to graceful shutdown.
package app

import (
	"context"
	"sync"

	"github.com/aatumaykin/skillbot/internal/agent"
	"github.com/aatumaykin/skillbot/internal/channels"
	"github.com/aatumaykin/skillbot/internal/channels/telegram"
	"github.com/aatumaykin/skillbot/internal/commands"
	"github.com/aatumaykin/skillbot/internal/config"
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

// App holds every component and manages their lifecycle.
type App struct {
	config *config.Config
	logger *logger.Logger

	metrics   *metrics.Metrics
	manager   *llm.Manager
	store     *skills.Store
	registry  *tools.Registry
	executor  *executor.Executor
	index     *index.Index
	sched     *scheduler.Scheduler
	conv      *agent.Conversation
	teaching  *agent.Teaching
	loop      *agent.Loop
	schedLoop *agent.Loop
	generator *skills.Generator
	prompts   *prompt.Builder
	fetcher   *fetch.Expander
	commands  *commands.Handler
	channel   *telegram.Channel

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// sink returns the outbound channel surface, or nil before the
// Telegram channel has started.
func (a *App) sink() channels.NotificationSink {
	if s := a.channel.Sink(); s != nil {
		return s
	}
	return nil
}

// New creates an App. Components are built in Initialize.
func New(cfg *config.Config, log *logger.Logger) *App {
	return &App{
		config: cfg,
		logger: log,
	}
}

// Run initializes everything and blocks on the Telegram update loop
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return err
	}

	a.logger.Info("Application is running")

	err := a.channel.Start(a.ctx)
	a.Shutdown()
	return err
}
