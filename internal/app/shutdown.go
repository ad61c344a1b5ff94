package app

import (
	"github.com/aatumaykin/skillbot/internal/logger"
)

// Shutdown releases resources in reverse dependency order. The
// scheduler, watcher and metrics server stop with the application
// context; this closes what holds handles.
func (a *App) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return
	}
	a.started = false

	a.logger.Info("Shutting down")

	if a.cancel != nil {
		a.cancel()
	}

	if a.executor != nil {
		if err := a.executor.Close(); err != nil {
			a.logger.Warn("Executor close failed",
				logger.Field{Key: "error", Value: err.Error()})
		}
	}

	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("Index close failed",
				logger.Field{Key: "error", Value: err.Error()})
		}
	}

	a.logger.Info("Shutdown complete")
}
