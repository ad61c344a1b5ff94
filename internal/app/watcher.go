package app

import (
	"context"
	"time"

	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/skills"
)

const defaultWatchDebounce = 500 * time.Millisecond

// watchSkills reloads the store when skill documents change on disk,
// so edits land without a /reload.
func (a *App) watchSkills(ctx context.Context) error {
	debounce := time.Duration(a.config.Agent.WatchDebounceMillis) * time.Millisecond
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}

	watcher, err := skills.NewWatcher(a.config.Paths.SkillsDir, debounce, a.logger, func() {
		loaded, err := a.store.LoadAll()
		if err != nil {
			a.logger.Warn("Skill reload after change failed",
				logger.Field{Key: "error", Value: err.Error()})
		}

		a.registry.ClearCache()
		a.metrics.SetSkillsLoaded(len(loaded))
		a.logger.Info("Skills reloaded after change",
			logger.Field{Key: "count", Value: len(loaded)})
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if err := watcher.Close(); err != nil {
			a.logger.Debug("Watcher close failed",
				logger.Field{Key: "error", Value: err.Error()})
		}
	}()

	return nil
}
