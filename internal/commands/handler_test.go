package commands

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/skillbot/internal/agent"
	"github.com/aatumaykin/skillbot/internal/config"
	"github.com/aatumaykin/skillbot/internal/index"
	"github.com/aatumaykin/skillbot/internal/llm"
	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/messages"
	"github.com/aatumaykin/skillbot/internal/prompt"
	"github.com/aatumaykin/skillbot/internal/scheduler"
	"github.com/aatumaykin/skillbot/internal/skills"
	"github.com/aatumaykin/skillbot/internal/tools"
)

type fixture struct {
	handler *Handler
	manager *llm.Manager
	store   *skills.Store
	sched   *scheduler.Scheduler
	conv    *agent.Conversation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stdout"})
	require.NoError(t, err)

	manager := llm.NewManager(filepath.Join(dir, "state.json"), log)
	manager.Register(llm.NewMockProvider(llm.MockConfig{Responses: []string{"ok"}}))

	store := skills.NewStore(filepath.Join(dir, "skills"), log)
	require.NoError(t, store.Save(&skills.Skill{
		Name:    "get_weather",
		Title:   "Get Weather",
		Code:    "def run(city=\"\"):\n    return \"sunny\"",
		Enabled: true,
	}))
	require.NoError(t, store.Save(&skills.Skill{
		Name:    "get_time",
		Title:   "Get Time",
		Code:    "def run():\n    return \"12:00\"",
		Enabled: true,
	}))

	registry := tools.NewRegistry(store, log)
	jobStore := scheduler.NewStore(filepath.Join(dir, "jobs.json"), log)
	sched := scheduler.NewScheduler(jobStore, scheduler.NewPendingStore(), log)
	conv := agent.NewConversation(filepath.Join(dir, "history.json"), log)
	prompts := prompt.NewBuilder(config.PathsConfig{DataDir: dir}, log)

	handler := NewHandler(manager, store, registry, sched, conv, nil, prompts, log)

	return &fixture{handler: handler, manager: manager, store: store, sched: sched, conv: conv}
}

func TestHandleBasicCommands(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	reply, handled := fx.handler.Handle(ctx, "/start")
	assert.True(t, handled)
	assert.Equal(t, messages.Start, reply.Text)

	reply, handled = fx.handler.Handle(ctx, "/help")
	assert.True(t, handled)
	assert.Contains(t, reply.Text, "/skills")

	reply, handled = fx.handler.Handle(ctx, "/unknowncmd")
	assert.True(t, handled)
	assert.Contains(t, reply.Text, "Unknown command")

	_, handled = fx.handler.Handle(ctx, "/teach how to dance")
	assert.False(t, handled)

	_, handled = fx.handler.Handle(ctx, "")
	assert.False(t, handled)
}

func TestHandleModel(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	reply, handled := fx.handler.Handle(ctx, "/model")
	assert.True(t, handled)
	assert.Contains(t, reply.Text, "Current provider: mock")
	require.Len(t, reply.Keyboard, 1)
	assert.Equal(t, "✓ mock", reply.Keyboard[0][0].Text)
	assert.Equal(t, "model:mock", reply.Keyboard[0][0].Data)

	reply, handled = fx.handler.Handle(ctx, "/model mock")
	assert.True(t, handled)
	assert.Contains(t, reply.Text, "Switched to mock")

	reply, _ = fx.handler.Handle(ctx, "/model nonexistent")
	assert.Contains(t, reply.Text, "Cannot switch")
}

func TestHandleStatus(t *testing.T) {
	fx := newFixture(t)

	reply, handled := fx.handler.Handle(context.Background(), "/status")
	assert.True(t, handled)
	assert.Contains(t, reply.Text, "Provider: mock")
	assert.Contains(t, reply.Text, "Skills: 2 enabled, 0 disabled")
	assert.Contains(t, reply.Text, "Jobs: 0")
}

func TestHandleClear(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.conv.Append(
		llm.Message{Role: llm.RoleUser, Content: "hi"},
		llm.Message{Role: llm.RoleAssistant, Content: "hello"},
	))

	reply, handled := fx.handler.Handle(context.Background(), "/clear")
	assert.True(t, handled)
	assert.Equal(t, messages.HistoryCleared, reply.Text)
	assert.Equal(t, 0, fx.conv.Len())
}

func TestSkillsKeyboard(t *testing.T) {
	fx := newFixture(t)

	reply, handled := fx.handler.Handle(context.Background(), "/skills")
	assert.True(t, handled)
	assert.Contains(t, reply.Text, "2 enabled")
	// One row per skill plus the footer row.
	require.Len(t, reply.Keyboard, 3)

	var names []string
	for _, row := range reply.Keyboard[:2] {
		names = append(names, row[0].Data)
	}
	assert.Contains(t, names, "skill:get_weather")
	assert.Contains(t, names, "skill:get_time")

	footer := reply.Keyboard[2]
	require.Len(t, footer, 3)
	assert.Equal(t, "skills_all:on", footer[0].Data)
	assert.Equal(t, "skills_all:off", footer[1].Data)
	assert.Equal(t, "skills_reindex", footer[2].Data)
}

func TestToggleSkillCallback(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	reply := fx.handler.HandleCallback(ctx, "skill:get_weather")
	assert.True(t, reply.Edit)
	assert.Contains(t, reply.Text, "1 enabled, 1 disabled")

	skill, ok := fx.store.Get("get_weather")
	require.True(t, ok)
	assert.False(t, skill.Enabled)

	reply = fx.handler.HandleCallback(ctx, "skill:get_weather")
	assert.Contains(t, reply.Text, "2 enabled")

	reply = fx.handler.HandleCallback(ctx, "skill:missing")
	assert.Contains(t, reply.Text, "missing")
}

func TestAllSkillsCallback(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	reply := fx.handler.HandleCallback(ctx, "skills_all:off")
	assert.Contains(t, reply.Text, "0 enabled, 2 disabled")

	reply = fx.handler.HandleCallback(ctx, "skills_all:on")
	assert.Contains(t, reply.Text, "2 enabled, 0 disabled")
}

func TestReindexCallback(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// The fixture has no index wired.
	reply := fx.handler.HandleCallback(ctx, "skills_reindex")
	assert.Contains(t, reply.Text, "not available")

	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stdout"})
	require.NoError(t, err)
	ix, err := index.New(filepath.Join(t.TempDir(), "index.db"), stubEmbedder{}, log)
	require.NoError(t, err)
	defer ix.Close()

	fx.handler.index = ix
	reply = fx.handler.HandleCallback(ctx, "skills_reindex")
	assert.Equal(t, "Reindexed 2 skills.", reply.Text)

	count, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 4)
	for i, r := range text {
		v[i%4] += float32(r)
	}
	return v, nil
}

func TestJobCallbacks(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	pending := fx.sched.Propose("check the weather", "0 9 * * *", "Morning weather check")

	reply := fx.handler.HandleCallback(ctx, "confirm_job:"+pending.ID)
	assert.True(t, reply.Edit)
	assert.Contains(t, reply.Text, "Morning weather check")

	// Confirming again finds nothing pending.
	reply = fx.handler.HandleCallback(ctx, "confirm_job:"+pending.ID)
	assert.Equal(t, messages.NoPendingJob, reply.Text)

	jobs := fx.sched.ListJobs()
	require.Len(t, jobs, 1)
	id := jobs[0].ID

	reply = fx.handler.HandleCallback(ctx, "job_toggle:"+id)
	assert.True(t, reply.Edit)
	job, ok := fx.sched.GetJob(id)
	require.True(t, ok)
	assert.False(t, job.Enabled)

	reply = fx.handler.HandleCallback(ctx, "job_delete:"+id)
	assert.Contains(t, reply.Text, "deleted")
	assert.Empty(t, fx.sched.ListJobs())

	reply = fx.handler.HandleCallback(ctx, "job_toggle:"+id)
	assert.Contains(t, reply.Text, "not found")
}

func TestCancelPendingCallback(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	pending := fx.sched.Propose("water plants", "0 18 * * *", "Evening reminder")

	reply := fx.handler.HandleCallback(ctx, "cancel_job:"+pending.ID)
	assert.Equal(t, messages.ScheduleCancelled, reply.Text)
	assert.Empty(t, fx.sched.ListJobs())

	reply = fx.handler.HandleCallback(ctx, "cancel_job:"+pending.ID)
	assert.Equal(t, messages.NoPendingJob, reply.Text)
}

func TestCommandMention(t *testing.T) {
	fx := newFixture(t)

	reply, handled := fx.handler.Handle(context.Background(), "/help@skillbot")
	assert.True(t, handled)
	assert.Contains(t, reply.Text, "Commands:")
}

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("/start"))
	assert.True(t, IsCommand("  /help"))
	assert.False(t, IsCommand("hello /start"))
	assert.False(t, IsCommand(""))
}
