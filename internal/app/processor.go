package app

import (
	"context"
	"strings"

	"github.com/aatumaykin/skillbot/internal/channels"
	"github.com/aatumaykin/skillbot/internal/commands"
	"github.com/aatumaykin/skillbot/internal/llm"
	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/messages"
	"github.com/aatumaykin/skillbot/internal/scheduler"
)

// handleMessage processes one admin message. It runs on the polling
// goroutine, so messages are handled strictly in order.
func (a *App) handleMessage(ctx context.Context, in channels.Incoming) {
	sink := a.sink()
	text := strings.TrimSpace(in.Text)

	if a.teaching.Active() {
		a.metrics.RecordMessage("teaching")
		a.handleTeachingTurn(ctx, text)
		return
	}

	if commands.IsCommand(text) {
		a.metrics.RecordMessage("command")
		if cmd := strings.Fields(text); len(cmd) > 0 &&
			(cmd[0] == "/teach" || strings.HasPrefix(cmd[0], "/teach@")) {
			a.startTeaching(ctx, text)
			return
		}

		if reply, handled := a.commands.Handle(ctx, text); handled {
			a.sendReply(ctx, reply)
			return
		}
	}

	a.metrics.RecordMessage("message")

	stop := sink.IndicateActivity(ctx)
	defer stop()

	var image *llm.ImageAttachment
	if in.PhotoFileID != "" {
		attachment, ok := a.downloadPhoto(ctx, in.PhotoFileID)
		if !ok {
			return
		}
		image = attachment
	}

	text = a.fetcher.Expand(ctx, text)
	answer := a.loop.Run(ctx, text, image)

	if _, err := sink.Send(ctx, answer); err != nil {
		a.logger.Error("Failed to send reply", err)
	}
}

func (a *App) downloadPhoto(ctx context.Context, fileID string) (*llm.ImageAttachment, bool) {
	sink := a.sink()

	active := a.manager.Active()
	if active == nil || !active.SupportsVision() {
		if _, err := sink.Send(ctx, messages.VisionUnsupported); err != nil {
			a.logger.Error("Failed to send vision notice", err)
		}
		return nil, false
	}

	data, mime, err := sink.DownloadAttachment(ctx, fileID)
	if err != nil {
		a.logger.Error("Failed to download photo", err)
		if _, err := sink.Send(ctx, messages.GenericError); err != nil {
			a.logger.Error("Failed to send error notice", err)
		}
		return nil, false
	}

	return &llm.ImageAttachment{Data: data, MIME: mime}, true
}

func (a *App) startTeaching(ctx context.Context, text string) {
	request := strings.TrimSpace(strings.TrimPrefix(text, "/teach"))
	if strings.HasPrefix(request, "@") {
		// Strip the "@botname" mention form.
		if i := strings.Index(request, " "); i != -1 {
			request = strings.TrimSpace(request[i+1:])
		} else {
			request = ""
		}
	}
	a.teaching.Start(request)

	a.logger.Info("Teaching session started",
		logger.Field{Key: "request", Value: request})

	a.sendText(ctx, messages.TeachingStarted)
}

// handleTeachingTurn advances the teaching conversation. "done"
// finalizes, "cancel" aborts, anything else is teaching material.
func (a *App) handleTeachingTurn(ctx context.Context, text string) {
	switch strings.ToLower(text) {
	case "done":
		a.finishTeaching(ctx)
	case "cancel":
		a.teaching.Cancel()
		a.sendText(ctx, messages.TeachingCancelled)
	default:
		a.teaching.Add("user", text)
		a.sendText(ctx, messages.TeachingAck)
	}
}

func (a *App) finishTeaching(ctx context.Context) {
	if a.teaching.Turns() == 0 {
		a.sendText(ctx, messages.TeachingNothing)
		return
	}

	sink := a.sink()
	stop := sink.IndicateActivity(ctx)
	defer stop()

	request, exchange := a.teaching.Finish()

	skill, err := a.generator.Generate(ctx, request, exchange)
	if err != nil {
		a.logger.Error("Skill generation failed", err)
		a.sendText(ctx, messages.GenerationFailed)
		return
	}
	if skill == nil {
		a.sendText(ctx, messages.GenerationFailed)
		return
	}

	if result := a.executor.Test(ctx, skill); !result.Success {
		a.logger.Warn("Generated skill failed its test run",
			logger.Field{Key: "skill", Value: skill.Name},
			logger.Field{Key: "error", Value: result.Error})
		a.sendText(ctx, messages.FormatSkillTestFailed(result.Error))
		return
	}

	if err := a.store.Save(skill); err != nil {
		a.logger.Error("Failed to save skill", err)
		a.sendText(ctx, messages.GenericError)
		return
	}

	a.registry.ClearCache()
	a.metrics.SetSkillsLoaded(a.store.Count())

	if a.index != nil {
		if err := a.index.Index(ctx, skill.Name, skill.IndexText()); err != nil {
			a.logger.Warn("Failed to index new skill",
				logger.Field{Key: "skill", Value: skill.Name},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}

	a.sendText(ctx, messages.FormatSkillLearned(skill.Name, skill.Title))
}

// handleCallback routes inline keyboard presses.
func (a *App) handleCallback(ctx context.Context, cb channels.Callback) {
	reply := a.commands.HandleCallback(ctx, cb.Data)

	sink := a.sink()
	if reply.Edit && cb.MessageID != 0 {
		ref := channels.MessageRef{ChatID: a.config.Telegram.AdminID, MessageID: cb.MessageID}
		var err error
		if len(reply.Keyboard) > 0 {
			err = sink.EditWithKeyboard(ctx, ref, reply.Text, reply.Keyboard)
		} else {
			err = sink.Edit(ctx, ref, reply.Text)
		}
		if err != nil {
			a.logger.Error("Failed to edit message", err)
		}
		return
	}

	a.sendReply(ctx, commands.Reply{Text: reply.Text, Keyboard: reply.Keyboard})
}

// runScheduledJob is the scheduler callback: the job's task goes
// through the agent loop and the outcome lands in the admin chat.
func (a *App) runScheduledJob(job scheduler.Job) error {
	a.metrics.RecordSchedulerFire()

	ctx := a.ctx
	answer := a.schedLoop.Run(ctx, "[SCHEDULED TASK] "+job.Task, nil)
	if answer == "" || answer == messages.GenericError {
		a.sendText(ctx, messages.FormatScheduledTaskFailed(job.Description))
		return nil
	}

	a.sendText(ctx, messages.FormatScheduledTaskResult(job.Description, answer))
	return nil
}

// notifyProposal delivers a schedule confirmation prompt with inline
// confirm and cancel buttons.
func (a *App) notifyProposal(ctx context.Context, pending scheduler.PendingJob) {
	sink := a.sink()
	if sink == nil {
		return
	}

	text := messages.FormatScheduleProposal(pending.Description, pending.Cron, pending.ID)
	keyboard := [][]channels.Button{{
		{Text: "Confirm", Data: "confirm_job:" + pending.ID},
		{Text: "Cancel", Data: "cancel_job:" + pending.ID},
	}}

	if _, err := sink.SendWithKeyboard(ctx, text, keyboard); err != nil {
		a.logger.Error("Failed to send schedule proposal", err)
	}
}

func (a *App) sendReply(ctx context.Context, reply commands.Reply) {
	sink := a.sink()

	var err error
	if len(reply.Keyboard) > 0 {
		_, err = sink.SendWithKeyboard(ctx, reply.Text, reply.Keyboard)
	} else {
		_, err = sink.Send(ctx, reply.Text)
	}
	if err != nil {
		a.logger.Error("Failed to send reply", err)
	}
}

func (a *App) sendText(ctx context.Context, text string) {
	if sink := a.sink(); sink != nil {
		if _, err := sink.Send(ctx, text); err != nil {
			a.logger.Error("Failed to send message", err)
		}
	}
}
