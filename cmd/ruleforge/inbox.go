package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harmonizehq/ruleforge/docsource"
	"github.com/harmonizehq/ruleforge/events"
	"github.com/harmonizehq/ruleforge/extract"
)

// runInbox watches the inbox directory and feeds dropped guideline files
// into extraction intake. Runs until ctx is cancelled. Intake requires a
// selected project, so files dropped before a project is selected are
// skipped with a warning rather than queued.
func (a *App) runInbox(ctx context.Context) error {
	watcher, err := docsource.NewWatcher(a.cfg.Inbox, a.logger)
	if err != nil {
		return fmt.Errorf("create inbox watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start inbox watcher: %w", err)
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if err := a.intakeInboxFile(ctx, ev); err != nil {
				a.logger.Warn("Inbox intake failed", "file", ev.Path, "error", err)
			}
		}
	}
}

func (a *App) intakeInboxFile(ctx context.Context, ev docsource.WatchEvent) error {
	content, err := os.ReadFile(ev.AbsPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", ev.Path, err)
	}

	doc, err := docsource.DefaultRegistry.Parse(ev.Path, content)
	if err != nil {
		return fmt.Errorf("parse %s: %w", ev.Path, err)
	}

	issued, err := a.session.BeginIntake()
	if err != nil {
		return err
	}
	defer a.session.EndIntake()

	category := extract.DetectCategory(doc.Text)
	candidates, err := a.intake.Intake(ctx,
		extract.Source{Filename: ev.Path, FileContent: content},
		extract.Context{
			RuleType:  category,
			ProjectID: issued.ID,
		})
	if err != nil {
		return err
	}

	// The file landed against the project selected when intake began; a
	// project switch mid-extraction drops the batch.
	if current := a.session.Project(); current == nil || current.ID != issued.ID {
		return fmt.Errorf("project changed during extraction of %s", ev.Path)
	}

	a.session.Append(candidates...)
	a.publisher.Intake(events.IntakeEvent{
		ProjectID: issued.ID,
		Category:  category.String(),
		Count:     len(candidates),
	})
	a.logger.Info("Inbox file extracted",
		"file", ev.Path, "candidates", len(candidates), "category", category)
	return nil
}
