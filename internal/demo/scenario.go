package demo

import (
	"context"
	"fmt"

	"github.com/dotcommander/scrum/internal/actions"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// Run plays the scripted scenario: alice and bob coordinate work on a shared
// file, walking every gate in the protocol. Returns the first unexpected
// error; expected rejections (the conflict, the premature release) are part
// of the script and narrated, not returned.
func (r *Runner) Run(ctx context.Context) error {
	r.act(1, "Two agents arrive")
	alice, err := r.svc.RegisterOrHeartbeat(ctx, "alice", []string{"go"}, nil)
	r.step("alice registers", alice, err)
	if err != nil {
		return err
	}
	bob, err := r.svc.RegisterOrHeartbeat(ctx, "bob", []string{"go"}, nil)
	r.step("bob registers", bob, err)
	if err != nil {
		return err
	}

	r.act(2, "A task appears on the board")
	task, err := r.svc.CreateTask(ctx, actions.CreateTaskInput{
		Title:    "harden the config loader",
		Priority: models.PriorityHigh,
		AgentID:  "alice",
	})
	r.step("task created", map[string]string{"id": task.ID, "title": task.Title}, err)
	if err != nil {
		return err
	}

	r.act(3, "Intent before claim")
	_, err = r.svc.CreateClaim(ctx, "alice", []string{"internal/app/settings.go"}, 0)
	r.step("alice claims without intent", nil, err)
	if err == nil {
		return fmt.Errorf("claim without intent unexpectedly succeeded")
	}

	intent, err := r.svc.PostIntent(ctx, actions.PostIntentInput{
		TaskID:             task.ID,
		AgentID:            "alice",
		Files:              []string{"internal/app/settings.go"},
		Boundaries:         "do not touch internal/store/",
		AcceptanceCriteria: "loader rejects malformed YAML with a clear error",
	})
	r.step("alice posts intent", intent, err)
	if err != nil {
		return err
	}

	claim, err := r.svc.CreateClaim(ctx, "alice", []string{"internal/app/settings.go"}, 0)
	r.step("alice claims the file", claim, err)
	if err != nil {
		return err
	}

	r.act(4, "Bob collides")
	_, err = r.svc.PostIntent(ctx, actions.PostIntentInput{
		TaskID:             task.ID,
		AgentID:            "bob",
		Files:              []string{"internal/app/settings.go"},
		AcceptanceCriteria: "same file, competing plan",
	})
	if err != nil {
		return err
	}
	_, err = r.svc.CreateClaim(ctx, "bob", []string{"internal/app/settings.go"}, 0)
	r.step("bob claims the same file", nil, err)
	if err == nil {
		return fmt.Errorf("conflicting claim unexpectedly succeeded")
	}

	overlaps, err := r.svc.CheckOverlap(ctx, []string{"internal/app/settings.go"})
	r.step("bob checks who holds it", overlaps, err)
	if err != nil {
		return err
	}

	r.act(5, "Work, evidence, release")
	_, err = r.svc.LogChange(ctx, store.ChangelogParams{
		TaskID:     task.ID,
		AgentID:    "alice",
		FilePath:   "internal/app/settings.go",
		ChangeType: models.ChangeModify,
		Summary:    "validate YAML before applying defaults",
	})
	r.step("alice logs her change", nil, err)
	if err != nil {
		return err
	}

	_, err = r.svc.ReleaseClaims(ctx, "alice", nil)
	r.step("alice releases without evidence", nil, err)
	if err == nil {
		return fmt.Errorf("release without evidence unexpectedly succeeded")
	}

	evidence, err := r.svc.AttachEvidence(ctx, task.ID, "alice", "go test ./internal/app/...", "ok\t0.41s")
	r.step("alice attaches evidence", map[string]string{"id": evidence.ID}, err)
	if err != nil {
		return err
	}

	released, err := r.svc.ReleaseClaims(ctx, "alice", nil)
	r.step("alice releases her claim", map[string]int64{"released": released}, err)
	if err != nil {
		return err
	}

	r.act(6, "The board settles")
	inProgress := models.TaskStatusInProgress
	if _, err := r.svc.UpdateTask(ctx, task.ID, "alice", store.TaskPatch{Status: &inProgress}, actions.DefaultUpdateOptions()); err != nil {
		return err
	}

	// Bob declared intent but never produced evidence, so completion is
	// blocked until he accounts for his declaration.
	done := models.TaskStatusDone
	_, err = r.svc.UpdateTask(ctx, task.ID, "alice", store.TaskPatch{Status: &done}, actions.DefaultUpdateOptions())
	r.step("alice tries to finish", nil, err)
	if err == nil {
		return fmt.Errorf("completion with an unaccounted intent unexpectedly succeeded")
	}

	if _, err := r.svc.AttachEvidence(ctx, task.ID, "bob", "go vet ./...", "clean"); err != nil {
		return err
	}
	_, err = r.svc.UpdateTask(ctx, task.ID, "alice", store.TaskPatch{Status: &done}, actions.DefaultUpdateOptions())
	r.step("task moves to done", map[string]any{"status": done}, err)
	if err != nil {
		return err
	}

	reports, err := r.svc.CheckCompliance(ctx, task.ID, "")
	if err != nil {
		return err
	}
	for _, report := range reports {
		r.step(fmt.Sprintf("compliance for %s", report.AgentID), map[string]any{
			"score":     report.Score,
			"compliant": report.Compliant,
		}, nil)
	}

	fmt.Fprintf(r.out, "\n%s\n", r.paint(colorBold, "Demo complete."))
	return nil
}
