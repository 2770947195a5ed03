package actions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/scrum/internal/bus"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

func postIntentFor(t *testing.T, svc *Service, taskID, agentID string, files []string) {
	t.Helper()
	_, err := svc.PostIntent(context.Background(), PostIntentInput{
		TaskID:             taskID,
		AgentID:            agentID,
		Files:              files,
		AcceptanceCriteria: "change is covered by tests",
	})
	require.NoError(t, err)
}

func TestCreateClaimRequiresIntent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	task := mustCreateTask(t, svc, "refactor config")

	postIntentFor(t, svc, task.ID, "agent-1", []string{"internal/app/settings.go"})

	_, err := svc.CreateClaim(ctx, "agent-1", []string{"internal/app/settings.go", "main.go"}, 0)
	var noIntent *models.NoIntentError
	require.ErrorAs(t, err, &noIntent)
	assert.Equal(t, []string{"main.go"}, noIntent.MissingFiles)
	assert.Equal(t, models.CodeNoIntent, noIntent.ErrorCode())
}

func TestCreateClaimConflictWritesNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	task := mustCreateTask(t, svc, "shared file work")
	sub := svc.Bus.Subscribe(16)
	defer sub.Close()

	postIntentFor(t, svc, task.ID, "agent-1", []string{"shared.go"})
	postIntentFor(t, svc, task.ID, "agent-2", []string{"shared.go"})

	_, err := svc.CreateClaim(ctx, "agent-1", []string{"shared.go"}, 0)
	require.NoError(t, err)

	_, err = svc.CreateClaim(ctx, "agent-2", []string{"shared.go"}, 0)
	var conflict *models.ClaimConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"agent-1"}, conflict.ConflictsWith)

	// No second claim row appeared.
	claims, err := svc.ListActiveClaims(ctx)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "agent-1", claims[0].AgentID)

	types := eventTypes(drainEvents(sub))
	assert.Contains(t, types, bus.EventClaimConflict)
}

func TestCreateClaimAfterExpiry(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	task := mustCreateTask(t, svc, "slow handover")

	postIntentFor(t, svc, task.ID, "agent-1", []string{"handler.go"})
	postIntentFor(t, svc, task.ID, "agent-2", []string{"handler.go"})

	_, err := svc.CreateClaim(ctx, "agent-1", []string{"handler.go"}, 60)
	require.NoError(t, err)

	_, err = svc.CreateClaim(ctx, "agent-2", []string{"handler.go"}, 0)
	var conflict *models.ClaimConflictError
	require.ErrorAs(t, err, &conflict)

	clock.Advance(61 * time.Second)

	claim, err := svc.CreateClaim(ctx, "agent-2", []string{"handler.go"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "agent-2", claim.AgentID)
}

func TestCreateClaimClampsTTLIntoConfiguredRange(t *testing.T) {
	svc, clock := newTestService(t)
	svc.Settings.MinClaimTTLSeconds = 60
	svc.Settings.MaxClaimTTLSeconds = 120
	ctx := context.Background()
	task := mustCreateTask(t, svc, "tight leash")

	postIntentFor(t, svc, task.ID, "agent-1", []string{"clamped.go"})

	// Below the configured floor: clamped up to 60s.
	claim, err := svc.CreateClaim(ctx, "agent-1", []string{"clamped.go"}, 5)
	require.NoError(t, err)
	assert.Equal(t, clock.NowMs()+60_000, claim.ExpiresAt)

	// Above the configured ceiling: clamped down to 120s.
	claim, err = svc.CreateClaim(ctx, "agent-1", []string{"clamped.go"}, 999)
	require.NoError(t, err)
	assert.Equal(t, clock.NowMs()+120_000, claim.ExpiresAt)
}

func TestReclaimRefreshesLease(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	task := mustCreateTask(t, svc, "second sitting")

	postIntentFor(t, svc, task.ID, "agent-1", []string{"handler.go"})

	_, err := svc.CreateClaim(ctx, "agent-1", []string{"handler.go"}, 60)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)

	// Re-claiming a held file resets the whole lease, not just its expiry.
	_, err = svc.CreateClaim(ctx, "agent-1", []string{"handler.go"}, 60)
	require.NoError(t, err)

	held, err := svc.GetAgentClaims(ctx, "agent-1")
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, clock.NowMs(), held.CreatedAt)
	assert.Equal(t, clock.NowMs()+60_000, held.ExpiresAt)
}

func TestReleaseRequiresEvidence(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	task := mustCreateTask(t, svc, "quiet work")

	postIntentFor(t, svc, task.ID, "agent-1", []string{"a.go"})
	_, err := svc.CreateClaim(ctx, "agent-1", []string{"a.go"}, 0)
	require.NoError(t, err)

	_, err = svc.ReleaseClaims(ctx, "agent-1", nil)
	var noEvidence *models.NoEvidenceError
	require.ErrorAs(t, err, &noEvidence)

	// The lease is still held.
	held, err := svc.GetAgentClaims(ctx, "agent-1")
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, []string{"a.go"}, held.Files)
}

func TestReleaseBlockedByUndeclaredFiles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	task := mustCreateTask(t, svc, "scope creep")

	postIntentFor(t, svc, task.ID, "agent-1", []string{"a.go"})
	_, err := svc.CreateClaim(ctx, "agent-1", []string{"a.go"}, 0)
	require.NoError(t, err)

	_, err = svc.LogChange(ctx, store.ChangelogParams{
		TaskID: task.ID, AgentID: "agent-1", FilePath: "a.go",
		ChangeType: models.ChangeModify, Summary: "declared edit",
	})
	require.NoError(t, err)
	_, err = svc.LogChange(ctx, store.ChangelogParams{
		TaskID: task.ID, AgentID: "agent-1", FilePath: "b.go",
		ChangeType: models.ChangeModify, Summary: "undeclared edit",
	})
	require.NoError(t, err)

	_, err = svc.AttachEvidence(ctx, task.ID, "agent-1", "go test ./...", "ok")
	require.NoError(t, err)

	_, err = svc.ReleaseClaims(ctx, "agent-1", nil)
	var cerr *models.ComplianceError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, models.CodeComplianceFailed, cerr.Code)
	assert.Equal(t, []string{"b.go"}, cerr.UndeclaredFiles)
}

func TestReleaseBlockedByBoundaryViolation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	task := mustCreateTask(t, svc, "stay out of auth")

	_, err := svc.PostIntent(ctx, PostIntentInput{
		TaskID:             task.ID,
		AgentID:            "agent-1",
		Files:              []string{"a.go", "internal/auth/token.go"},
		Boundaries:         "do not touch internal/auth/",
		AcceptanceCriteria: "auth module stays untouched",
	})
	require.NoError(t, err)

	_, err = svc.CreateClaim(ctx, "agent-1", []string{"a.go"}, 0)
	require.NoError(t, err)

	_, err = svc.LogChange(ctx, store.ChangelogParams{
		TaskID: task.ID, AgentID: "agent-1", FilePath: "internal/auth/token.go",
		ChangeType: models.ChangeModify, Summary: "oops",
	})
	require.NoError(t, err)
	_, err = svc.AttachEvidence(ctx, task.ID, "agent-1", "go test ./...", "ok")
	require.NoError(t, err)

	_, err = svc.ReleaseClaims(ctx, "agent-1", nil)
	var cerr *models.ComplianceError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, models.CodeBoundaryViolation, cerr.Code)
	assert.Equal(t, []string{"internal/auth/token.go"}, cerr.Violations)
}

func TestExtendClaimsClampsIntoRange(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	task := mustCreateTask(t, svc, "long compile")

	postIntentFor(t, svc, task.ID, "agent-1", []string{"big.go"})
	_, err := svc.CreateClaim(ctx, "agent-1", []string{"big.go"}, 0)
	require.NoError(t, err)

	// Below the floor: clamped up to 30s.
	ext, err := svc.ExtendClaims(ctx, "agent-1", 1, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), ext.Extended)
	assert.Equal(t, clock.NowMs()+int64(MinExtendSeconds)*1000, ext.ExpiresAt)

	// Above the ceiling: clamped down to 3600s.
	ext, err = svc.ExtendClaims(ctx, "agent-1", 99999, nil)
	require.NoError(t, err)
	assert.Equal(t, clock.NowMs()+int64(MaxExtendSeconds)*1000, ext.ExpiresAt)
}

func TestExtendClaimsNothingHeld(t *testing.T) {
	svc, _ := newTestService(t)

	ext, err := svc.ExtendClaims(context.Background(), "agent-9", 60, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ext.Extended)
}

func TestCheckOverlap(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	task := mustCreateTask(t, svc, "overlap check")

	postIntentFor(t, svc, task.ID, "agent-1", []string{"x.go"})
	_, err := svc.CreateClaim(ctx, "agent-1", []string{"x.go"}, 0)
	require.NoError(t, err)

	overlaps, err := svc.CheckOverlap(ctx, []string{"x.go", "y.go"})
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
	assert.Equal(t, "x.go", overlaps[0].FilePath)
	assert.Equal(t, "agent-1", overlaps[0].AgentID)
}
