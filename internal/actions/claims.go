package actions

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dotcommander/scrum/internal/bus"
	"github.com/dotcommander/scrum/internal/compliance"
	"github.com/dotcommander/scrum/internal/models"
	"github.com/dotcommander/scrum/internal/store"
)

// Extend bounds in seconds.
const (
	MinExtendSeconds = 30
	MaxExtendSeconds = 3600
)

// CreateClaim runs the claim protocol with its checks in short-circuit order:
// input validation, intent guard, conflict detection, write. Zero TTL means
// the configured default; any TTL is clamped into the configured range. On
// conflict a claim.conflict event is emitted and nothing is written.
func (s *Service) CreateClaim(ctx context.Context, agentID string, files []string, ttlSeconds int) (*models.Claim, error) {
	if agentID == "" {
		return nil, &models.ValidationError{Field: "agentId", Reason: "must not be empty"}
	}
	normalized, err := normalizeFileList(files)
	if err != nil {
		return nil, err
	}
	if ttlSeconds <= 0 {
		ttlSeconds = s.Settings.DefaultClaimTTLSeconds
	}
	ttlSeconds = store.ClampClaimTTL(ttlSeconds, s.Settings.MinClaimTTLSeconds, s.Settings.MaxClaimTTLSeconds)

	now := s.now()
	var claim *models.Claim
	err = s.transact(ctx, "createClaim", func(tx *sql.Tx) error {
		coverage, txErr := store.HasIntentForFiles(tx, agentID, normalized)
		if txErr != nil {
			return txErr
		}
		if !coverage.HasIntent {
			return &models.NoIntentError{AgentID: agentID, MissingFiles: coverage.MissingFiles}
		}

		claim, txErr = store.CreateClaimTx(tx, agentID, normalized, ttlSeconds, now)
		return txErr
	})
	if err != nil {
		var conflict *models.ClaimConflictError
		if errors.As(err, &conflict) {
			s.publish(bus.EventClaimConflict, now, conflict.Context())
		}
		return nil, err
	}

	s.publish(bus.EventClaimCreated, now, claim)
	return claim, nil
}

// ReleaseClaims releases the agent's leases (all of them when files is nil)
// after the release gates: the agent must have evidence somewhere, and every
// task it has evidence for must pass the files-match and boundary checks.
func (s *Service) ReleaseClaims(ctx context.Context, agentID string, files []string) (int64, error) {
	if agentID == "" {
		return 0, &models.ValidationError{Field: "agentId", Reason: "must not be empty"}
	}

	now := s.now()
	var released int64
	err := s.transact(ctx, "releaseClaims", func(tx *sql.Tx) error {
		evidence, txErr := store.HasEvidenceForTask(tx, agentID)
		if txErr != nil {
			return txErr
		}
		if !evidence.HasEvidence {
			return &models.NoEvidenceError{AgentID: agentID}
		}

		for _, taskID := range evidence.TaskIDs {
			report, txErr := compliance.CheckTask(tx, taskID, agentID, now)
			if txErr != nil {
				return txErr
			}
			if !report.FilesMatch.Passed {
				return &models.ComplianceError{
					Code:            models.CodeComplianceFailed,
					TaskID:          taskID,
					AgentID:         agentID,
					UndeclaredFiles: report.FilesMatch.UndeclaredFiles,
				}
			}
			if !report.BoundariesRespected.Passed {
				return &models.ComplianceError{
					Code:       models.CodeBoundaryViolation,
					TaskID:     taskID,
					AgentID:    agentID,
					Violations: report.BoundariesRespected.Violations,
				}
			}
		}

		released, txErr = store.ReleaseClaimsTx(tx, agentID, files)
		return txErr
	})
	if err != nil {
		return 0, err
	}

	s.publish(bus.EventClaimReleased, now, map[string]any{
		"agentId": agentID, "files": files, "released": released,
	})
	return released, nil
}

// ClaimExtension reports an extend result.
type ClaimExtension struct {
	Extended  int64 `json:"extended"`
	ExpiresAt int64 `json:"expiresAt"`
}

// ExtendClaims pushes expiry to now + additionalSeconds on the agent's live
// rows. additionalSeconds is clamped into [30, 3600]; zero means the
// configured default.
func (s *Service) ExtendClaims(ctx context.Context, agentID string, additionalSeconds int, files []string) (*ClaimExtension, error) {
	if agentID == "" {
		return nil, &models.ValidationError{Field: "agentId", Reason: "must not be empty"}
	}
	if additionalSeconds <= 0 {
		additionalSeconds = s.Settings.ClaimExtendDefaultSeconds
	}
	if additionalSeconds < MinExtendSeconds {
		additionalSeconds = MinExtendSeconds
	}
	if additionalSeconds > MaxExtendSeconds {
		additionalSeconds = MaxExtendSeconds
	}

	now := s.now()
	result := &ClaimExtension{}
	err := s.transact(ctx, "extendClaims", func(tx *sql.Tx) error {
		var txErr error
		result.Extended, result.ExpiresAt, txErr = store.ExtendClaimsTx(tx, agentID, additionalSeconds, files, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	if result.Extended > 0 {
		s.publish(bus.EventClaimExtended, now, map[string]any{
			"agentId": agentID, "extended": result.Extended, "expiresAt": result.ExpiresAt,
		})
	}
	return result, nil
}

// ListActiveClaims prunes expired rows and returns live claims grouped per
// agent.
func (s *Service) ListActiveClaims(ctx context.Context) ([]*models.Claim, error) {
	now := s.now()
	var claims []*models.Claim
	err := s.transact(ctx, "listActiveClaims", func(tx *sql.Tx) error {
		var txErr error
		claims, txErr = store.ListActiveClaimsTx(tx, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// GetAgentClaims returns one agent's live claim aggregate, or nil.
func (s *Service) GetAgentClaims(_ context.Context, agentID string) (*models.Claim, error) {
	return store.GetAgentClaims(s.DB, agentID, s.now())
}

// CheckOverlap reports which of the requested files are actively leased,
// without writing anything.
func (s *Service) CheckOverlap(_ context.Context, files []string) ([]*store.FileOverlap, error) {
	normalized, err := normalizeFileList(files)
	if err != nil {
		return nil, err
	}
	return store.CheckOverlap(s.DB, normalized, s.now())
}
