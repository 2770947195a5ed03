package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/dotcommander/scrum/internal/models"
)

// Claim TTL bounds in seconds, used when no configured bounds are given.
const (
	MinClaimTTLSeconds = 5
	MaxClaimTTLSeconds = 3600
)

// ClampClaimTTL clamps a requested TTL into [minSeconds, maxSeconds].
// Non-positive bounds fall back to the package defaults.
func ClampClaimTTL(ttlSeconds, minSeconds, maxSeconds int) int {
	if minSeconds <= 0 {
		minSeconds = MinClaimTTLSeconds
	}
	if maxSeconds <= 0 {
		maxSeconds = MaxClaimTTLSeconds
	}
	if ttlSeconds < minSeconds {
		return minSeconds
	}
	if ttlSeconds > maxSeconds {
		return maxSeconds
	}
	return ttlSeconds
}

// PruneExpiredClaimsTx deletes all rows with expiresAt <= now. Pruning is a
// best-effort garbage collector; conflict checks never rely on it (they
// always filter expires_at > now).
func PruneExpiredClaimsTx(tx *sql.Tx, now int64) (int64, error) {
	res, err := tx.Exec(`DELETE FROM claims WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired claims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check pruned rows: %w", err)
	}
	return n, nil
}

// CreateClaimTx runs the claim protocol for one agent and file set:
// prune, detect conflicts against live rows, then insert/replace every row
// atomically. On conflict, no rows are written and a ClaimConflictError
// names the holding agents. Re-claiming a file the agent already holds
// resets both its expiry and its creation time.
//
// ttlSeconds is taken as given; the facade clamps it into the configured
// range first. The intent pre-guard is also the facade's job.
func CreateClaimTx(tx *sql.Tx, agentID string, files []string, ttlSeconds int, now int64) (*models.Claim, error) {
	if _, err := PruneExpiredClaimsTx(tx, now); err != nil {
		return nil, err
	}

	holders, err := conflictingAgentsTx(tx, agentID, files, now)
	if err != nil {
		return nil, err
	}
	if len(holders) > 0 {
		return nil, &models.ClaimConflictError{
			AgentID:       agentID,
			Files:         files,
			ConflictsWith: holders,
		}
	}

	expiresAt := now + int64(ttlSeconds)*1000
	for _, f := range files {
		_, err := tx.Exec(`
			INSERT INTO claims (agent_id, file_path, expires_at, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(agent_id, file_path) DO UPDATE SET
				expires_at = excluded.expires_at,
				created_at = excluded.created_at
		`, agentID, f, expiresAt, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert claim row: %w", err)
		}
	}

	return &models.Claim{
		AgentID:   agentID,
		Files:     files,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// conflictingAgentsTx returns the distinct other agents holding a live lease
// on any of files at time now, sorted for deterministic output.
func conflictingAgentsTx(tx *sql.Tx, agentID string, files []string, now int64) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(files))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(files)+2)
	args = append(args, agentID, now)
	for _, f := range files {
		args = append(args, f)
	}

	holders, err := queryStringColumn(tx, `
		SELECT DISTINCT agent_id FROM claims
		WHERE agent_id != ? AND expires_at > ? AND file_path IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to check claim conflicts: %w", err)
	}
	sort.Strings(holders)
	return holders, nil
}

// ReleaseClaimsTx deletes the agent's claim rows. With files nil, all of the
// agent's rows are released. Returns the number of rows released; releasing
// already-released claims is a no-op returning 0.
//
// The evidence and compliance pre-guards are the facade's job.
func ReleaseClaimsTx(tx *sql.Tx, agentID string, files []string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if len(files) == 0 {
		res, err = tx.Exec(`DELETE FROM claims WHERE agent_id = ?`, agentID)
	} else {
		placeholders := strings.Repeat("?,", len(files))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, 0, len(files)+1)
		args = append(args, agentID)
		for _, f := range files {
			args = append(args, f)
		}
		res, err = tx.Exec(`DELETE FROM claims WHERE agent_id = ? AND file_path IN (`+placeholders+`)`, args...)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to release claims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check released rows: %w", err)
	}
	return n, nil
}

// ExtendClaimsTx sets expiresAt = now + additionalSeconds*1000 on the
// selected live rows atomically. Returns the count extended and the new
// expiry. Extending claims that do not exist returns 0.
func ExtendClaimsTx(tx *sql.Tx, agentID string, additionalSeconds int, files []string, now int64) (int64, int64, error) {
	newExpiry := now + int64(additionalSeconds)*1000

	var (
		res sql.Result
		err error
	)
	if len(files) == 0 {
		res, err = tx.Exec(`
			UPDATE claims SET expires_at = ? WHERE agent_id = ? AND expires_at > ?
		`, newExpiry, agentID, now)
	} else {
		placeholders := strings.Repeat("?,", len(files))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, 0, len(files)+3)
		args = append(args, newExpiry, agentID, now)
		for _, f := range files {
			args = append(args, f)
		}
		res, err = tx.Exec(`
			UPDATE claims SET expires_at = ? WHERE agent_id = ? AND expires_at > ? AND file_path IN (`+placeholders+`)
		`, args...)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to extend claims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to check extended rows: %w", err)
	}
	return n, newExpiry, nil
}

// ListActiveClaimsTx prunes expired rows, then aggregates live rows per
// agent: files as the sorted list, expiresAt the max, createdAt the min.
func ListActiveClaimsTx(tx *sql.Tx, now int64) ([]*models.Claim, error) {
	if _, err := PruneExpiredClaimsTx(tx, now); err != nil {
		return nil, err
	}

	rows, err := tx.Query(`
		SELECT agent_id, file_path, expires_at, created_at
		FROM claims WHERE expires_at > ? ORDER BY agent_id, file_path
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query active claims: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byAgent := make(map[string]*models.Claim)
	var order []string
	for rows.Next() {
		var agentID, filePath string
		var expiresAt, createdAt int64
		if scanErr := rows.Scan(&agentID, &filePath, &expiresAt, &createdAt); scanErr != nil {
			return nil, scanErr
		}
		c, ok := byAgent[agentID]
		if !ok {
			c = &models.Claim{AgentID: agentID, ExpiresAt: expiresAt, CreatedAt: createdAt}
			byAgent[agentID] = c
			order = append(order, agentID)
		}
		c.Files = append(c.Files, filePath)
		if expiresAt > c.ExpiresAt {
			c.ExpiresAt = expiresAt
		}
		if createdAt < c.CreatedAt {
			c.CreatedAt = createdAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	claims := make([]*models.Claim, 0, len(order))
	for _, agentID := range order {
		claims = append(claims, byAgent[agentID])
	}
	return claims, nil
}

// GetAgentClaims aggregates one agent's live rows into a single claim, or
// nil when the agent holds nothing.
func GetAgentClaims(q Querier, agentID string, now int64) (*models.Claim, error) {
	rows, err := q.Query(`
		SELECT file_path, expires_at, created_at
		FROM claims WHERE agent_id = ? AND expires_at > ? ORDER BY file_path
	`, agentID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent claims: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var claim *models.Claim
	for rows.Next() {
		var filePath string
		var expiresAt, createdAt int64
		if scanErr := rows.Scan(&filePath, &expiresAt, &createdAt); scanErr != nil {
			return nil, scanErr
		}
		if claim == nil {
			claim = &models.Claim{AgentID: agentID, ExpiresAt: expiresAt, CreatedAt: createdAt}
		}
		claim.Files = append(claim.Files, filePath)
		if expiresAt > claim.ExpiresAt {
			claim.ExpiresAt = expiresAt
		}
		if createdAt < claim.CreatedAt {
			claim.CreatedAt = createdAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return claim, nil
}

// FileOverlap reports which of the requested files are actively claimed.
type FileOverlap struct {
	FilePath  string `json:"filePath"`
	AgentID   string `json:"agentId"`
	ExpiresAt int64  `json:"expiresAt"`
}

// CheckOverlap returns the live claim holder for each requested file that is
// currently leased. Read-only; no pruning.
func CheckOverlap(q Querier, files []string, now int64) ([]*FileOverlap, error) {
	if len(files) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(files))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(files)+1)
	args = append(args, now)
	for _, f := range files {
		args = append(args, f)
	}

	rows, err := q.Query(`
		SELECT file_path, agent_id, expires_at FROM claims
		WHERE expires_at > ? AND file_path IN (`+placeholders+`) ORDER BY file_path
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to check overlap: %w", err)
	}
	defer func() { _ = rows.Close() }()

	overlaps := make([]*FileOverlap, 0)
	for rows.Next() {
		var o FileOverlap
		if scanErr := rows.Scan(&o.FilePath, &o.AgentID, &o.ExpiresAt); scanErr != nil {
			return nil, scanErr
		}
		overlaps = append(overlaps, &o)
	}
	return overlaps, rows.Err()
}
