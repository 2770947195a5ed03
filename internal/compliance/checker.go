package compliance

import (
	"sort"

	"github.com/dotcommander/scrum/internal/store"
)

// Score weights per check. A report is compliant at or above ScoreThreshold.
const (
	ScoreIntent         = 20
	ScoreEvidence       = 20
	ScoreFilesMatch     = 30
	ScoreBoundaries     = 20
	ScoreClaimsReleased = 10
	ScoreThreshold      = 70
)

// Check is a single pass/fail verdict within a report.
type Check struct {
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// FilesMatchCheck compares modified files against the declared intent set.
type FilesMatchCheck struct {
	Passed          bool     `json:"passed"`
	UndeclaredFiles []string `json:"undeclaredFiles,omitempty"`
	UnmodifiedFiles []string `json:"unmodifiedFiles,omitempty"`
}

// BoundariesCheck reports boundary violations among modified files.
type BoundariesCheck struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
}

// Report is the full compliance derivation for one (task, agent) pair.
type Report struct {
	TaskID              string          `json:"taskId"`
	AgentID             string          `json:"agentId"`
	IntentPosted        Check           `json:"intentPosted"`
	EvidenceAttached    Check           `json:"evidenceAttached"`
	FilesMatch          FilesMatchCheck `json:"filesMatch"`
	BoundariesRespected BoundariesCheck `json:"boundariesRespected"`
	ClaimsReleased      Check           `json:"claimsReleased"`
	Score               int             `json:"score"`
	Compliant           bool            `json:"compliant"`
	CanComplete         bool            `json:"canComplete"`
}

// CheckTask derives the compliance report for (taskID, agentID) at time now.
// Pure read: every input comes from the querier, nothing is written.
//
// canComplete deliberately ignores claimsReleased: an agent may finish a
// task while still holding leases for follow-up work.
func CheckTask(q store.Querier, taskID, agentID string, now int64) (*Report, error) {
	r := &Report{TaskID: taskID, AgentID: agentID}

	intents, err := store.ListIntentsForAgentTask(q, taskID, agentID)
	if err != nil {
		return nil, err
	}
	r.IntentPosted.Passed = len(intents) > 0
	if !r.IntentPosted.Passed {
		r.IntentPosted.Detail = "no intent posted for this task"
	}

	evidenceCount, err := store.CountEvidenceForAgentTaskTx(q, taskID, agentID)
	if err != nil {
		return nil, err
	}
	r.EvidenceAttached.Passed = evidenceCount > 0
	if !r.EvidenceAttached.Passed {
		r.EvidenceAttached.Detail = "no evidence attached for this task"
	}

	declared := make(map[string]bool)
	var boundaryPatterns []string
	for _, in := range intents {
		for _, f := range in.Files {
			declared[f] = true
		}
		boundaryPatterns = append(boundaryPatterns, ParseBoundaries(in.Boundaries)...)
	}

	modified, err := store.ModifiedFilesForAgentTaskTx(q, taskID, agentID)
	if err != nil {
		return nil, err
	}

	modifiedSet := make(map[string]bool, len(modified))
	for _, f := range modified {
		modifiedSet[f] = true
		if !declared[f] {
			r.FilesMatch.UndeclaredFiles = append(r.FilesMatch.UndeclaredFiles, f)
		}
	}
	for f := range declared {
		if !modifiedSet[f] {
			r.FilesMatch.UnmodifiedFiles = append(r.FilesMatch.UnmodifiedFiles, f)
		}
	}
	sort.Strings(r.FilesMatch.UndeclaredFiles)
	sort.Strings(r.FilesMatch.UnmodifiedFiles)
	r.FilesMatch.Passed = len(r.FilesMatch.UndeclaredFiles) == 0

	r.BoundariesRespected.Violations = Violations(modified, boundaryPatterns)
	r.BoundariesRespected.Passed = len(r.BoundariesRespected.Violations) == 0

	claim, err := store.GetAgentClaims(q, agentID, now)
	if err != nil {
		return nil, err
	}
	r.ClaimsReleased.Passed = claim == nil
	if !r.ClaimsReleased.Passed {
		r.ClaimsReleased.Detail = "agent still holds active claims"
	}

	if r.IntentPosted.Passed {
		r.Score += ScoreIntent
	}
	if r.EvidenceAttached.Passed {
		r.Score += ScoreEvidence
	}
	if r.FilesMatch.Passed {
		r.Score += ScoreFilesMatch
	}
	if r.BoundariesRespected.Passed {
		r.Score += ScoreBoundaries
	}
	if r.ClaimsReleased.Passed {
		r.Score += ScoreClaimsReleased
	}
	r.Compliant = r.Score >= ScoreThreshold
	r.CanComplete = r.IntentPosted.Passed && r.EvidenceAttached.Passed &&
		r.FilesMatch.Passed && r.BoundariesRespected.Passed

	return r, nil
}

// TouchingAgents returns the distinct agents that have touched a task across
// intents, evidence, and changelog. The done-gate checks each of them.
func TouchingAgents(q store.Querier, taskID string) ([]string, error) {
	seen := make(map[string]bool)
	var agents []string
	for _, fn := range []func(store.Querier, string) ([]string, error){
		store.IntentAgentsForTask,
		store.EvidenceAgentsForTask,
		store.ChangelogAgentsForTask,
	} {
		ids, err := fn(q, taskID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				agents = append(agents, id)
			}
		}
	}
	sort.Strings(agents)
	return agents, nil
}
