package actions

import (
	"context"

	"github.com/dotcommander/scrum/internal/compliance"
	"github.com/dotcommander/scrum/internal/store"
)

// CheckCompliance derives reports for a task. With agentID set, one report;
// otherwise one per agent that has touched the task. Pure read.
func (s *Service) CheckCompliance(_ context.Context, taskID, agentID string) ([]*compliance.Report, error) {
	if _, err := store.GetTask(s.DB, taskID); err != nil {
		return nil, err
	}

	now := s.now()
	if agentID != "" {
		report, err := compliance.CheckTask(s.DB, taskID, agentID, now)
		if err != nil {
			return nil, err
		}
		return []*compliance.Report{report}, nil
	}

	agents, err := compliance.TouchingAgents(s.DB, taskID)
	if err != nil {
		return nil, err
	}
	reports := make([]*compliance.Report, 0, len(agents))
	for _, agent := range agents {
		report, err := compliance.CheckTask(s.DB, taskID, agent, now)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
