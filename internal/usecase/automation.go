package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type AutomationRule string

const (
	RuleAfterDemo    AutomationRule = "after_demo"
	RuleProposalSent AutomationRule = "proposal_follow_up"
)

type followUp struct {
	afterDays   int
	description string
}

var ruleSchedules = map[AutomationRule][]followUp{
	RuleAfterDemo: {
		{1, "Send demo recap and recording"},
		{3, "Check in on demo questions and next steps"},
		{7, "Follow up on decision timeline after demo"},
	},
	RuleProposalSent: {
		{3, "Follow up on the proposal"},
	},
}

// stageRules maps the stage a deal enters to the follow-ups it triggers.
var stageRules = map[entity.Stage]AutomationRule{
	entity.StageDemoDone:     RuleAfterDemo,
	entity.StageProposalSent: RuleProposalSent,
}

type FollowUpAutomation struct {
	Leads  entity.LeadRepositoryInterface
	Tasks  entity.TaskRepositoryInterface
	Logger *zap.Logger
	Now    func() time.Time
	// OnScheduled, if set, is told how many tasks each rule created.
	OnScheduled func(rule AutomationRule, n int)
}

func NewFollowUpAutomation(leads entity.LeadRepositoryInterface, tasks entity.TaskRepositoryInterface, logger *zap.Logger) *FollowUpAutomation {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowUpAutomation{
		Leads:  leads,
		Tasks:  tasks,
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// ScheduleAfterDemo creates the three after-demo follow-ups (+1, +3, +7 days).
func (a *FollowUpAutomation) ScheduleAfterDemo(ctx context.Context, leadID uuid.UUID) ([]*entity.Task, error) {
	if _, err := a.Leads.FindByID(ctx, leadID); err != nil {
		return nil, err
	}
	return a.schedule(ctx, RuleAfterDemo, leadID)
}

// HandleStageChanged applies the rule for the stage the deal entered, if any.
func (a *FollowUpAutomation) HandleStageChanged(ctx context.Context, event DealStageChanged) ([]*entity.Task, error) {
	rule, ok := stageRules[event.To]
	if !ok || event.From == event.To {
		return nil, nil
	}
	a.Logger.Info("stage automation triggered",
		zap.String("deal_id", event.DealID.String()),
		zap.String("from", string(event.From)),
		zap.String("to", string(event.To)),
		zap.String("rule", string(rule)),
	)
	return a.schedule(ctx, rule, event.LeadID)
}

func (a *FollowUpAutomation) schedule(ctx context.Context, rule AutomationRule, leadID uuid.UUID) ([]*entity.Task, error) {
	now := a.Now()
	plan := ruleSchedules[rule]
	created := make([]*entity.Task, 0, len(plan))

	for _, f := range plan {
		due := now.AddDate(0, 0, f.afterDays)
		task, err := entity.NewTask(leadID, f.description, &due)
		if err != nil {
			return created, err
		}
		task.CreatedAt = now
		if err := a.Tasks.Create(ctx, task); err != nil {
			return created, fmt.Errorf("create %s follow-up: %w", rule, err)
		}
		created = append(created, task)
	}

	if a.OnScheduled != nil {
		a.OnScheduled(rule, len(created))
	}
	a.Logger.Info("follow-up tasks scheduled",
		zap.String("lead_id", leadID.String()),
		zap.String("rule", string(rule)),
		zap.Int("count", len(created)),
	)
	return created, nil
}
