package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type TimelineEventKind string

const (
	EventDealCreated TimelineEventKind = "deal"
	EventInteraction TimelineEventKind = "interaction"
	EventTaskCreated TimelineEventKind = "task"
)

type TimelineEvent struct {
	Kind        TimelineEventKind   `json:"kind"`
	At          time.Time           `json:"at"`
	Title       string              `json:"title"`
	Deal        *entity.Deal        `json:"deal,omitempty"`
	Interaction *entity.Interaction `json:"interaction,omitempty"`
	Task        *entity.Task        `json:"task,omitempty"`
}

type LeadTimeline struct {
	Lead         *entity.Lead          `json:"lead"`
	Deals        []*entity.Deal        `json:"deals"`
	Interactions []*entity.Interaction `json:"interactions"`
	Tasks        []*entity.Task        `json:"tasks"`
	Events       []TimelineEvent       `json:"events"`
}

type LeadTimelineUseCase struct {
	Leads        entity.LeadRepositoryInterface
	Deals        entity.DealRepositoryInterface
	Interactions entity.InteractionRepositoryInterface
	Tasks        entity.TaskRepositoryInterface
}

func NewLeadTimelineUseCase(
	leads entity.LeadRepositoryInterface,
	deals entity.DealRepositoryInterface,
	interactions entity.InteractionRepositoryInterface,
	tasks entity.TaskRepositoryInterface,
) *LeadTimelineUseCase {
	return &LeadTimelineUseCase{Leads: leads, Deals: deals, Interactions: interactions, Tasks: tasks}
}

// Execute loads the lead, then its deals, interactions and tasks concurrently.
// The first failing query cancels the others.
func (uc *LeadTimelineUseCase) Execute(ctx context.Context, leadID uuid.UUID) (*LeadTimeline, error) {
	lead, err := uc.Leads.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}

	out := &LeadTimeline{Lead: lead}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deals, err := uc.Deals.List(ctx, entity.DealFilter{LeadID: &leadID})
		if err != nil {
			return fmt.Errorf("timeline deals: %w", err)
		}
		out.Deals = deals
		return nil
	})
	g.Go(func() error {
		interactions, err := uc.Interactions.List(ctx, entity.InteractionFilter{LeadID: &leadID})
		if err != nil {
			return fmt.Errorf("timeline interactions: %w", err)
		}
		out.Interactions = interactions
		return nil
	})
	g.Go(func() error {
		tasks, err := uc.Tasks.List(ctx, entity.TaskFilter{LeadID: &leadID})
		if err != nil {
			return fmt.Errorf("timeline tasks: %w", err)
		}
		out.Tasks = tasks
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Events = mergeEvents(out.Deals, out.Interactions, out.Tasks)
	return out, nil
}

// mergeEvents flattens the related rows into one list, newest first.
func mergeEvents(deals []*entity.Deal, interactions []*entity.Interaction, tasks []*entity.Task) []TimelineEvent {
	events := make([]TimelineEvent, 0, len(deals)+len(interactions)+len(tasks))
	for _, d := range deals {
		events = append(events, TimelineEvent{
			Kind:  EventDealCreated,
			At:    d.CreatedAt,
			Title: fmt.Sprintf("Deal in %s", d.Stage),
			Deal:  d,
		})
	}
	for _, i := range interactions {
		title := string(i.Type)
		if i.Summary != nil && *i.Summary != "" {
			title = fmt.Sprintf("%s: %s", i.Type, truncate(*i.Summary, 80))
		}
		events = append(events, TimelineEvent{
			Kind:        EventInteraction,
			At:          i.CreatedAt,
			Title:       title,
			Interaction: i,
		})
	}
	for _, t := range tasks {
		events = append(events, TimelineEvent{
			Kind:  EventTaskCreated,
			At:    t.CreatedAt,
			Title: "Task: " + truncate(t.Description, 80),
			Task:  t,
		})
	}

	sort.SliceStable(events, func(a, b int) bool {
		return events[a].At.After(events[b].At)
	})
	return events
}
