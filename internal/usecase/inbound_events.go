package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

const (
	CalendlyInviteeCreated  = "invitee.created"
	CalendlyInviteeCanceled = "invitee.canceled"
)

type BookingEvent struct {
	Event     string
	Email     string
	Name      string
	EventName string
	StartTime *time.Time
}

type EmailProviderEvent struct {
	Event   string // open | click | bounce | delivered
	Email   string
	Subject string
}

type CallRecording struct {
	CallSID      string
	From         string
	To           string
	RecordingURL string
	Duration     int // seconds
}

// InboundOutcome tells the webhook what happened; webhooks answer 200 either way.
type InboundOutcome struct {
	Written bool
	LeadID  string
	Reason  string
}

// InboundEventsUseCase turns provider callbacks into timeline rows.
type InboundEventsUseCase struct {
	Leads        entity.LeadRepositoryInterface
	Deals        entity.DealRepositoryInterface
	Interactions entity.InteractionRepositoryInterface
	Logger       *zap.Logger
}

func NewInboundEventsUseCase(
	leads entity.LeadRepositoryInterface,
	deals entity.DealRepositoryInterface,
	interactions entity.InteractionRepositoryInterface,
	logger *zap.Logger,
) *InboundEventsUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboundEventsUseCase{Leads: leads, Deals: deals, Interactions: interactions, Logger: logger}
}

// RecordBooking writes a Meeting interaction for the invitee's lead. A new
// booking also moves the lead's New and Contacted deals to Meeting Booked.
func (uc *InboundEventsUseCase) RecordBooking(ctx context.Context, ev BookingEvent) (InboundOutcome, error) {
	var summary string
	switch ev.Event {
	case CalendlyInviteeCreated:
		summary = "Meeting booked"
	case CalendlyInviteeCanceled:
		summary = "Meeting canceled"
	default:
		return InboundOutcome{Reason: "ignored event " + ev.Event}, nil
	}
	if ev.EventName != "" {
		summary += ": " + ev.EventName
	}
	if ev.StartTime != nil {
		summary += " at " + ev.StartTime.UTC().Format(time.RFC3339)
	}

	lead, outcome, err := uc.leadByEmail(ctx, ev.Email)
	if lead == nil {
		return outcome, err
	}

	if err := uc.addInteraction(ctx, lead, entity.InteractionMeeting, summary); err != nil {
		return InboundOutcome{LeadID: lead.ID.String()}, err
	}

	if ev.Event == CalendlyInviteeCreated {
		if err := uc.advanceToMeetingBooked(ctx, lead); err != nil {
			// the timeline row is already written
			uc.Logger.Warn("booking recorded but deals not advanced", zap.String("lead_id", lead.ID.String()), zap.Error(err))
		}
	}
	return InboundOutcome{Written: true, LeadID: lead.ID.String()}, nil
}

func (uc *InboundEventsUseCase) advanceToMeetingBooked(ctx context.Context, lead *entity.Lead) error {
	deals, err := uc.Deals.List(ctx, entity.DealFilter{LeadID: &lead.ID})
	if err != nil {
		return err
	}
	for _, d := range deals {
		if !d.Stage.Before(entity.StageMeetingBooked) {
			continue
		}
		d.Stage = entity.StageMeetingBooked
		d.UpdatedAt = time.Now().UTC()
		if err := uc.Deals.Update(ctx, d); err != nil {
			return fmt.Errorf("advance deal %s: %w", d.ID, err)
		}
	}
	return nil
}

var emailProviderEvents = map[string]string{
	"open":      "Email opened",
	"click":     "Email link clicked",
	"bounce":    "Email bounced",
	"delivered": "Email delivered",
}

func (uc *InboundEventsUseCase) RecordEmailEvent(ctx context.Context, ev EmailProviderEvent) (InboundOutcome, error) {
	label, ok := emailProviderEvents[strings.ToLower(ev.Event)]
	if !ok {
		return InboundOutcome{Reason: "ignored event " + ev.Event}, nil
	}
	lead, outcome, err := uc.leadByEmail(ctx, ev.Email)
	if lead == nil {
		return outcome, err
	}

	summary := label
	if s := strings.TrimSpace(ev.Subject); s != "" {
		summary += ": " + s
	}
	if err := uc.addInteraction(ctx, lead, entity.InteractionEmail, summary); err != nil {
		return InboundOutcome{LeadID: lead.ID.String()}, err
	}
	return InboundOutcome{Written: true, LeadID: lead.ID.String()}, nil
}

// RecordCallRecording matches the lead on either leg of the call.
func (uc *InboundEventsUseCase) RecordCallRecording(ctx context.Context, rec CallRecording) (InboundOutcome, error) {
	if rec.RecordingURL == "" {
		return InboundOutcome{Reason: "no recording url"}, nil
	}

	var lead *entity.Lead
	for _, phone := range []string{rec.To, rec.From} {
		if phone == "" {
			continue
		}
		l, err := uc.Leads.FindByPhone(ctx, phone)
		if errors.Is(err, entity.ErrLeadNotFound) {
			continue
		}
		if err != nil {
			return InboundOutcome{}, err
		}
		lead = l
		break
	}
	if lead == nil {
		uc.Logger.Info("recording for unknown number", zap.String("call_sid", rec.CallSID))
		return InboundOutcome{Reason: "no lead for call"}, nil
	}

	summary := "Call recording: " + rec.RecordingURL
	if rec.Duration > 0 {
		summary += fmt.Sprintf(" (%ds)", rec.Duration)
	}
	if err := uc.addInteraction(ctx, lead, entity.InteractionCall, summary); err != nil {
		return InboundOutcome{LeadID: lead.ID.String()}, err
	}
	return InboundOutcome{Written: true, LeadID: lead.ID.String()}, nil
}

// leadByEmail returns a nil lead with the outcome to report when there is
// nothing to write.
func (uc *InboundEventsUseCase) leadByEmail(ctx context.Context, email string) (*entity.Lead, InboundOutcome, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, InboundOutcome{Reason: "no email"}, nil
	}
	lead, err := uc.Leads.FindByEmail(ctx, email)
	if errors.Is(err, entity.ErrLeadNotFound) {
		uc.Logger.Info("event for unknown lead", zap.String("email", email))
		return nil, InboundOutcome{Reason: "no lead for email"}, nil
	}
	if err != nil {
		return nil, InboundOutcome{}, err
	}
	return lead, InboundOutcome{}, nil
}

func (uc *InboundEventsUseCase) addInteraction(ctx context.Context, lead *entity.Lead, kind entity.InteractionType, summary string) error {
	summary = truncate(summary, 400)
	interaction, err := entity.NewInteraction(lead.ID, kind, &summary, nil, nil)
	if err != nil {
		return err
	}
	return uc.Interactions.Create(ctx, interaction)
}
