package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

const calendlySignatureHeader = "Calendly-Webhook-Signature"

// WebhookPayloadError reports a well-formed JSON body that is missing what
// the event needs. It is logged and acknowledged, never retried.
type WebhookPayloadError struct {
	Provider string
	Field    string
	Message  string
}

func (e *WebhookPayloadError) Error() string {
	return fmt.Sprintf("%s webhook: %s %s", e.Provider, e.Field, e.Message)
}

// WebhookAck is the body of every accepted webhook.
type WebhookAck struct {
	Received bool   `json:"received"`
	Written  bool   `json:"written"`
	LeadID   string `json:"lead_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// WebhookHandler answers 200 for anything it could read so providers do not
// retry; only unreadable bodies and bad signatures are rejected.
type WebhookHandler struct {
	Inbound            *usecase.InboundEventsUseCase
	CalendlySigningKey string
	// SignatureTolerance bounds the age of a signed Calendly delivery. 0 disables the check.
	SignatureTolerance time.Duration
	Logger             *zap.Logger
	Now                func() time.Time
}

func NewWebhookHandler(inbound *usecase.InboundEventsUseCase, calendlySigningKey string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		Inbound:            inbound,
		CalendlySigningKey: calendlySigningKey,
		SignatureTolerance: 3 * time.Minute,
		Logger:             logger,
		Now:                time.Now,
	}
}

type calendlyPerson struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type calendlyEvent struct {
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
}

// calendlyWebhook accepts the nested invitee/event payload and the flat
// shape where the invitee fields sit on payload itself.
type calendlyWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		calendlyPerson
		Invitee        *calendlyPerson `json:"invitee"`
		Event          *calendlyEvent  `json:"event"`
		ScheduledEvent *calendlyEvent  `json:"scheduled_event"`
	} `json:"payload"`
}

func (c calendlyWebhook) booking() (usecase.BookingEvent, error) {
	ev := usecase.BookingEvent{Event: strings.TrimSpace(c.Event)}
	if ev.Event == "" {
		return ev, &WebhookPayloadError{Provider: "calendly", Field: "event", Message: "is required"}
	}

	person := c.Payload.calendlyPerson
	if c.Payload.Invitee != nil {
		person = *c.Payload.Invitee
	}
	ev.Email = strings.TrimSpace(person.Email)
	ev.Name = strings.TrimSpace(person.Name)

	scheduled := c.Payload.Event
	if scheduled == nil {
		scheduled = c.Payload.ScheduledEvent
	}
	if scheduled != nil {
		ev.EventName = strings.TrimSpace(scheduled.Name)
		if scheduled.StartTime != "" {
			start, err := time.Parse(time.RFC3339, scheduled.StartTime)
			if err != nil {
				return ev, &WebhookPayloadError{Provider: "calendly", Field: "payload.event.start_time", Message: "must be an RFC 3339 timestamp"}
			}
			start = start.UTC()
			ev.StartTime = &start
		}
	}

	if ev.Email == "" && (ev.Event == usecase.CalendlyInviteeCreated || ev.Event == usecase.CalendlyInviteeCanceled) {
		return ev, &WebhookPayloadError{Provider: "calendly", Field: "payload.invitee.email", Message: "is required"}
	}
	return ev, nil
}

// Calendly handles POST /integrations/calendly/webhook.
func (h *WebhookHandler) Calendly(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_BODY", "could not read body")
		return
	}

	if h.CalendlySigningKey != "" {
		if err := h.verifyCalendly(r.Header.Get(calendlySignatureHeader), body); err != nil {
			h.Logger.Warn("calendly signature rejected", zap.Error(err))
			writeErrorResponse(w, http.StatusUnauthorized, "INVALID_SIGNATURE", err.Error())
			return
		}
	}

	if !json.Valid(body) {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "body is not valid JSON")
		return
	}
	var payload calendlyWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		err = &WebhookPayloadError{Provider: "calendly", Field: "body", Message: err.Error()}
		h.Logger.Info("calendly payload skipped", zap.Error(err))
		writeJSON(w, http.StatusOK, WebhookAck{Received: true, Reason: err.Error()})
		return
	}
	middleware.RecordWebhook("calendly", payload.Event)

	booking, err := payload.booking()
	if err != nil {
		h.Logger.Info("calendly payload skipped", zap.Error(err))
		writeJSON(w, http.StatusOK, WebhookAck{Received: true, Reason: err.Error()})
		return
	}

	outcome, err := h.Inbound.RecordBooking(r.Context(), booking)
	h.ack(w, "calendly", outcome, err)
}

// verifyCalendly checks a "t=<unix>,v1=<hex>" header, where v1 is the
// HMAC-SHA256 of "<t>.<body>".
func (h *WebhookHandler) verifyCalendly(header string, body []byte) error {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return fmt.Errorf("missing or malformed %s header", calendlySignatureHeader)
	}

	if h.SignatureTolerance > 0 {
		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid signature timestamp")
		}
		if age := h.Now().Sub(time.Unix(unix, 0)); age > h.SignatureTolerance || age < -h.SignatureTolerance {
			return fmt.Errorf("signature timestamp outside tolerance")
		}
	}

	want, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("signature is not hex")
	}
	mac := hmac.New(sha256.New, []byte(h.CalendlySigningKey))
	mac.Write([]byte(ts + "."))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), want) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// TwilioVoiceStatus handles the form-encoded call status callback.
func (h *WebhookHandler) TwilioVoiceStatus(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	status := r.PostForm.Get("CallStatus")
	middleware.RecordWebhook("twilio", "voice.status."+status)
	h.Logger.Info("twilio call status",
		zap.String("call_sid", r.PostForm.Get("CallSid")),
		zap.String("status", status),
		zap.String("duration", r.PostForm.Get("CallDuration")),
	)
	writeJSON(w, http.StatusOK, WebhookAck{Received: true})
}

func (h *WebhookHandler) TwilioRecording(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	middleware.RecordWebhook("twilio", "voice.recording")

	duration, _ := strconv.Atoi(r.PostForm.Get("RecordingDuration"))
	outcome, err := h.Inbound.RecordCallRecording(r.Context(), usecase.CallRecording{
		CallSID:      r.PostForm.Get("CallSid"),
		From:         r.PostForm.Get("From"),
		To:           r.PostForm.Get("To"),
		RecordingURL: strings.TrimSpace(r.PostForm.Get("RecordingUrl")),
		Duration:     duration,
	})
	h.ack(w, "twilio", outcome, err)
}

func (h *WebhookHandler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_FORM", "invalid form body: "+err.Error())
		return false
	}
	return true
}

// Email handles POST /integrations/email/webhook with {event, email, subject}.
func (h *WebhookHandler) Email(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Event   string `json:"event"`
		Email   string `json:"email"`
		Subject string `json:"subject"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	middleware.RecordWebhook("email", strings.ToLower(req.Event))

	outcome, err := h.Inbound.RecordEmailEvent(r.Context(), usecase.EmailProviderEvent{
		Event:   req.Event,
		Email:   req.Email,
		Subject: req.Subject,
	})
	h.ack(w, "email", outcome, err)
}

func (h *WebhookHandler) ack(w http.ResponseWriter, provider string, outcome usecase.InboundOutcome, err error) {
	ack := WebhookAck{Received: true, Written: outcome.Written, LeadID: outcome.LeadID, Reason: outcome.Reason}
	if err != nil {
		h.Logger.Error("webhook processing failed", zap.String("provider", provider), zap.Error(err))
		ack.Written = false
		ack.Reason = "processing failed"
	}
	writeJSON(w, http.StatusOK, ack)
}

// VoiceReminder and VoicemailDrop reserve the outbound telephony routes.
func (h *WebhookHandler) VoiceReminder(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, r)
}

func (h *WebhookHandler) VoicemailDrop(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, r)
}

func (h *WebhookHandler) notImplemented(w http.ResponseWriter, r *http.Request) {
	if _, ok := uuidParam(w, r, "leadId"); !ok {
		return
	}
	writeErrorResponse(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "outbound voice is not available")
}
