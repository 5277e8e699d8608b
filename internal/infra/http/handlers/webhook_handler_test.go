package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

type webhookFixture struct {
	h            *WebhookHandler
	leads        *MockLeadRepository
	deals        *MockDealRepository
	interactions *MockInteractionRepository
}

func newWebhookFixture(signingKey string) *webhookFixture {
	f := &webhookFixture{
		leads:        new(MockLeadRepository),
		deals:        new(MockDealRepository),
		interactions: new(MockInteractionRepository),
	}
	inbound := usecase.NewInboundEventsUseCase(f.leads, f.deals, f.interactions, zap.NewNop())
	f.h = NewWebhookHandler(inbound, signingKey, zap.NewNop())
	return f
}

const nestedBooking = `{
	"event": "invitee.created",
	"payload": {
		"invitee": {"email": "ada@engines.test", "name": "Ada"},
		"event": {"name": "Intro call", "start_time": "2026-03-12T14:00:00Z"}
	}
}`

func TestCalendlyInviteeCreatedWritesTimelineRow(t *testing.T) {
	f := newWebhookFixture("")
	lead := &entity.Lead{ID: uuid.New(), Email: "ada@engines.test"}
	f.leads.On("FindByEmail", mock.Anything, "ada@engines.test").Return(lead, nil)
	f.interactions.On("Create", mock.Anything, mock.MatchedBy(func(i *entity.Interaction) bool {
		return i.LeadID == lead.ID && i.Type == entity.InteractionMeeting &&
			*i.Summary == "Meeting booked: Intro call at 2026-03-12T14:00:00Z"
	})).Return(nil)

	early := &entity.Deal{ID: uuid.New(), LeadID: lead.ID, Stage: entity.StageContacted}
	late := &entity.Deal{ID: uuid.New(), LeadID: lead.ID, Stage: entity.StageNegotiation}
	f.deals.On("List", mock.Anything, entity.DealFilter{LeadID: &lead.ID}).Return([]*entity.Deal{early, late}, nil)
	f.deals.On("Update", mock.Anything, early).Return(nil)

	w := httptest.NewRecorder()
	f.h.Calendly(w, newRequest(t, http.MethodPost, "/integrations/calendly/webhook", nestedBooking, nil))

	require.Equal(t, http.StatusOK, w.Code)
	ack := decodeResponse[WebhookAck](t, w)
	assert.True(t, ack.Written)
	assert.Equal(t, lead.ID.String(), ack.LeadID)
	assert.Equal(t, entity.StageMeetingBooked, early.Stage)
	assert.Equal(t, entity.StageNegotiation, late.Stage)
	f.interactions.AssertExpectations(t)
	f.deals.AssertExpectations(t)
}

func TestCalendlyFlatPayload(t *testing.T) {
	f := newWebhookFixture("")
	f.leads.On("FindByEmail", mock.Anything, "grace@navy.test").Return(nil, entity.ErrLeadNotFound)

	body := `{"event":"invitee.canceled","payload":{"email":"grace@navy.test","name":"Grace","scheduled_event":{"name":"Demo"}}}`
	w := httptest.NewRecorder()
	f.h.Calendly(w, newRequest(t, http.MethodPost, "/integrations/calendly/webhook", body, nil))

	require.Equal(t, http.StatusOK, w.Code)
	ack := decodeResponse[WebhookAck](t, w)
	assert.False(t, ack.Written)
	assert.Equal(t, "no lead for email", ack.Reason)
	f.interactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCalendlyAlwaysAcknowledgesReadableBodies(t *testing.T) {
	cases := map[string]string{
		"other event":      `{"event":"routing_form_submission.created","payload":{}}`,
		"missing event":    `{"payload":{"invitee":{"email":"a@b.test"}}}`,
		"missing email":    `{"event":"invitee.created","payload":{}}`,
		"bad start time":   `{"event":"invitee.created","payload":{"email":"a@b.test","event":{"start_time":"tomorrow"}}}`,
		"wrong field type": `{"event":"invitee.created","payload":{"invitee":"ada"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			f := newWebhookFixture("")

			w := httptest.NewRecorder()
			f.h.Calendly(w, newRequest(t, http.MethodPost, "/integrations/calendly/webhook", body, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.False(t, decodeResponse[WebhookAck](t, w).Written)
			f.leads.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
		})
	}
}

func TestCalendlyRejectsNonJSON(t *testing.T) {
	f := newWebhookFixture("")

	w := httptest.NewRecorder()
	f.h.Calendly(w, newRequest(t, http.MethodPost, "/integrations/calendly/webhook", "event=invitee.created", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_JSON", decodeResponse[ErrorResponse](t, w).Error)
}

func calendlySignature(key string, ts int64, body string) string {
	mac := hmac.New(sha256.New, []byte(key))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestCalendlySignature(t *testing.T) {
	const key = "whsec-test"
	now := time.Unix(1_760_000_000, 0)
	body := `{"event":"invitee.created","payload":{}}`

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", calendlySignature(key, now.Unix(), body), http.StatusOK},
		{"wrong key", calendlySignature("other", now.Unix(), body), http.StatusUnauthorized},
		{"stale", calendlySignature(key, now.Add(-10*time.Minute).Unix(), body), http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "v1=zz", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newWebhookFixture(key)
			f.h.Now = func() time.Time { return now }

			req := newRequest(t, http.MethodPost, "/integrations/calendly/webhook", body, nil)
			if tc.header != "" {
				req.Header.Set(calendlySignatureHeader, tc.header)
			}
			w := httptest.NewRecorder()
			f.h.Calendly(w, req)

			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func formRequest(t *testing.T, target string, values url.Values) *http.Request {
	req := newRequest(t, http.MethodPost, target, values.Encode(), nil)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestTwilioRecordingMatchesCalledLead(t *testing.T) {
	f := newWebhookFixture("")
	lead := &entity.Lead{ID: uuid.New()}
	f.leads.On("FindByPhone", mock.Anything, "+15550001111").Return(lead, nil)
	f.interactions.On("Create", mock.Anything, mock.MatchedBy(func(i *entity.Interaction) bool {
		return i.Type == entity.InteractionCall && *i.Summary == "Call recording: https://api.twilio.test/rec/RE1 (42s)"
	})).Return(nil)

	w := httptest.NewRecorder()
	f.h.TwilioRecording(w, formRequest(t, "/integrations/twilio/voice/recording", url.Values{
		"CallSid":           {"CA1"},
		"To":                {"+15550001111"},
		"From":              {"+15559990000"},
		"RecordingUrl":      {"https://api.twilio.test/rec/RE1"},
		"RecordingDuration": {"42"},
	}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeResponse[WebhookAck](t, w).Written)
	f.leads.AssertNotCalled(t, "FindByPhone", mock.Anything, "+15559990000")
}

func TestTwilioStatusAcknowledges(t *testing.T) {
	f := newWebhookFixture("")

	w := httptest.NewRecorder()
	f.h.TwilioVoiceStatus(w, formRequest(t, "/integrations/twilio/voice/status", url.Values{
		"CallSid": {"CA1"}, "CallStatus": {"completed"},
	}))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEmailWebhookStoreFailureStillAcknowledges(t *testing.T) {
	f := newWebhookFixture("")
	lead := &entity.Lead{ID: uuid.New()}
	f.leads.On("FindByEmail", mock.Anything, "ada@engines.test").Return(lead, nil)
	f.interactions.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)

	w := httptest.NewRecorder()
	f.h.Email(w, newRequest(t, http.MethodPost, "/integrations/email/webhook",
		map[string]string{"event": "open", "email": "ada@engines.test", "subject": "Intro"}, nil))

	require.Equal(t, http.StatusOK, w.Code)
	ack := decodeResponse[WebhookAck](t, w)
	assert.False(t, ack.Written)
	assert.Equal(t, "processing failed", ack.Reason)
}

func TestOutboundVoiceNotImplemented(t *testing.T) {
	f := newWebhookFixture("")

	w := httptest.NewRecorder()
	f.h.VoiceReminder(w, newRequest(t, http.MethodPost, "/integrations/voice/reminder/x", nil, map[string]string{"leadId": uuid.NewString()}))
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = httptest.NewRecorder()
	f.h.VoicemailDrop(w, newRequest(t, http.MethodPost, "/integrations/voice/voicemail-drop/x", nil, map[string]string{"leadId": "bad"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
