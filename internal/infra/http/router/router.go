// Package router mounts every handler on a chi router under /api/v1.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xavierca1/ligue-crm/internal/infra/http/handlers"
	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
)

type Handlers struct {
	Health       *handlers.HealthHandler
	Leads        *handlers.LeadHandler
	Deals        *handlers.DealHandler
	Interactions *handlers.InteractionHandler
	Tasks        *handlers.TaskHandler
	AI           *handlers.AIHandler
	Webhooks     *handlers.WebhookHandler
	Email        *handlers.EmailHandler
}

type Options struct {
	AllowedOrigins []string
	// AIRateLimit guards /api/v1/ai. Nil disables it.
	AIRateLimit middleware.Store
	// RequestLog adds chi's request-timing log line.
	RequestLog bool
	// TrustProxyHeaders takes the client address from X-Forwarded-For /
	// X-Real-IP. Only enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
	Logger     *zap.Logger
}

func New(h Handlers, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	if opts.RequestLog {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", h.Leads.List)
			r.Get("/search", h.Leads.Search)
			r.Post("/", h.Leads.Create)
			r.Post("/bulk", h.Leads.BulkCreate)
			r.Get("/{id}", h.Leads.Get)
			r.Get("/{id}/timeline", h.Leads.Timeline)
			r.Patch("/{id}", h.Leads.Update)
			r.Patch("/{id}/fit-score", h.Leads.UpdateFitScore)
			r.Delete("/{id}", h.Leads.Delete)
		})

		r.Route("/deals", func(r chi.Router) {
			r.Get("/", h.Deals.List)
			r.Get("/by-lead/{leadId}", h.Deals.ListByLead)
			r.Post("/", h.Deals.Create)
			r.Get("/{id}", h.Deals.Get)
			r.Patch("/{id}", h.Deals.Update)
			r.Patch("/{id}/stage", h.Deals.UpdateStage)
			r.Patch("/{id}/next-action", h.Deals.UpdateNextAction)
			r.Delete("/{id}", h.Deals.Delete)
		})

		r.Get("/pipeline", h.Deals.Board)

		r.Route("/interactions", func(r chi.Router) {
			r.Get("/", h.Interactions.List)
			r.Get("/by-lead/{leadId}", h.Interactions.ListByLead)
			r.Post("/", h.Interactions.Create)
			r.Get("/{id}", h.Interactions.Get)
			r.Post("/{id}/attach-transcript", h.Interactions.AttachTranscript)
			r.Patch("/{id}", h.Interactions.Update)
			r.Delete("/{id}", h.Interactions.Delete)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.Tasks.List)
			r.Get("/due-today", h.Tasks.DueToday)
			r.Get("/overdue", h.Tasks.Overdue)
			r.Get("/by-lead/{leadId}", h.Tasks.ListByLead)
			r.Post("/", h.Tasks.Create)
			r.Post("/auto/after-demo/{leadId}", h.Tasks.AfterDemo)
			r.Get("/{id}", h.Tasks.Get)
			r.Patch("/{id}", h.Tasks.Update)
			r.Patch("/{id}/complete", h.Tasks.Complete)
			r.Patch("/{id}/reopen", h.Tasks.Reopen)
			r.Delete("/{id}", h.Tasks.Delete)
		})

		r.Route("/ai", func(r chi.Router) {
			if opts.AIRateLimit != nil {
				r.Use(middleware.RateLimit(opts.AIRateLimit, opts.Logger))
			}
			r.Post("/research/lead", h.AI.ResearchLead)
			r.Post("/discover/leads", h.AI.DiscoverLeads)
			r.Post("/draft/cold-email", h.AI.DraftColdEmail)
			r.Post("/draft/linkedin", h.AI.DraftLinkedIn)
			r.Post("/draft/follow-up", h.AI.DraftFollowUp)
			r.Post("/analyze/transcript", h.AI.AnalyzeTranscript)
			r.Post("/estimate/deal-value", h.AI.EstimateDealValue)
			r.Get("/recommend/next-actions/{leadId}", h.AI.RecommendNextActions)
		})

		r.Route("/integrations", func(r chi.Router) {
			r.Post("/calendly/webhook", h.Webhooks.Calendly)
			r.Post("/twilio/voice/status", h.Webhooks.TwilioVoiceStatus)
			r.Post("/twilio/voice/recording", h.Webhooks.TwilioRecording)
			r.Post("/voice/reminder/{leadId}", h.Webhooks.VoiceReminder)
			r.Post("/voice/voicemail-drop/{leadId}", h.Webhooks.VoicemailDrop)
			r.Post("/email/webhook", h.Webhooks.Email)
			r.Post("/email/send/{leadId}", h.Email.SendToLead)
		})
	})

	return r
}
