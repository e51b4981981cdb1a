// cmd/server/main.go
package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/leadgrid/leadgrid-backend/internal/config"
	"github.com/leadgrid/leadgrid-backend/internal/db"
	"github.com/leadgrid/leadgrid-backend/internal/handler"
	"github.com/leadgrid/leadgrid-backend/internal/mail"
	appmiddleware "github.com/leadgrid/leadgrid-backend/internal/middleware"
	"github.com/leadgrid/leadgrid-backend/internal/queue"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
	"github.com/leadgrid/leadgrid-backend/internal/service"
	"github.com/leadgrid/leadgrid-backend/pkg/logger"
)

func main() {
	config.Load()
	logger.Init(config.Cfg.LoggerLevel, config.Cfg.LoggerFormat)
	defer logger.Sync()

	db.Init()

	campaignRepo := &repository.CampaignRepository{DB: db.DB}
	recipientRepo := &repository.RecipientRepository{DB: db.DB}
	eventRepo := &repository.EventRepository{DB: db.DB}
	suppressionRepo := &repository.SuppressionRepository{DB: db.DB}
	intentRepo := &repository.IntentRepository{DB: db.DB}
	senderRepo := &repository.SenderRepository{DB: db.DB}
	organizerRepo := &repository.OrganizerRepository{DB: db.DB}
	prospectRepo := &repository.ProspectRepository{DB: db.DB}
	resolveStore := &repository.ResolveStore{DB: db.DB}

	var publisher queue.EventPublisher
	if amqpPub, err := queue.NewAMQPPublisher(config.Cfg.AMQPURL, config.Cfg.EventQueueName); err != nil {
		logger.L().Warnw("event publisher unavailable, events will not be mirrored", "error", err)
	} else {
		publisher = amqpPub
		defer amqpPub.Close()
	}

	transport := mail.NewHTTPTransport(config.Cfg.ProviderBaseURL)
	tokens := &service.UnsubscribeTokens{
		Secret: []byte(config.Cfg.UnsubscribeSecret),
		TTL:    time.Duration(config.Cfg.UnsubscribeTTLDays) * 24 * time.Hour,
	}

	campaignService := &service.CampaignService{Campaigns: campaignRepo, Prospects: prospectRepo}
	resolver := &service.Resolver{Store: resolveStore}
	lifecycle := &service.Lifecycle{Campaigns: campaignRepo}
	dispatcher := &service.Dispatcher{
		Campaigns:     campaignRepo,
		Recipients:    recipientRepo,
		Senders:       senderRepo,
		Organizers:    organizerRepo,
		Transport:     transport,
		Unsub:         tokens,
		BaseURL:       config.Cfg.BaseURL,
		ReplyDomain:   config.Cfg.ReplyDomain,
		CampaignBatch: config.Cfg.CampaignBatchSize,
		BatchSize:     config.Cfg.RecipientBatchSize,
		SendDelay:     time.Duration(config.Cfg.SendDelayMilliseconds) * time.Millisecond,
	}
	ingestor := &service.Ingestor{
		Recipients:  recipientRepo,
		Events:      eventRepo,
		Suppression: suppressionRepo,
		Intents:     intentRepo,
		Prospects:   prospectRepo,
		Publisher:   publisher,
	}
	replyIngestor := &service.ReplyIngestor{
		Recipients:  recipientRepo,
		Organizers:  organizerRepo,
		Events:      eventRepo,
		Intents:     intentRepo,
		Prospects:   prospectRepo,
		Transport:   transport,
		Publisher:   publisher,
		ReplyDomain: config.Cfg.ReplyDomain,
	}
	unsubscribeService := &service.UnsubscribeService{Tokens: tokens, Suppression: suppressionRepo}

	campaignHandler := &handler.CampaignHandler{
		Campaigns:  campaignService,
		Resolver:   resolver,
		Lifecycle:  lifecycle,
		Dispatcher: dispatcher,
		Events:     eventRepo,
	}
	webhookHandler := &handler.WebhookHandler{
		Ingestor:      ingestor,
		ReplyIngestor: replyIngestor,
		InboundSecret: config.Cfg.InboundSecret,
	}
	unsubscribeHandler := &handler.UnsubscribeHandler{Unsubscribes: unsubscribeService}
	intentHandler := &handler.IntentHandler{Intents: intentRepo}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	// Authenticated management API.
	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.Auth(config.Cfg.JWTSecret))

		r.Post("/campaigns", campaignHandler.Create)
		r.Get("/campaigns", campaignHandler.List)
		r.Get("/campaigns/{id}", campaignHandler.Get)
		r.Get("/campaigns/{id}/events", campaignHandler.ListEvents)
		r.Post("/campaigns/{id}/resolve", campaignHandler.Resolve)
		r.Post("/campaigns/{id}/schedule", campaignHandler.Schedule)
		r.Post("/campaigns/{id}/pause", campaignHandler.Pause)
		r.Post("/campaigns/{id}/resume", campaignHandler.Resume)
		r.Post("/campaigns/{id}/send", campaignHandler.SendNow)
		r.Post("/campaigns/{id}/send-batch", campaignHandler.SendBatch)
		r.Post("/campaigns/{id}/preview", campaignHandler.Preview)
		r.Post("/intents", intentHandler.Create)
	})

	// Provider-facing endpoints.
	r.Post("/webhooks/provider", webhookHandler.Provider)
	r.Post("/webhooks/inbound/{secret}", webhookHandler.Inbound)
	r.Get("/unsubscribe/{token}", unsubscribeHandler.Show)
	r.Post("/unsubscribe/{token}", unsubscribeHandler.Confirm)

	logger.L().Infow("server running", "addr", config.Cfg.HTTPAddr)
	if err := http.ListenAndServe(config.Cfg.HTTPAddr, r); err != nil {
		logger.L().Fatalf("server stopped: %v", err)
	}
}
