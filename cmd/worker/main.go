// cmd/worker/main.go
package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/leadgrid/leadgrid-backend/internal/config"
	"github.com/leadgrid/leadgrid-backend/internal/db"
	"github.com/leadgrid/leadgrid-backend/internal/mail"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
	"github.com/leadgrid/leadgrid-backend/internal/service"
	"github.com/leadgrid/leadgrid-backend/pkg/logger"
)

func main() {
	config.Load()
	logger.Init(config.Cfg.LoggerLevel, config.Cfg.LoggerFormat)
	defer logger.Sync()

	db.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	campaignRepo := &repository.CampaignRepository{DB: db.DB}
	recipientRepo := &repository.RecipientRepository{DB: db.DB}
	senderRepo := &repository.SenderRepository{DB: db.DB}
	organizerRepo := &repository.OrganizerRepository{DB: db.DB}

	tokens := &service.UnsubscribeTokens{
		Secret: []byte(config.Cfg.UnsubscribeSecret),
		TTL:    time.Duration(config.Cfg.UnsubscribeTTLDays) * 24 * time.Hour,
	}

	dispatcher := &service.Dispatcher{
		Campaigns:     campaignRepo,
		Recipients:    recipientRepo,
		Senders:       senderRepo,
		Organizers:    organizerRepo,
		Transport:     mail.NewHTTPTransport(config.Cfg.ProviderBaseURL),
		Unsub:         tokens,
		BaseURL:       config.Cfg.BaseURL,
		ReplyDomain:   config.Cfg.ReplyDomain,
		CampaignBatch: config.Cfg.CampaignBatchSize,
		BatchSize:     config.Cfg.RecipientBatchSize,
		SendDelay:     time.Duration(config.Cfg.SendDelayMilliseconds) * time.Millisecond,
	}
	scheduler := &service.Scheduler{
		Campaigns: campaignRepo,
		BatchSize: config.Cfg.CampaignBatchSize,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		service.RunLoop(ctx, "dispatcher",
			time.Duration(config.Cfg.DispatchIntervalSeconds)*time.Second, dispatcher.Cycle)
	}()
	go func() {
		defer wg.Done()
		service.RunLoop(ctx, "scheduler",
			time.Duration(config.Cfg.ScheduleIntervalSeconds)*time.Second, scheduler.Cycle)
	}()

	logger.L().Infow("worker running",
		"dispatch_interval_s", config.Cfg.DispatchIntervalSeconds,
		"schedule_interval_s", config.Cfg.ScheduleIntervalSeconds)

	wg.Wait()
	logger.L().Infow("worker stopped")
}
