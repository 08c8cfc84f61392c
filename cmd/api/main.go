package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"classpoll/config"
	"classpoll/internal/domain/chat"
	"classpoll/internal/domain/participant"
	"classpoll/internal/domain/poll"
	"classpoll/internal/handler"
	"classpoll/internal/redis"
	"classpoll/internal/repository"
	"classpoll/internal/server"
	"classpoll/internal/services"
	"classpoll/internal/storage"
	"classpoll/pkg/database"
	"classpoll/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)
	zap.ReplaceGlobals(l.Logger)

	// Connect to Database
	database.Connect(cfg)

	// Run GORM AutoMigrate for Tables
	if err := database.DB.AutoMigrate(
		&participant.Participant{},
		&poll.Poll{},
		&poll.Option{},
		&poll.Vote{},
		&chat.Message{},
	); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}

	redis.Initialize(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	limiter := redis.NewRateLimiter(redis.GetClient(), redis.DefaultRateLimitConfig())

	pollRepo := repository.NewPollRepository(database.DB)
	voteRepo := repository.NewVoteRepository(database.DB)
	participantRepo := repository.NewParticipantRepository(database.DB)
	chatRepo := repository.NewChatRepository(database.DB)

	hub := server.NewHub()
	presence := services.NewPresenceTracker(hub, l)
	timer := services.NewPollTimer(pollRepo, voteRepo, hub, l)

	if cfg.ArchiveBucket != "" {
		store, err := storage.NewClient(context.Background(), storage.S3Config{
			Region:    cfg.ArchiveRegion,
			Bucket:    cfg.ArchiveBucket,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Endpoint:  cfg.ArchiveEndpoint,
		})
		if err != nil {
			l.Errorf("Archive storage unavailable, exports disabled: %s", err)
		} else {
			archive := services.NewArchiveService(store, l)
			timer.SetOnEnded(archive.ArchivePollResults)
		}
	}

	pollService := services.NewPollService(pollRepo, voteRepo, timer, hub, cfg, l)
	voteService := services.NewVoteService(pollRepo, voteRepo, presence, timer, hub, l)
	stateService := services.NewStateService(pollRepo, voteRepo, participantRepo, presence, timer, l)
	participantService := services.NewParticipantService(participantRepo, presence, hub, l)
	chatService := services.NewChatService(chatRepo, hub, l)

	hub.AttachPresence(presence)
	hub.AttachDispatcher(server.NewDispatcher(server.DispatcherDeps{
		Hub:          hub,
		Participants: participantService,
		Polls:        pollService,
		Votes:        voteService,
		State:        stateService,
		Chat:         chatService,
		Presence:     presence,
	}))

	go hub.Run()

	// Recover the countdown for a poll that was active when the process
	// last stopped.
	if err := timer.Restore(context.Background()); err != nil {
		l.Errorf("Failed to restore poll timer: %s", err)
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Participant: handler.NewParticipantHandler(participantService, presence),
		Poll:        handler.NewPollHandler(pollService),
		Vote:        handler.NewVoteHandler(voteService),
		State:       handler.NewStateHandler(stateService),
		Chat:        handler.NewChatHandler(chatService),
		WebSocket:   server.NewWebSocketHandler(hub),
	}, limiter)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}

	hub.Stop()
	timer.Stop()
}
