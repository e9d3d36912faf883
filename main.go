package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tockanest/United-Chat/internal/archive"
	"github.com/tockanest/United-Chat/internal/config"
	"github.com/tockanest/United-Chat/internal/health"
	"github.com/tockanest/United-Chat/internal/message"
	"github.com/tockanest/United-Chat/internal/session"
	"github.com/tockanest/United-Chat/internal/twitch"
	"github.com/tockanest/United-Chat/internal/uploader"
	"github.com/tockanest/United-Chat/internal/wsserver"
	"github.com/tockanest/United-Chat/internal/youtube"
)

func main() {
	log.Println("United Chat starting...")

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	identity := twitch.Identity{
		Login:         cfg.Twitch.Login,
		Channel:       cfg.Twitch.Channel,
		ClientID:      cfg.Twitch.ClientID,
		AccessToken:   cfg.Twitch.AccessToken,
		BroadcasterID: cfg.Twitch.BroadcasterID,
	}

	// Optional archive + uploader pipeline.
	var archiveChan chan message.Unified
	if cfg.Archive.Enabled {
		archiveChan = make(chan message.Unified, cfg.Archive.BufferSize)
		fileChan := make(chan string, 100)

		arc := archive.New(
			cfg.Archive.OutputDir,
			cfg.Archive.BufferSize,
			cfg.Archive.RotateMinutes,
			cfg.Archive.RotateMegabytes,
		)
		go func() {
			if err := arc.Start(ctx, archiveChan, fileChan); err != nil && err != context.Canceled {
				log.Printf("Archive error: %v", err)
			}
		}()

		if cfg.S3.Bucket != "" {
			var up *uploader.Uploader
			if cfg.S3.RoleARN != "" {
				up, err = uploader.New(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.RoleARN,
					cfg.Uploader.DeleteAfterUpload, cfg.Uploader.MaxRetries)
			} else {
				up, err = uploader.NewWithStaticCredentials(ctx, cfg.S3.Bucket, cfg.S3.Region,
					cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey,
					cfg.Uploader.DeleteAfterUpload, cfg.Uploader.MaxRetries)
			}
			if err != nil {
				log.Fatalf("Failed to create uploader: %v", err)
			}
			if err := up.ScanExisting(ctx, cfg.Archive.OutputDir); err != nil {
				log.Printf("Warning: failed to scan for existing archives: %v", err)
			}
			go func() {
				if err := up.Start(ctx, fileChan); err != nil && err != context.Canceled {
					log.Printf("Uploader error: %v", err)
				}
			}()
		}
	}

	var hub *wsserver.Hub
	coordinator := session.New(session.Deps{
		NewHub: func() (session.Hub, error) {
			h, err := wsserver.Start(cfg.Broadcast.Addr)
			if err != nil {
				return nil, err
			}
			hub = h
			return h, nil
		},
		Twitch: func(ctx context.Context, tok session.Token, out chan<- message.Unified) error {
			return twitch.New(identity).Start(ctx, tok, out)
		},
		YouTube: func(videoID string, interval time.Duration) session.RunFunc {
			return func(ctx context.Context, tok session.Token, out chan<- message.Unified) error {
				return youtube.New(videoID, interval).Run(ctx, tok, out)
			}
		},
		Archive: archiveChan,
	})

	healthServer := health.New(cfg.Health.Addr, func() health.Status {
		st := health.Status{SessionStarted: coordinator.Started()}
		if hub != nil {
			st.Consumers = hub.ClientCount()
		}
		return st
	})
	go func() {
		if err := healthServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Printf("Health server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, stopping session...")
		coordinator.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down health server: %v", err)
		}
		cancel()
	}()

	opts := session.StartOptions{
		YouTubeVideoID: cfg.YouTube.VideoID,
		PollInterval:   time.Duration(cfg.YouTube.PollIntervalMs) * time.Millisecond,
	}
	if err := coordinator.Start(ctx, opts); err != nil {
		log.Fatalf("Session failed to start: %v", err)
	}

	log.Println("United Chat stopped")
}
