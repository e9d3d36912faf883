package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Health    HealthConfig    `yaml:"health"`
	Twitch    TwitchConfig    `yaml:"twitch"`
	YouTube   YouTubeConfig   `yaml:"youtube"`
	Archive   ArchiveConfig   `yaml:"archive"`
	S3        S3Config        `yaml:"s3"`
	Uploader  UploaderConfig  `yaml:"uploader"`
}

// BroadcastConfig holds the local consumer broadcast socket configuration
type BroadcastConfig struct {
	Addr string `yaml:"addr"`
}

// HealthConfig holds the health/status endpoint configuration
type HealthConfig struct {
	Addr string `yaml:"addr"`
}

// TwitchConfig holds the externally resolved Twitch session identity. Login
// plus access token come from the auth layer; channel is the plain fallback
// used when authentication was skipped.
type TwitchConfig struct {
	Login         string `yaml:"login"`
	Channel       string `yaml:"channel"`
	ClientID      string `yaml:"client_id"`
	AccessToken   string `yaml:"access_token"`
	BroadcasterID string `yaml:"broadcaster_id"`
}

// YouTubeConfig holds the optional polling target
type YouTubeConfig struct {
	VideoID        string `yaml:"video_id"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
}

// ArchiveConfig holds the optional JSONL chat archive configuration
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	OutputDir       string `yaml:"output_dir"`
	BufferSize      int    `yaml:"buffer_size"`
	RotateMinutes   int    `yaml:"rotate_minutes"`
	RotateMegabytes int    `yaml:"rotate_megabytes"`
}

// S3Config holds archive upload configuration
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	RoleARN         string `yaml:"role_arn"`          // IAM role ARN for OIDC authentication
	AccessKeyID     string `yaml:"access_key_id"`     // Legacy: static credentials
	SecretAccessKey string `yaml:"secret_access_key"` // Legacy: static credentials
}

// UploaderConfig holds uploader configuration
type UploaderConfig struct {
	DeleteAfterUpload bool `yaml:"delete_after_upload"`
	MaxRetries        int  `yaml:"max_retries"`
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// Apply environment variable overrides
	if token := os.Getenv("TWITCH_ACCESS_TOKEN"); token != "" {
		cfg.Twitch.AccessToken = token
	}
	if id := os.Getenv("YOUTUBE_VIDEO_ID"); id != "" {
		cfg.YouTube.VideoID = id
	}
	if roleARN := os.Getenv("AWS_ROLE_ARN"); roleARN != "" {
		cfg.S3.RoleARN = roleARN
	}
	if keyID := os.Getenv("S3_ACCESS_KEY_ID"); keyID != "" {
		cfg.S3.AccessKeyID = keyID
	}
	if secretKey := os.Getenv("S3_SECRET_ACCESS_KEY"); secretKey != "" {
		cfg.S3.SecretAccessKey = secretKey
	}

	// Set defaults
	if cfg.Broadcast.Addr == "" {
		cfg.Broadcast.Addr = "localhost:9888"
	}
	if cfg.Health.Addr == "" {
		cfg.Health.Addr = ":8080"
	}
	if cfg.YouTube.PollIntervalMs == 0 {
		cfg.YouTube.PollIntervalMs = 3000
	}
	if cfg.Archive.OutputDir == "" {
		cfg.Archive.OutputDir = "./data"
	}
	if cfg.Archive.BufferSize == 0 {
		cfg.Archive.BufferSize = 100
	}
	if cfg.Archive.RotateMinutes == 0 {
		cfg.Archive.RotateMinutes = 60
	}
	if cfg.Archive.RotateMegabytes == 0 {
		cfg.Archive.RotateMegabytes = 100
	}
	if cfg.Uploader.MaxRetries == 0 {
		cfg.Uploader.MaxRetries = 3
	}

	// Validate required fields
	if cfg.Twitch.Login == "" && cfg.Twitch.Channel == "" {
		return nil, fmt.Errorf("either twitch.login (authenticated) or twitch.channel (fallback) is required")
	}
	if cfg.Twitch.Login != "" {
		if cfg.Twitch.AccessToken == "" {
			return nil, fmt.Errorf("twitch.access_token is required for an authenticated login (or set TWITCH_ACCESS_TOKEN)")
		}
		if cfg.Twitch.ClientID == "" {
			return nil, fmt.Errorf("twitch.client_id is required for an authenticated login")
		}
	}
	if cfg.S3.Bucket != "" {
		if cfg.S3.Region == "" {
			return nil, fmt.Errorf("s3.region is required when s3.bucket is set")
		}
		if cfg.S3.RoleARN == "" && cfg.S3.AccessKeyID == "" {
			return nil, fmt.Errorf("either s3.role_arn (OIDC) or s3.access_key_id (legacy) is required")
		}
		if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey == "" {
			return nil, fmt.Errorf("s3.secret_access_key is required when using access_key_id")
		}
	}

	return &cfg, nil
}
