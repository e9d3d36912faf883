package uploader

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Uploader ships rotated archive files to S3.
type Uploader struct {
	s3Client    *s3.Client
	bucket      string
	deleteAfter bool
	maxRetries  int
}

// New creates an uploader. When roleARN is set the role is assumed via web
// identity; otherwise the default credential chain is used.
func New(ctx context.Context, bucket, region, roleARN string, deleteAfter bool, maxRetries int) (*Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if roleARN != "" {
		stsClient := sts.NewFromConfig(cfg)
		provider := stscreds.NewWebIdentityRoleProvider(
			stsClient,
			roleARN,
			stscreds.IdentityTokenFile(os.Getenv("AWS_WEB_IDENTITY_TOKEN_FILE")),
		)
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return &Uploader{
		s3Client:    s3.NewFromConfig(cfg),
		bucket:      bucket,
		deleteAfter: deleteAfter,
		maxRetries:  maxRetries,
	}, nil
}

// NewWithStaticCredentials creates an uploader using static credentials (legacy)
func NewWithStaticCredentials(ctx context.Context, bucket, region, accessKeyID, secretAccessKey string, deleteAfter bool, maxRetries int) (*Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &Uploader{
		s3Client:    s3.NewFromConfig(cfg),
		bucket:      bucket,
		deleteAfter: deleteAfter,
		maxRetries:  maxRetries,
	}, nil
}

// ScanExisting queues every .jsonl file already present in dir, picking up
// archives left behind by a previous run.
func (u *Uploader) ScanExisting(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read archive directory: %w", err)
	}

	found := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		found++
		go u.uploadWithRetry(ctx, filepath.Join(dir, entry.Name()))
	}
	log.Printf("Queued %d existing archive file(s) for upload", found)
	return nil
}

// Start uploads each path received on files until ctx is canceled.
func (u *Uploader) Start(ctx context.Context, files <-chan string) error {
	for {
		select {
		case path := <-files:
			go u.uploadWithRetry(ctx, path)

		case <-ctx.Done():
			log.Println("Uploader shutting down...")
			return ctx.Err()
		}
	}
}

func (u *Uploader) uploadWithRetry(ctx context.Context, localPath string) {
	filename := filepath.Base(localPath)
	key, err := objectKey(filename)
	if err != nil {
		log.Printf("Error generating S3 key for %s: %v", filename, err)
		return
	}

	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		if err := u.putFile(ctx, localPath, key); err == nil {
			log.Printf("Uploaded %s to s3://%s/%s", filename, u.bucket, key)
			if u.deleteAfter {
				if err := os.Remove(localPath); err != nil {
					log.Printf("Error deleting local file %s: %v", localPath, err)
				}
			}
			return
		} else if attempt < u.maxRetries {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("Upload attempt %d/%d failed for %s: %v. Retrying in %v",
				attempt+1, u.maxRetries, filename, err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
		}
	}
	log.Printf("Failed to upload %s after %d attempts", filename, u.maxRetries)
}

func (u *Uploader) putFile(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	if _, err := u.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   file,
	}); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// objectKey derives a date-partitioned S3 key from an archive filename.
// Input: twitch_20251230_1030.jsonl
// Output: 2025/12/30/twitch/twitch_20251230_1030.jsonl
func objectKey(filename string) (string, error) {
	parts := strings.Split(strings.TrimSuffix(filename, ".jsonl"), "_")
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid archive filename: %s", filename)
	}

	platform := parts[0]
	t, err := time.Parse("20060102_1504", parts[len(parts)-2]+"_"+parts[len(parts)-1])
	if err != nil {
		return "", fmt.Errorf("parse archive timestamp: %w", err)
	}

	return fmt.Sprintf("%04d/%02d/%02d/%s/%s", t.Year(), t.Month(), t.Day(), platform, filename), nil
}
