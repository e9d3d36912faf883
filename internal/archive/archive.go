package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tockanest/United-Chat/internal/message"
)

// logFile is one open JSONL file holding the feed of a single platform.
type logFile struct {
	file      *os.File
	writer    *bufio.Writer
	createdAt time.Time
	written   int64
	pending   int
	name      string
	platform  message.Platform
}

// Archive persists the unified feed as rotated JSONL files, one series per
// platform. It is an optional sink; the broadcast path never depends on it.
type Archive struct {
	outputDir   string
	flushEvery  int
	rotateAfter time.Duration
	rotateBytes int64

	mu    sync.Mutex
	files map[message.Platform]*logFile
}

// New creates an archive writing under outputDir. flushEvery is the number
// of messages buffered between flushes; files rotate after rotateMinutes or
// rotateMegabytes, whichever comes first.
func New(outputDir string, flushEvery, rotateMinutes, rotateMegabytes int) *Archive {
	return &Archive{
		outputDir:   outputDir,
		flushEvery:  flushEvery,
		rotateAfter: time.Duration(rotateMinutes) * time.Minute,
		rotateBytes: int64(rotateMegabytes) * 1024 * 1024,
		files:       make(map[message.Platform]*logFile),
	}
}

// Start consumes messages from in until ctx is canceled. Each rotated file's
// path is sent on rotated for downstream shipping; a full rotated queue is
// logged, not blocked on.
func (a *Archive) Start(ctx context.Context, in <-chan message.Unified, rotated chan<- string) error {
	if err := os.MkdirAll(a.outputDir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case msg := <-in:
			if err := a.append(msg); err != nil {
				log.Printf("Error archiving message: %v", err)
			}

		case <-ticker.C:
			a.rotateDue(rotated)

		case <-ctx.Done():
			log.Println("Archive shutting down, closing files...")
			a.closeAll(rotated)
			return ctx.Err()
		}
	}
}

func (a *Archive) append(msg message.Unified) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	lf := a.files[msg.Platform]
	if lf == nil {
		var err error
		if lf, err = a.open(msg.Platform); err != nil {
			return err
		}
		a.files[msg.Platform] = lf
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	n, err := lf.writer.Write(append(data, '\n'))
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	lf.written += int64(n)
	lf.pending++

	if lf.pending >= a.flushEvery {
		lf.pending = 0
		return lf.writer.Flush()
	}
	return nil
}

func (a *Archive) open(platform message.Platform) (*logFile, error) {
	name := fmt.Sprintf("%s_%s.jsonl", platform, time.Now().UTC().Format("20060102_1504"))
	f, err := os.Create(filepath.Join(a.outputDir, name))
	if err != nil {
		return nil, fmt.Errorf("create archive file: %w", err)
	}
	log.Printf("Created new archive file: %s", name)

	return &logFile{
		file:      f,
		writer:    bufio.NewWriter(f),
		createdAt: time.Now(),
		name:      name,
		platform:  platform,
	}, nil
}

// rotateDue closes any file past its time or size limit and queues it for
// shipping.
func (a *Archive) rotateDue(rotated chan<- string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for platform, lf := range a.files {
		if time.Since(lf.createdAt) < a.rotateAfter && lf.written < a.rotateBytes {
			continue
		}
		log.Printf("Rotating archive file %s", lf.name)
		a.closeFile(lf, rotated)
		delete(a.files, platform)
	}
}

func (a *Archive) closeFile(lf *logFile, rotated chan<- string) {
	if err := lf.writer.Flush(); err != nil {
		log.Printf("Error flushing archive file: %v", err)
	}
	if err := lf.file.Close(); err != nil {
		log.Printf("Error closing archive file: %v", err)
	}

	path := filepath.Join(a.outputDir, lf.name)
	select {
	case rotated <- path:
	default:
		log.Printf("Warning: upload queue full, file will be picked up later: %s", lf.name)
	}
}

func (a *Archive) closeAll(rotated chan<- string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for platform, lf := range a.files {
		a.closeFile(lf, rotated)
		delete(a.files, platform)
	}
}
