package r2s3

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	mirrorQueueCapacity = 2048
	mirrorEnqueueWait   = 25 * time.Millisecond
	mirrorMaxAttempts   = 4
)

// MirrorStats is a point-in-time snapshot of the mirror counters.
type MirrorStats struct {
	QueueDepth  int    `json:"queue_depth"`
	Enqueued    uint64 `json:"enqueued"`
	Saturated   uint64 `json:"saturated"`
	Dropped     uint64 `json:"dropped"`
	Uploaded    uint64 `json:"uploaded"`
	Failed      uint64 `json:"failed"`
	LastOKUnix  int64  `json:"last_ok_unix,omitempty"`
	LastErrUnix int64  `json:"last_err_unix,omitempty"`
}

// Mirror uploads completed files under baseDir to the object store from a
// pool of background workers. Enqueue is bounded: when the queue stays full
// past a short wait the file is dropped and counted, so a lagging mirror can
// never stall log rotation.
type Mirror struct {
	client  *Client
	baseDir string
	prefix  string
	log     *log.Logger

	jobs      chan string
	wg        sync.WaitGroup
	closeOnce sync.Once

	enqueued  atomic.Uint64
	saturated atomic.Uint64
	dropped   atomic.Uint64
	uploaded  atomic.Uint64
	failed    atomic.Uint64
	lastOKAt  atomic.Int64
	lastErrAt atomic.Int64
}

// NewMirror starts workers draining the upload queue. Object keys are the
// file paths relative to baseDir, under prefix.
func NewMirror(client *Client, baseDir, prefix string, workers int, logger *log.Logger) (*Mirror, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	if workers < 1 {
		workers = 1
	}
	m := &Mirror{
		client:  client,
		baseDir: abs,
		prefix:  strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		log:     logger,
		jobs:    make(chan string, mirrorQueueCapacity),
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m, nil
}

// Enqueue schedules localPath for upload. Safe to call from rotation hooks:
// it waits at most mirrorEnqueueWait before giving up on a saturated queue.
func (m *Mirror) Enqueue(localPath string) {
	select {
	case m.jobs <- localPath:
		m.enqueued.Add(1)
		return
	default:
	}
	m.saturated.Add(1)

	t := time.NewTimer(mirrorEnqueueWait)
	defer t.Stop()
	select {
	case m.jobs <- localPath:
		m.enqueued.Add(1)
	case <-t.C:
		dropped := m.dropped.Add(1)
		m.log.Printf("mirror: queue full, dropped %s (dropped_total=%d)", localPath, dropped)
	}
}

// Close stops accepting work and waits for in-flight uploads to finish.
func (m *Mirror) Close() {
	m.closeOnce.Do(func() { close(m.jobs) })
	m.wg.Wait()
}

func (m *Mirror) Stats() MirrorStats {
	return MirrorStats{
		QueueDepth:  len(m.jobs),
		Enqueued:    m.enqueued.Load(),
		Saturated:   m.saturated.Load(),
		Dropped:     m.dropped.Load(),
		Uploaded:    m.uploaded.Load(),
		Failed:      m.failed.Load(),
		LastOKUnix:  m.lastOKAt.Load(),
		LastErrUnix: m.lastErrAt.Load(),
	}
}

func (m *Mirror) worker() {
	defer m.wg.Done()
	for localPath := range m.jobs {
		m.upload(localPath)
	}
}

func (m *Mirror) upload(localPath string) {
	key, err := m.objectKey(localPath)
	if err != nil {
		m.failed.Add(1)
		m.lastErrAt.Store(time.Now().Unix())
		m.log.Printf("mirror: skip %s: %v", localPath, err)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= mirrorMaxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(attempt*attempt) * 200 * time.Millisecond)
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		lastErr = m.client.PutFile(ctx, key, localPath)
		cancel()
		if lastErr == nil {
			m.uploaded.Add(1)
			m.lastOKAt.Store(time.Now().Unix())
			m.log.Printf("mirror: uploaded %s", key)
			return
		}
	}
	m.failed.Add(1)
	m.lastErrAt.Store(time.Now().Unix())
	m.log.Printf("mirror: giving up on %s after %d attempts: %v", key, mirrorMaxAttempts, lastErr)
}

// objectKey maps a local path to the path relative to baseDir, under the
// configured prefix. Paths outside baseDir are refused rather than guessed at.
func (m *Mirror) objectKey(localPath string) (string, error) {
	if localPath == "" {
		return "", fmt.Errorf("empty local path")
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(m.baseDir, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s is outside mirror base %s", abs, m.baseDir)
	}
	if m.prefix != "" {
		return path.Join(m.prefix, rel), nil
	}
	return rel, nil
}
