package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"wardstone.gg/internal/persistence/r2s3"
)

type mirrorRuntime struct {
	enabled bool
	mirror  *r2s3.Mirror
}

// buildMirrorRuntime wires the event-log mirror from the environment.
// Credentials stay out of the config file on purpose.
func buildMirrorRuntime(eventDir string, logger *log.Logger) (*mirrorRuntime, error) {
	enabled := envBool("WARDSTONE_R2_MIRROR", false)
	if !enabled {
		return &mirrorRuntime{enabled: false}, nil
	}

	endpoint := strings.TrimSpace(os.Getenv("WARDSTONE_R2_ENDPOINT"))
	bucket := strings.TrimSpace(os.Getenv("WARDSTONE_R2_BUCKET"))
	accessKeyID := strings.TrimSpace(os.Getenv("WARDSTONE_R2_ACCESS_KEY_ID"))
	secretAccessKey := strings.TrimSpace(os.Getenv("WARDSTONE_R2_SECRET_ACCESS_KEY"))
	prefix := strings.TrimSpace(os.Getenv("WARDSTONE_R2_PREFIX"))
	if prefix == "" {
		prefix = "events"
	}

	if endpoint == "" || bucket == "" || accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("WARDSTONE_R2_MIRROR=true but WARDSTONE_R2_ENDPOINT/WARDSTONE_R2_BUCKET/WARDSTONE_R2_ACCESS_KEY_ID/WARDSTONE_R2_SECRET_ACCESS_KEY are not fully set")
	}

	client, err := r2s3.New(endpoint, bucket, accessKeyID, secretAccessKey)
	if err != nil {
		return nil, err
	}

	workers := envInt("WARDSTONE_R2_UPLOAD_WORKERS", 2)
	mirror, err := r2s3.NewMirror(client, eventDir, prefix, workers, logger)
	if err != nil {
		return nil, err
	}

	return &mirrorRuntime{enabled: true, mirror: mirror}, nil
}

func (r *mirrorRuntime) Close() {
	if r == nil || r.mirror == nil {
		return
	}
	r.mirror.Close()
}

func (r *mirrorRuntime) Enqueue(localPath string) {
	if r == nil || !r.enabled || r.mirror == nil {
		return
	}
	r.mirror.Enqueue(localPath)
}

func (r *mirrorRuntime) Stats() *r2s3.MirrorStats {
	if r == nil || !r.enabled || r.mirror == nil {
		return nil
	}
	st := r.mirror.Stats()
	return &st
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
