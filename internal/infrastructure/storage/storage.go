// Package storage keeps uploaded meeting recordings in an object store
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-minutes/pkg/config"
)

// ErrObjectNotFound is returned by Open for a missing key
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the subset of blob storage the service needs
type ObjectStore interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New builds the configured backend
func New(ctx context.Context, cfg *config.StorageConfig) (ObjectStore, error) {
	switch cfg.Type {
	case config.StorageS3:
		return NewS3Store(ctx, cfg)
	case config.StorageMinIO, "":
		return NewMinIOClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// RecordingKey builds the object key for a meeting's audio
func RecordingKey(prefix string, meetingID uuid.UUID, contentType string) string {
	ext := ".bin"
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case strings.HasSuffix(mediaType, "/webm"):
			ext = ".webm"
		case strings.HasSuffix(mediaType, "/mpeg"), strings.HasSuffix(mediaType, "/mp3"):
			ext = ".mp3"
		case strings.HasSuffix(mediaType, "/wav"), strings.HasSuffix(mediaType, "/x-wav"):
			ext = ".wav"
		case strings.HasSuffix(mediaType, "/ogg"):
			ext = ".ogg"
		case strings.HasSuffix(mediaType, "/mp4"), strings.HasSuffix(mediaType, "/m4a"), strings.HasSuffix(mediaType, "/x-m4a"):
			ext = ".m4a"
		}
	}
	return path.Join(prefix, meetingID.String()+ext)
}
