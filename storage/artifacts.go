package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"sourcer/config"
)

// ArtifactSink receives debug captures such as the HTML of a page that yielded no facts.
type ArtifactSink interface {
	SaveArtifact(ctx context.Context, key string, data []byte, contentType string) error
}

// LocalArtifacts writes artifacts under a directory on disk.
type LocalArtifacts struct {
	dir string
}

func NewLocalArtifacts(dir string) *LocalArtifacts {
	return &LocalArtifacts{dir: dir}
}

func (l *LocalArtifacts) SaveArtifact(ctx context.Context, key string, data []byte, contentType string) error {
	// Rooting the key first keeps ".." from climbing out of dir.
	path := filepath.Join(l.dir, filepath.Clean("/"+key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return eris.Wrap(err, "storage: create artifact dir")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return eris.Wrapf(err, "storage: write artifact %s", path)
	}
	return nil
}

// NewArtifactSink prefers S3 when a bucket is configured, then a local
// directory. It returns nil when neither is set.
func NewArtifactSink(ctx context.Context, cfg config.ArtifactConfig) (ArtifactSink, error) {
	if cfg.S3.Enabled() {
		u, err := NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		zap.L().Info("debug artifacts go to s3", zap.String("bucket", cfg.S3.Bucket))
		return u, nil
	}
	if cfg.Dir != "" {
		zap.L().Info("debug artifacts go to disk", zap.String("dir", cfg.Dir))
		return NewLocalArtifacts(cfg.Dir), nil
	}
	return nil, nil
}
