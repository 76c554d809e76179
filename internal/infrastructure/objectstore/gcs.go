// Package objectstore uploads user media to Google Cloud Storage.
package objectstore

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"

	"github.com/oksasatya/go-social-sync/pkg/helpers"
)

var ErrNotConfigured = errors.New("object storage not configured")

type GCS struct {
	Client *storage.Client
	Bucket string
}

func NewGCS(client *storage.Client, bucket string) *GCS {
	return &GCS{Client: client, Bucket: bucket}
}

// Upload writes r to bucket/objectPath and returns its public URL.
func (g *GCS) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	if g == nil || g.Client == nil || g.Bucket == "" {
		return "", ErrNotConfigured
	}
	return helpers.UploadObject(ctx, g.Client, g.Bucket, objectPath, contentType, r)
}
