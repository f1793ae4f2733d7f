package draftstore

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/kamnsolar/field_capture/utils"
)

// GCSBackend stores the draft as a single bucket object.
type GCSBackend struct {
	client *storage.Client
	bucket string
	object string
}

func NewGCSBackend(client *storage.Client, bucket, object string) *GCSBackend {
	return &GCSBackend{client: client, bucket: bucket, object: object}
}

func (g *GCSBackend) Name() string { return "gcs:" + g.bucket + "/" + g.object }

func (g *GCSBackend) Read(ctx context.Context) ([]byte, bool, error) {
	return utils.ReadBytesFromGCS(ctx, g.client, g.bucket, g.object)
}

func (g *GCSBackend) Write(ctx context.Context, data []byte) error {
	return utils.UploadBytesToGCS(ctx, g.client, g.bucket, g.object, data, "application/json")
}

func (g *GCSBackend) Delete(ctx context.Context) error {
	return utils.DeleteObjectFromGCS(ctx, g.client, g.bucket, g.object)
}
