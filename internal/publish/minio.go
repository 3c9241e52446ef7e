// Package publish copies finished videos to S3-compatible object storage so
// they survive artifact directory cleanup and can be served from a CDN.
package publish

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type VideoPublisher struct {
	client *minio.Client
	bucket string
}

func NewVideoPublisher(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*VideoPublisher, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connection: %w", err)
	}
	return &VideoPublisher{client: client, bucket: bucket}, nil
}

// PublishVideo uploads the final video under <jobID>/final.mp4 and returns
// the object location.
func (p *VideoPublisher) PublishVideo(ctx context.Context, jobID, path string) (string, error) {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return "", fmt.Errorf("bucket check: %w", err)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("create bucket: %w", err)
		}
	}

	object := jobID + "/final.mp4"
	if _, err := p.client.FPutObject(ctx, p.bucket, object, path, minio.PutObjectOptions{
		ContentType: "video/mp4",
	}); err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}
	return p.bucket + "/" + object, nil
}
