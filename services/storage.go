package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PresignTTL is how long generated upload/download URLs stay valid.
const PresignTTL = 15 * time.Minute

// S3Storage wraps the object store used for gaze-tracking videos. A nil
// *S3Storage is a valid value meaning "no storage configured"; callers treat
// it as a soft-disabled feature.
type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func NewS3Storage(ctx context.Context, cfg *AWSConfig) (*S3Storage, error) {
	if cfg.BucketName == "" {
		slog.Warn("BUCKET_NAME not set, media storage disabled")
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.BucketName,
	}, nil
}

// GazeVideoKey is the key clients upload raw session recordings to, before
// the recording is linked to a finalized interview.
func GazeVideoKey(userID, sessionID, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "webm"
	}
	return fmt.Sprintf("gaze-videos/%s/%s/%d.%s", userID, sessionID, time.Now().Unix(), ext)
}

// GazeTrackingKey is the permanent key for a recording bound to an interview.
func GazeTrackingKey(interviewID, fileName string) string {
	return fmt.Sprintf("gaze_tracking/%s/%s", interviewID, path.Base(fileName))
}

// PresignedPutURL returns a URL the client can PUT the recording to.
func (s *S3Storage) PresignedPutURL(ctx context.Context, key, contentType string) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(PresignTTL))
	if err != nil {
		slog.Error("Failed to presign upload", "error", err, "key", key)
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return req.URL, nil
}

// PresignedGetURL returns a time-limited download URL for a stored object.
func (s *S3Storage) PresignedGetURL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(PresignTTL))
	if err != nil {
		slog.Error("Failed to presign download", "error", err, "key", key)
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return req.URL, nil
}

// UploadFile streams body to the bucket under key and returns the object URL.
func (s *S3Storage) UploadFile(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        body,
	})
	if err != nil {
		slog.Error("Failed to upload object", "error", err, "key", key)
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// CopyObject copies an existing object to a new key within the bucket.
func (s *S3Storage) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + srcKey),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		slog.Error("Failed to copy object", "error", err, "src", srcKey, "dst", dstKey)
		return fmt.Errorf("failed to copy object: %w", err)
	}
	return nil
}
