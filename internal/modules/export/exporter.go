// Package export uploads reproduction manifests to S3-compatible object storage
// (AWS S3, Cloudflare R2, MinIO).
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/runway/internal/config"
)

// Uploader is the part of manager.Uploader the exporter needs
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Exporter writes manifests to s3://bucket/prefix/<scenario>/<run key>.json.
// A nil uploader disables export and Export becomes a no-op.
type Exporter struct {
	uploader Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
	now      func() time.Time
}

// New builds an exporter from configuration. Without a bucket the exporter is disabled.
// Static credentials are used when given, otherwise the default AWS credential chain.
func New(ctx context.Context, cfg config.ExportConfig, log zerolog.Logger) (*Exporter, error) {
	if !cfg.Enabled() {
		return NewWithUploader(nil, "", "", log), nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load object storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithUploader(manager.NewUploader(client), cfg.Bucket, cfg.Prefix, log), nil
}

// NewWithUploader creates an exporter around an existing uploader
func NewWithUploader(u Uploader, bucket, prefix string, log zerolog.Logger) *Exporter {
	return &Exporter{
		uploader: u,
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("component", "export").Logger(),
		now:      time.Now,
	}
}

// Enabled reports whether manifests are uploaded
func (e *Exporter) Enabled() bool {
	return e != nil && e.uploader != nil
}

// Key returns the object key of a manifest
func (e *Exporter) Key(scenarioID, runKey string) string {
	return path.Join(e.prefix, scenarioID, runKey+".json")
}

// Export uploads the manifest and returns its s3:// location, or "" when disabled
func (e *Exporter) Export(ctx context.Context, m Manifest) (string, error) {
	if !e.Enabled() {
		return "", nil
	}

	m.Version = ManifestVersion
	if m.ExportedAt.IsZero() {
		m.ExportedAt = e.now().UTC()
	}

	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	key := e.Key(m.ScenarioID, m.RunKey)
	_, err = e.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"run-key": m.RunKey,
			"seed":    fmt.Sprintf("%016x", m.Seed),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload manifest %s: %w", key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", e.bucket, key)
	e.log.Info().
		Str("scenario_id", m.ScenarioID).
		Str("location", location).
		Int("bytes", len(body)).
		Msg("Manifest exported")
	return location, nil
}
