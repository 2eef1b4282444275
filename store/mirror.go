package store

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Mirror uploads merged archive documents to an S3 bucket so downstream
// feed consumers can read them without access to the batch host. Uploads
// are best-effort: a failed mirror never fails the run.
type Mirror struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewMirror returns a Mirror if S3_BUCKET is configured, or nil. Credential
// resolution follows the standard AWS chain.
func NewMirror(ctx context.Context, bucket, region, prefix string) *Mirror {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region = strings.TrimSpace(region); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.Printf("Warning: failed to init S3 client: %v (archive mirroring disabled)", err)
		return nil
	}

	if prefix = strings.Trim(strings.TrimSpace(prefix), "/"); prefix != "" {
		prefix += "/"
	}
	return &Mirror{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		prefix: prefix,
	}
}

// Upload pushes the archive file at path to the bucket under its base name.
// Safe to call on a nil Mirror.
func (m *Mirror) Upload(ctx context.Context, path string) {
	if m == nil {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Warning: mirror read %s failed: %v", path, err)
		return
	}

	key := m.prefix + filepath.Base(path)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(m.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String("public, max-age=300"),
	})
	if err != nil {
		log.Printf("Warning: mirror upload of %s failed: %v", key, err)
		return
	}
	log.Printf("Mirrored %s to s3://%s/%s", path, m.bucket, key)
}
