// Package publish uploads rendered head markup to object storage, so static
// pages and edge workers can include the current head without running a
// Manager themselves.
package publish

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/headsync/internal/errors"
	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/reconcile"
	"github.com/vango-dev/headsync/pkg/render"
	"github.com/vango-dev/headsync/pkg/surface"
)

// PutObjectAPI is the part of *s3.Client the publisher uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures an S3 publisher.
type S3Config struct {
	// Bucket and Key locate the published object. Both are required.
	Bucket string
	Key    string

	// CacheControl is sent with every upload when set.
	CacheControl string

	// Render configures the markup renderer.
	Render render.RendererConfig
}

// S3 is a surface that writes the rendered head to one S3 object. An upload
// only happens when the rendered bytes differ from the last successful one.
type S3 struct {
	client PutObjectAPI
	table  *headtag.Table
	config S3Config
	logger *slog.Logger

	mu        sync.Mutex
	published bool
	digest    [sha256.Size]byte
}

var _ surface.Surface = (*S3)(nil)

// NewS3 creates an S3 publisher. A nil logger uses slog.Default().
func NewS3(client PutObjectAPI, table *headtag.Table, config S3Config, logger *slog.Logger) (*S3, error) {
	if config.Bucket == "" {
		return nil, errors.New("E102").WithDetail("publish.bucket is required")
	}
	if config.Key == "" {
		return nil, errors.New("E102").WithDetail("publish.key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &S3{
		client: client,
		table:  table,
		config: config,
		logger: logger.With("component", "publish", "bucket", config.Bucket, "key", config.Key),
	}, nil
}

// Apply renders set and uploads it if it changed. The object counts as a
// single element: Kept when unchanged, Added (and Removed, when replacing
// an earlier upload) otherwise.
func (p *S3) Apply(ctx context.Context, set reconcile.Set) (surface.Changes, error) {
	body := []byte(render.Head(p.table, set, p.config.Render).Head())
	digest := sha256.Sum256(body)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.published && digest == p.digest {
		return surface.Changes{Kept: 1}, nil
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(p.config.Bucket),
		Key:         aws.String(p.config.Key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/html; charset=utf-8"),
		Metadata: map[string]string{
			"entries": strconv.Itoa(set.Len()),
			"sha256":  hex.EncodeToString(digest[:]),
		},
	}
	if p.config.CacheControl != "" {
		input.CacheControl = aws.String(p.config.CacheControl)
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return surface.Changes{}, errors.New("E301").
			WithDetailf("s3://%s/%s", p.config.Bucket, p.config.Key).
			Wrap(err)
	}

	changes := surface.Changes{Added: 1}
	if p.published {
		changes.Removed = 1
	}
	p.published = true
	p.digest = digest
	p.logger.Info("head published", "bytes", len(body), "entries", set.Len())
	return changes, nil
}
