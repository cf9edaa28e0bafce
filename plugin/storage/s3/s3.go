// Package s3 resolves course document paths to presigned links.
package s3

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// presignTimeout bounds one shared presign call.
const presignTimeout = 10 * time.Second

// Config locates the document bucket.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	UsePathStyle    bool
	// PresignTTL is how long generated links stay valid.
	PresignTTL time.Duration
}

type Client struct {
	Client *s3.Client
	Bucket string

	presign func(ctx context.Context, key string) (string, error)
	ttl     time.Duration

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]cachedLink
}

type cachedLink struct {
	url     string
	expires time.Time
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
		))
	}
	s3Config, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load s3 config")
	}

	client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	c := &Client{Client: client, Bucket: cfg.Bucket}
	c.init(cfg.PresignTTL, presignerFunc(s3.NewPresignClient(client), cfg.Bucket, cfg.PresignTTL))
	return c, nil
}

func (c *Client) init(ttl time.Duration, presign func(ctx context.Context, key string) (string, error)) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c.ttl = ttl
	c.presign = presign
	c.cache = map[string]cachedLink{}
}

func presignerFunc(p *s3.PresignClient, bucket string, ttl time.Duration) func(ctx context.Context, key string) (string, error) {
	return func(ctx context.Context, key string) (string, error) {
		req, err := p.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(ttl))
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}
}

// ResolveLink returns a presigned GET link for a document stored under s3Path.
// Concurrent lookups for the same path share one presign call and links are reused
// until half their lifetime has passed. The shared call does not inherit the
// cancellation of whichever caller started it; a cancelled caller stops waiting
// while the others still get the link.
func (c *Client) ResolveLink(ctx context.Context, s3Path, courseName string) (string, error) {
	key := strings.TrimPrefix(s3Path, "/")
	if key == "" {
		return "", errors.New("empty s3 path")
	}
	now := time.Now()
	c.mu.Lock()
	if l, ok := c.cache[key]; ok && now.Before(l.expires) {
		c.mu.Unlock()
		return l.url, nil
	}
	c.mu.Unlock()

	ch := c.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), presignTimeout)
		defer cancel()
		u, err := c.presign(ctx, key)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.cache[key] = cachedLink{url: u, expires: time.Now().Add(c.ttl / 2)}
		c.mu.Unlock()
		return u, nil
	})
	select {
	case <-ctx.Done():
		return "", errors.Wrapf(context.Cause(ctx), "gave up presigning %s", key)
	case res := <-ch:
		if res.Err != nil {
			slog.Warn("failed to presign document link", "course", courseName, "key", key, "err", res.Err)
			return "", errors.Wrapf(res.Err, "failed to presign %s", key)
		}
		return res.Val.(string), nil
	}
}
