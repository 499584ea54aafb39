// Package remote implements a cache.Store backed by an S3-compatible object
// store, used as the optional second tier of the artifact cache so a build
// farm can share results across machines.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/trellixvulnteam/jolt/internal/cache"
)

// Store is an S3-backed cache.Store. Objects are keyed by identity under an
// optional prefix within Bucket.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// Options configures a Store.
type Options struct {
	Bucket string
	Prefix string // optional key prefix, e.g. "jolt-cache/"
	Region string
}

// New loads AWS credentials from the default provider chain (environment,
// shared config, EC2/ECS role) and constructs a Store.
func New(ctx context.Context, opts Options) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("remote: load AWS config: %w", err)
	}
	return &Store{
		client: s3.NewFromConfig(cfg),
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}, nil
}

func (s *Store) key(identity string) string {
	return s.prefix + identity
}

// Has reports whether identity has a stored object.
func (s *Store) Has(ctx context.Context, identity string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(identity)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("remote: head %q: %w", identity, err)
}

// Get streams identity's stored object into dst.
func (s *Store) Get(ctx context.Context, identity string, dst io.Writer) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(identity)),
	})
	if err != nil {
		if isNotFound(err) {
			return cache.ErrNotFound
		}
		return fmt.Errorf("remote: get %q: %w", identity, err)
	}
	defer out.Body.Close()

	_, err = io.Copy(dst, out.Body)
	return err
}

// Put uploads src as identity's object.
func (s *Store) Put(ctx context.Context, identity string, src io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(identity)),
		Body:   src,
	})
	if err != nil {
		return fmt.Errorf("remote: put %q: %w", identity, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
