package staging

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
)

// Archiver receives a completed staging directory for long-term storage.
type Archiver interface {
	Archive(ctx context.Context, dir *Directory, names []string) error
}

// NopArchiver leaves staged files where they are.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, *Directory, []string) error { return nil }

// S3ClientAPI defines the S3 operations the archiver uses.
type S3ClientAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver copies staged files to <bucket>/<submissionID>/<name>.
type S3Archiver struct {
	Client      S3ClientAPI
	Bucket      string
	Parallelism int
}

func NewS3Archiver(ctx context.Context, bucket, region string) (*S3Archiver, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &S3Archiver{
		Client:      s3.NewFromConfig(cfg),
		Bucket:      bucket,
		Parallelism: 4,
	}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, dir *Directory, names []string) error {
	g, ctx := errgroup.WithContext(ctx)
	if a.Parallelism > 0 {
		g.SetLimit(a.Parallelism)
	}
	for _, name := range names {
		g.Go(func() error {
			return a.put(ctx, dir, name)
		})
	}
	return g.Wait()
}

func (a *S3Archiver) put(ctx context.Context, dir *Directory, name string) error {
	f, err := os.Open(filepath.Join(dir.Path, name))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(path.Join(dir.ID, name)),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	return nil
}
