package s3

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/NimaFathima/astrobiomers/pkg/loader"
)

// S3CorpusLoader is a CorpusLoader implementation that loads corpus files
// from an S3 bucket. It uses the AWS SDK v2 for Go.
type S3CorpusLoader struct {
	bucket string
	client *s3.Client
	cache  *loader.FileCache
}

// NewS3CorpusLoaderWithClient creates a new S3CorpusLoader using an existing
// s3.Client.
func NewS3CorpusLoaderWithClient(bucket string, client *s3.Client) *S3CorpusLoader {
	return &S3CorpusLoader{
		bucket: bucket,
		client: client,
		cache:  loader.NewFileCache(0, 0),
	}
}

// NewS3CorpusLoaderParams defines the configuration parameters for creating
// a new S3CorpusLoader.
//
// Endpoint allows overriding the S3 endpoint (useful for S3-compatible
// storage like MinIO).
type NewS3CorpusLoaderParams struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3CorpusLoader creates a new S3CorpusLoader with static credentials.
//
// Example:
//
//	l, err := s3.NewS3CorpusLoader(ctx, s3.NewS3CorpusLoaderParams{
//		Bucket:    "corpora",
//		Endpoint:  "http://localhost:9000",
//		Region:    "us-east-1",
//		AccessKey: os.Getenv("AWS_ACCESS_KEY"),
//		SecretKey: os.Getenv("AWS_SECRET_KEY"),
//	})
//	file := loader.NewCorpusFile("ingest/abc.jsonl", l)
//	papers, err := file.GetPapers(ctx)
func NewS3CorpusLoader(ctx context.Context, params NewS3CorpusLoaderParams) (*S3CorpusLoader, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(params.Region),
		config.WithBaseEndpoint(params.Endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return NewS3CorpusLoaderWithClient(params.Bucket, client), nil
}

// GetFile retrieves the object stored under key. It implements the
// CorpusLoader interface.
func (l *S3CorpusLoader) GetFile(ctx context.Context, key string) ([]byte, error) {
	return l.cache.Get(ctx, key, func(ctx context.Context) ([]byte, error) {
		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, err
		}
		defer out.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, out.Body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

var _ loader.CorpusLoader = (*S3CorpusLoader)(nil)
