package scratch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// deleteBatchSize is the DeleteObjects request limit.
const deleteBatchSize = 1000

// S3API is the subset of the S3 client the scratch storage uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3 implements Storage on an S3-compatible bucket.
type S3 struct {
	client S3API
	bucket string
	scheme string
}

// S3Config holds S3 scratch configuration.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	// URIScheme is the scheme used when rendering object URIs. Defaults to
	// "s3"; set "gs" when the endpoint is GCS in interoperability mode and
	// the warehouse loads the staged objects by gs:// URI.
	URIScheme string
}

// NewS3 creates S3 scratch storage with a client built from the environment.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return NewS3WithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// NewS3WithClient creates S3 scratch storage with a pre-configured client.
func NewS3WithClient(client S3API, cfg S3Config) *S3 {
	scheme := cfg.URIScheme
	if scheme == "" {
		scheme = "s3"
	}
	return &S3{client: client, bucket: cfg.Bucket, scheme: scheme}
}

// List returns the URIs of all objects under prefix.
func (s *S3) List(ctx context.Context, prefix string) ([]string, error) {
	var uris []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("listing scratch prefix %q: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			uris = append(uris, fmt.Sprintf("%s://%s/%s", s.scheme, s.bucket, aws.ToString(obj.Key)))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return uris, nil
}

// RemoveAll deletes every object under prefix in batches.
func (s *S3) RemoveAll(ctx context.Context, prefix string) error {
	var batch []types.ObjectIdentifier
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("deleting scratch prefix %q: %w", prefix, err)
		}
		batch = batch[:0]
		return nil
	}

	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("listing scratch prefix %q: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			batch = append(batch, types.ObjectIdentifier{Key: obj.Key})
			if len(batch) == deleteBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return flush()
}
