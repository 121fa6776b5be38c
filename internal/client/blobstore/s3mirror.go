package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3Options configures an S3-compatible bucket holding blob copies under
// the key blobs/{blobId}.
type S3Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Expires         time.Duration
}

// S3Mirror serves blobs through presigned GET URLs.
type S3Mirror struct {
	bucket  string
	expires time.Duration
	presign *s3.PresignClient
}

func NewS3Mirror(ctx context.Context, opts S3Options) (*S3Mirror, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	expires := opts.Expires
	if expires <= 0 {
		expires = 5 * time.Minute
	}

	return &S3Mirror{
		bucket:  opts.Bucket,
		expires: expires,
		presign: s3.NewPresignClient(client),
	}, nil
}

func (m *S3Mirror) Name() string {
	return "s3://" + m.bucket
}

func (m *S3Mirror) BlobURL(ctx context.Context, blobID string) (string, error) {
	req, err := presignGetObject(m.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(ObjectKey(blobID)),
	}, s3.WithPresignExpires(m.expires))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", blobID, err)
	}
	return req.URL, nil
}

// ObjectKey is the bucket key of a blob.
func ObjectKey(blobID string) string {
	return "blobs/" + blobID
}
