package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// RecordPrefix is the object key prefix for account records
const RecordPrefix = "accounts/"

// S3Config holds configuration for S3 storage
type S3Config struct {
	BucketHost      string
	BucketPort      int
	BucketName      string
	UseSSL          bool
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// HTTPClient overrides the SDK transport, e.g. for tracing
	HTTPClient *http.Client
}

// S3Store keeps one JSON object per salt in an S3-compatible bucket. Objects
// are written with If-None-Match: * so the first writer wins.
type S3Store struct {
	client     *s3.Client
	bucketName string
}

// NewS3Store creates an S3 client for the configured endpoint
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s:%d", scheme, cfg.BucketHost, cfg.BucketPort)

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, config.WithHTTPClient(cfg.HTTPClient))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // MinIO and most S3-compatible stores
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Store{
		client:     client,
		bucketName: cfg.BucketName,
	}, nil
}

func recordKey(salt Hash) string {
	return RecordPrefix + salt.Hex() + ".json"
}

// Create implements Store
func (s *S3Store) Create(ctx context.Context, rec Record) (Record, bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(recordKey(rec.Salt)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err == nil {
		return rec, true, nil
	}
	if !isPreconditionFailed(err) {
		return Record{}, false, fmt.Errorf("failed to put record: %w", err)
	}

	existing, err := s.Get(ctx, rec.Salt)
	if err != nil {
		return Record{}, false, err
	}
	return existing, false, nil
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}

// Get implements Store
func (s *S3Store) Get(ctx context.Context, salt Hash) (Record, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(recordKey(salt)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("failed to get record: %w", err)
	}
	defer resp.Body.Close()

	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

// Ping implements Store
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	if err != nil {
		return fmt.Errorf("failed to ping bucket: %w", err)
	}
	return nil
}
