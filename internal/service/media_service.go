package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	config "github.com/maheshrc27/postflow/configs"
)

// MediaService turns stored media references into URLs platforms can fetch.
type MediaService interface {
	Resolve(ctx context.Context, refs []string) ([]string, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type mediaService struct {
	presign presigner
	bucket  string
	expiry  time.Duration
}

func NewMediaService(ctx context.Context, cfg config.R2) (MediaService, error) {
	client, err := R2Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newMediaService(s3.NewPresignClient(client), cfg.BucketName, cfg.URLExpiry), nil
}

func newMediaService(p presigner, bucket string, expiry time.Duration) *mediaService {
	if expiry <= 0 {
		expiry = 6 * time.Hour
	}
	return &mediaService{presign: p, bucket: bucket, expiry: expiry}
}

// R2Client builds an S3 client pointed at the Cloudflare R2 account.
func R2Client(ctx context.Context, cfg config.R2) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("loading r2 config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	}), nil
}

// Resolve keeps absolute URLs and presigns bare object keys. Order is preserved.
func (s *mediaService) Resolve(ctx context.Context, refs []string) ([]string, error) {
	urls := make([]string, 0, len(refs))
	for _, ref := range refs {
		if strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") {
			urls = append(urls, ref)
			continue
		}

		req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(strings.TrimPrefix(ref, "/")),
		}, s3.WithPresignExpires(s.expiry))
		if err != nil {
			return nil, fmt.Errorf("presigning %s: %w", ref, err)
		}
		urls = append(urls, req.URL)
	}
	return urls, nil
}
