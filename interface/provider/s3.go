package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/airbusgeo/s2-truecolor/service"
)

// S3Signer turns s3://bucket/key hrefs into https URLs, presigned if the bucket is private
type S3Signer struct {
	Region  string
	Public  bool
	Expires time.Duration
	presign *s3.PresignClient
}

// NewS3Signer creates a signer for the buckets of the region.
// If public is true, the URLs are not signed. Otherwise, the credentials are the static ones if provided, or the default ones.
func NewS3Signer(ctx context.Context, region, accessKeyID, secretAccessKey string, public bool, expires time.Duration) (*S3Signer, error) {
	s := &S3Signer{Region: region, Public: public, Expires: expires}
	if public {
		return s, nil
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewS3Signer.LoadDefaultConfig: %w", err)
	}
	s.presign = s3.NewPresignClient(s3.NewFromConfig(cfg))
	return s, nil
}

// Name implements Signer
func (s *S3Signer) Name() string {
	return "S3"
}

// Supports implements Signer
func (s *S3Signer) Supports(href string) bool {
	return strings.HasPrefix(href, "s3://")
}

// Sign implements Signer
func (s *S3Signer) Sign(ctx context.Context, href string, fresh bool) (string, error) {
	bucket, key, err := parseS3(href)
	if err != nil {
		return "", service.MakeFatal(fmt.Errorf("S3.Sign: %w", err))
	}
	if s.Public || s.presign == nil {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.Region, key), nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.Expires))
	if err != nil {
		return "", fmt.Errorf("S3.Sign.PresignGetObject: %w", err)
	}
	return req.URL, nil
}

func parseS3(href string) (string, string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" || len(u.Path) < 2 {
		return "", "", fmt.Errorf("invalid s3 href: %s", href)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
