package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"djqueue-backend/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const avatarURLExpiry = 5 * time.Minute

var avatarExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Presigner signs S3 PUT requests
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Options configures the avatar bucket
type S3Options struct {
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	Endpoint      string
	PublicBaseURL string
}

// NewS3Presigner builds a presign client from static or default credentials
func NewS3Presigner(ctx context.Context, opts S3Options) (*s3.PresignClient, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return s3.NewPresignClient(client), nil
}

// AvatarUpload is a presigned avatar upload target
type AvatarUpload struct {
	UploadURL string `json:"upload_url"`
	AvatarURL string `json:"avatar_url"`
	ExpiresIn int    `json:"expires_in"`
}

// AvatarService hands out presigned avatar uploads
type AvatarService struct {
	core
	presigner Presigner
	bucket    string
	baseURL   string
}

// NewAvatarService creates a new avatar service
func NewAvatarService(store repository.Store, presigner Presigner, opts S3Options) *AvatarService {
	baseURL := strings.TrimRight(opts.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
	return &AvatarService{
		core:      newCore(store, nil),
		presigner: presigner,
		bucket:    opts.Bucket,
		baseURL:   baseURL,
	}
}

// UploadURL presigns a PUT for a new avatar object and records its public
// URL on the caller
func (s *AvatarService) UploadURL(ctx context.Context, caller Caller, contentType string) (*AvatarUpload, error) {
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return nil, newError(KindInvalidInput, "content_type must be image/jpeg, image/png or image/webp")
	}

	key := fmt.Sprintf("avatars/%s/%s%s", caller.UserID, uuid.NewString(), ext)
	request, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = avatarURLExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}

	avatarURL := s.baseURL + "/" + key
	err = s.update(ctx, func(q repository.Querier, _ *Outbox, _ time.Time) error {
		return notFoundAs(q.UpdateAvatarURL(ctx, caller.UserID, avatarURL), "user not found")
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", caller.UserID).Str("key", key).Msg("Avatar upload presigned")

	return &AvatarUpload{
		UploadURL: request.URL,
		AvatarURL: avatarURL,
		ExpiresIn: int(avatarURLExpiry.Seconds()),
	}, nil
}
