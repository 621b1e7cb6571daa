package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/server/models"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

const (
	profileImagePrefix      = "profileimg/"
	profileImageContentType = "image/jpeg"
	profileImageURLTTL      = 15 * time.Minute
)

// S3Config addresses the bucket holding profile images. BaseEndpoint is
// set for S3-compatible stores such as MinIO and switches to path-style
// addressing.
type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
}

// ProfileImageStore is the part of the directory profile images touch.
type ProfileImageStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	SetProfileImage(ctx context.Context, id string, url string) error
}

// ProfileImageUpload is a presigned PUT for the member's profile image and
// the address the image will be served from.
type ProfileImageUpload struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
	ImageURL  string `json:"imageUrl"`
}

type ProfileImageService struct {
	cfg   S3Config
	users ProfileImageStore
}

func NewProfileImageService(cfg S3Config, users ProfileImageStore) *ProfileImageService {
	return &ProfileImageService{cfg: cfg, users: users}
}

func (s *ProfileImageService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.cfg.AccessKey, s.cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return newS3PresignClient(client), nil
}

// UploadURL presigns an upload of the member's profile image and records
// the image address on the member. The object is keyed by nickname, so
// sign-up must be complete.
func (s *ProfileImageService) UploadURL(ctx context.Context, userID string) (*ProfileImageUpload, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, knownMember(err)
	}
	if u.Nickname == "" {
		return nil, fmt.Errorf("%w: nickname is not set", common.ErrInvalidParameter)
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	bucket := s.cfg.Bucket
	key := profileImagePrefix + u.Nickname + ".jpg"
	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: aws.String(profileImageContentType),
	}, s3.WithPresignExpires(profileImageURLTTL))
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	imageURL, err := objectURL(req.URL)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetProfileImage(ctx, userID, imageURL); err != nil {
		return nil, err
	}

	return &ProfileImageUpload{Key: key, UploadURL: req.URL, ImageURL: imageURL}, nil
}

// objectURL strips the signature from a presigned URL.
func objectURL(presigned string) (string, error) {
	u, err := url.Parse(presigned)
	if err != nil {
		return "", fmt.Errorf("presigned url: %w", err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
