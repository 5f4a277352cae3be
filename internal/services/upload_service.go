package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/apperror"
	"github.com/smartresidence/resident-backend/internal/config"
)

// allowedUploadTypes maps accepted MIME types to the extension stored keys use.
var allowedUploadTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// s3API is the subset of the S3 client the service uses
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// UploadService stores user-provided files (apartment logos, ticket photos,
// blog images) in S3 under per-apartment prefixes.
type UploadService struct {
	client s3API
	cfg    config.StorageConfig
	logger *logrus.Logger
}

// Upload describes one file to store
type Upload struct {
	Prefix      string // logical folder, e.g. "tickets" or "logos"
	ContentType string
	Data        []byte
}

// NewUploadService builds the S3 client from the ambient AWS credential chain
func NewUploadService(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (*UploadService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.New(s3.Options{
		Region:      cfg.Region,
		Credentials: awsCfg.Credentials,
		HTTPClient:  awsCfg.HTTPClient,
	})

	return &UploadService{client: client, cfg: cfg, logger: logger}, nil
}

// NewUploadServiceWithClient is used by tests to inject a fake client
func NewUploadServiceWithClient(client s3API, cfg config.StorageConfig, logger *logrus.Logger) *UploadService {
	return &UploadService{client: client, cfg: cfg, logger: logger}
}

// Store validates and uploads one file, returning its public URL
func (s *UploadService) Store(ctx context.Context, apartmentID uuid.UUID, up Upload) (string, error) {
	ext, ok := allowedUploadTypes[up.ContentType]
	if !ok {
		return "", apperror.BadRequestf("unsupported file type %q", up.ContentType)
	}
	if len(up.Data) == 0 {
		return "", apperror.BadRequestf("file is empty")
	}
	maxBytes := s.cfg.MaxUploadMB * 1024 * 1024
	if len(up.Data) > maxBytes {
		return "", apperror.BadRequestf("file exceeds the %dMB upload limit", s.cfg.MaxUploadMB)
	}

	key := s.objectKey(apartmentID, up.Prefix, ext)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.cfg.Bucket,
		Key:         &key,
		Body:        bytes.NewReader(up.Data),
		ContentType: &up.ContentType,
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"key":   key,
		"bytes": len(up.Data),
	}).Debug("Object uploaded")

	return s.PublicURL(key), nil
}

// StoreAll uploads a batch of files. If any upload fails the ones already
// stored are deleted so the caller never ends up with a partial set.
func (s *UploadService) StoreAll(ctx context.Context, apartmentID uuid.UUID, ups []Upload) ([]string, error) {
	urls := make([]string, 0, len(ups))

	for _, up := range ups {
		url, err := s.Store(ctx, apartmentID, up)
		if err != nil {
			s.removeAll(ctx, urls)
			return nil, err
		}
		urls = append(urls, url)
	}

	return urls, nil
}

// Remove deletes a previously stored file by its public URL
func (s *UploadService) Remove(ctx context.Context, url string) error {
	key := s.keyFromURL(url)
	if key == "" {
		return apperror.BadRequestf("URL does not belong to this bucket")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.cfg.Bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

func (s *UploadService) removeAll(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := s.Remove(ctx, url); err != nil {
			s.logger.WithError(err).WithField("url", url).Warn("Failed to roll back upload")
		}
	}
}

func (s *UploadService) objectKey(apartmentID uuid.UUID, prefix, ext string) string {
	if prefix == "" {
		prefix = "misc"
	}
	name := fmt.Sprintf("%d-%s%s", time.Now().Unix(), uuid.New().String(), ext)
	return path.Join(apartmentID.String(), prefix, name)
}

// PublicURL maps an object key onto the configured CDN/base URL
func (s *UploadService) PublicURL(key string) string {
	base := strings.TrimSuffix(s.cfg.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.Bucket, s.cfg.Region)
	}
	return base + "/" + key
}

func (s *UploadService) keyFromURL(url string) string {
	base := strings.TrimSuffix(s.cfg.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.Bucket, s.cfg.Region)
	}
	if !strings.HasPrefix(url, base+"/") {
		return ""
	}
	return strings.TrimPrefix(url, base+"/")
}
